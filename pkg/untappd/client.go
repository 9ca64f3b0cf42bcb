// Package untappd is a minimal client for the external beer catalog used to
// enrich keg metadata at creation time.
package untappd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/liquidintel/taplist/pkg/config"
)

// BeerInfo is the catalog view of a beer
type BeerInfo struct {
	Name        string
	Brewery     string
	Style       string
	ABV         float64
	IBU         float64
	Description string
	LabelImage  string
}

// Client fetches beer metadata from the catalog API
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
}

// NewClient creates a catalog client from configuration
func NewClient(cfg config.UntappdConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
	}
}

// beerInfoResponse mirrors the catalog wire format
type beerInfoResponse struct {
	Response struct {
		Beer struct {
			BeerName        string  `json:"beer_name"`
			BeerStyle       string  `json:"beer_style"`
			BeerABV         float64 `json:"beer_abv"`
			BeerIBU         float64 `json:"beer_ibu"`
			BeerDescription string  `json:"beer_description"`
			BeerLabel       string  `json:"beer_label"`
			Brewery         struct {
				BreweryName string `json:"brewery_name"`
			} `json:"brewery"`
		} `json:"beer"`
	} `json:"response"`
}

// GetBeerInfo looks up a beer by its catalog id
func (c *Client) GetBeerInfo(ctx context.Context, beerID int) (*BeerInfo, error) {
	endpoint := fmt.Sprintf("%s/beer/info/%d?%s", c.baseURL, beerID, url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.secret},
		"compact":       {"true"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build beer info request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("beer catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("beer catalog returned status %d for beer %d", resp.StatusCode, beerID)
	}

	var parsed beerInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode beer info: %w", err)
	}

	beer := parsed.Response.Beer
	return &BeerInfo{
		Name:        beer.BeerName,
		Brewery:     beer.Brewery.BreweryName,
		Style:       beer.BeerStyle,
		ABV:         beer.BeerABV,
		IBU:         beer.BeerIBU,
		Description: beer.BeerDescription,
		LabelImage:  beer.BeerLabel,
	}, nil
}
