// Package directory talks to the corporate directory service: it acquires
// app-only tokens with the OAuth2 client-credentials grant and answers
// transitive group-membership questions through the directory graph API.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/liquidintel/taplist/pkg/config"
	"github.com/liquidintel/taplist/pkg/observability"
)

// GraphAPI is the subset of the directory graph used by taplist
type GraphAPI interface {
	// CheckMemberGroups returns the subset of groupIDs the principal is a
	// transitive member of. The principal may be a directory object id or a
	// user principal name.
	CheckMemberGroups(ctx context.Context, principal string, groupIDs []string) ([]string, error)
}

// Client implements GraphAPI against the directory graph endpoint
type Client struct {
	httpClient *http.Client
	graphURL   string
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewClient creates a directory client authenticated with client credentials.
// The returned client refreshes its app token transparently.
func NewClient(cfg config.DirectoryConfig, logger *observability.Logger, metrics *observability.Metrics) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		EndpointParams: url.Values{
			"resource": {cfg.GraphURL},
		},
	}

	httpClient := cc.Client(context.Background())
	httpClient.Timeout = 15 * time.Second

	return &Client{
		httpClient: httpClient,
		graphURL:   cfg.GraphURL,
		logger:     logger.WithField("component", "directory"),
		metrics:    metrics,
	}
}

// checkMemberGroupsRequest is the graph request body
type checkMemberGroupsRequest struct {
	GroupIDs []string `json:"groupIds"`
}

// checkMemberGroupsResponse is the graph response body
type checkMemberGroupsResponse struct {
	Value []string `json:"value"`
}

// CheckMemberGroups asks the graph which of groupIDs the principal belongs to,
// transitively. A non-2xx response or transport failure is returned as-is;
// callers decide whether that fails closed.
func (c *Client) CheckMemberGroups(ctx context.Context, principal string, groupIDs []string) ([]string, error) {
	start := time.Now()
	matched, err := c.checkMemberGroups(ctx, principal, groupIDs)
	if c.metrics != nil {
		c.metrics.RecordDirectoryCall(err, time.Since(start))
	}
	if err != nil {
		c.logger.WithError(err).WithField("principal", principal).Warn("directory group check failed")
		return nil, err
	}
	return matched, nil
}

func (c *Client) checkMemberGroups(ctx context.Context, principal string, groupIDs []string) ([]string, error) {
	body, err := json.Marshal(checkMemberGroupsRequest{GroupIDs: groupIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode group check request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/checkMemberGroups", c.graphURL, url.PathEscape(principal))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build group check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d for %s", resp.StatusCode, principal)
	}

	var parsed checkMemberGroupsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode group check response: %w", err)
	}

	return parsed.Value, nil
}

// GroupMembership answers "is this principal in the authorized set" against a
// fixed allow-list of group ids.
type GroupMembership struct {
	graph  GraphAPI
	groups []string
}

// NewGroupMembership creates a membership checker over the configured groups
func NewGroupMembership(graph GraphAPI, groups []string) *GroupMembership {
	return &GroupMembership{
		graph:  graph,
		groups: groups,
	}
}

// IsMember reports whether the principal is a transitive member of at least
// one configured group
func (g *GroupMembership) IsMember(ctx context.Context, principal string) (bool, error) {
	if len(g.groups) == 0 {
		return false, nil
	}

	matched, err := g.graph.CheckMemberGroups(ctx, principal, g.groups)
	if err != nil {
		return false, err
	}

	return len(matched) > 0, nil
}
