// Package inventory manages kegs and their installation lifecycle on taps.
package inventory

import "time"

// Keg is a registered keg and its beer metadata. Field names on the wire
// match the original kiosk clients.
type Keg struct {
	ID          int64   `json:"KegId"`
	Name        string  `json:"Name"`
	Brewery     string  `json:"Brewery"`
	BeerType    string  `json:"BeerType"`
	ABV         float64 `json:"ABV"`
	IBU         float64 `json:"IBU"`
	Description string  `json:"BeerDescription"`
	UntappdID   *int64  `json:"UntappdId"`
	ImagePath   *string `json:"imagePath"`
}

// CurrentKeg is the joined view of a current installation and its keg
type CurrentKeg struct {
	TapID         int64     `json:"TapId"`
	KegID         int64     `json:"KegId"`
	InstallDate   time.Time `json:"InstallDate"`
	KegSize       float64   `json:"KegSize"`
	CurrentVolume float64   `json:"CurrentVolume"`
	Name          string    `json:"Name"`
	Brewery       string    `json:"Brewery"`
	BeerType      string    `json:"BeerType"`
	ABV           float64   `json:"ABV"`
	IBU           float64   `json:"IBU"`
	Description   string    `json:"BeerDescription"`
	UntappdID     *int64    `json:"UntappdId"`
	ImagePath     *string   `json:"imagePath"`
}

// InstallRequest describes a keg going onto a tap
type InstallRequest struct {
	KegID   int64   `json:"KegId"`
	KegSize float64 `json:"KegSize"`
}
