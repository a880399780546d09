package model

import "time"

// DateLayout is the wire format for observation dates.
const DateLayout = "2006-01-02"

// PriceStatus marks whether a stored price is a model forecast or a
// real-world report.
type PriceStatus string

const (
	StatusPredicted PriceStatus = "predicted"
	StatusActual    PriceStatus = "actual"
)

// PriceObservation is one weekly price point for a crop in a region.
// At most one row exists per (date, region, crop); a predicted row is
// promoted in place to actual when a real report arrives.
type PriceObservation struct {
	Date   string      `json:"date"`
	Region string      `json:"region"`
	Crop   string      `json:"crop"`
	Price  float64     `json:"price"`
	Status PriceStatus `json:"status"`
}

// Key identifies the unique ledger row for an observation.
func (o PriceObservation) Key() string {
	return o.Date + "|" + o.Region + "|" + o.Crop
}

// ParseDate returns the observation date as a time.Time.
func (o PriceObservation) ParseDate() (time.Time, error) {
	return time.Parse(DateLayout, o.Date)
}

// PricePoint is a (date, price) pair returned by history queries.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}
