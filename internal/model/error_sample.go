package model

import "time"

// ErrorSample records the squared forecast error observed when a
// predicted price was reconciled against a real report. Samples are
// append-only: they are never updated or deleted, and the predicted
// price itself is not retained after promotion.
type ErrorSample struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Region       string    `json:"region"`
	Crop         string    `json:"crop"`
	SquaredError float64   `json:"squared_error"`
	CreatedAt    time.Time `json:"created_at"`
}
