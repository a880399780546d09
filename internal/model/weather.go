package model

// WeatherObservation holds one weekly weather report for a region.
// Keyed by (date, region); re-reports overwrite in place. Metrics are
// pointers because stations report partial readings.
type WeatherObservation struct {
	Date     string   `json:"date"`
	Region   string   `json:"region"`
	Rainfall *float64 `json:"rainfall,omitempty"`
	Humidity *float64 `json:"humidity,omitempty"`
	Temp     *float64 `json:"temp,omitempty"`
}
