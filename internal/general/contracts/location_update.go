package contracts

import "time"

// LocationUpdateMessage is published by the tracking service for every
// accepted live_tracking sample.
// Exchange: ExchangeLocationFanout (fanout, no routing key).
type LocationUpdateMessage struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Location  GeoPoint  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
