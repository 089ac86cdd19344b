package contracts

// Wire shapes exchanged over the tracking WebSocket. Field names and values
// are a compatibility contract with deployed mobile and dashboard clients;
// do not rename casually.

// ClientLocationMessage is the inbound frame shape. Lat/Lng are pointers so
// the handler can tell "absent" from zero (the equator is a valid latitude).
type ClientLocationMessage struct {
	Type string   `json:"type"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// ConnectionEstablished is sent exactly once after a successful join.
type ConnectionEstablished struct {
	Type    string `json:"type"` // "connection_established"
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
}

// StatusReply answers initialize_location requests and validation failures.
type StatusReply struct {
	Status  string   `json:"status"` // "success" | "error"
	Message string   `json:"message"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// ErrorReply reports protocol-level problems (bad JSON, unknown type).
type ErrorReply struct {
	Error string `json:"error"`
}

// LocationUpdate is the broadcast fanned out to every member of the
// driver's group on live_tracking.
type LocationUpdate struct {
	Type   string  `json:"type"` // "location_update"
	UserID string  `json:"user_id"`
	Email  string  `json:"email"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}
