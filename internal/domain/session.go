package domain

import "time"

// SessionRecord is the server-side view of a client session established by
// an initialize handshake.
type SessionRecord struct {
	ID              string    `json:"id"`
	ClientName      string    `json:"clientName"`
	ClientVersion   string    `json:"clientVersion,omitempty"`
	ProtocolVersion string    `json:"protocolVersion"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActiveAt    time.Time `json:"lastActiveAt"`
	Requests        int       `json:"requests"`
}
