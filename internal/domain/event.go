package domain

import "time"

// Event is the broker envelope published by the other lnk.day services,
// for example link.created or click.recorded. Timestamp is RFC3339 on the
// wire.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
}
