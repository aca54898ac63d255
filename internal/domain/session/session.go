// Package session provides the domain model for browser sessions.
package session

import "time"

// Session is one admitted browser session. All chat history and tool memory
// is scoped to a session ID.
type Session struct {
	ID              string    `json:"id"`
	RemoteIP        string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	LastSeen        time.Time `json:"last_seen"`
	DefaultThinking bool      `json:"default_thinking"`
}

// Status summarizes the session registry for the /status endpoint.
type Status struct {
	Active    int  `json:"active_users"`
	Max       int  `json:"max_users"`
	Available bool `json:"available"`
	Created   int  `json:"sessions_created"`
	Expired   int  `json:"sessions_expired"`
	Rejected  int  `json:"sessions_rejected"`
}
