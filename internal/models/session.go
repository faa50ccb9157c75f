package models

import "time"

// UserSession binds one live transport connection to a logical username.
// Both keys are unique among active sessions; the hub registry owns these
// records exclusively.
type UserSession struct {
	Username     string    `json:"username"`
	ConnectionID string    `json:"connectionId"`
	StartTime    time.Time `json:"startTime"`
}

// UserSessionKeyType selects which registry index a lookup runs against.
type UserSessionKeyType int

const (
	KeyUsername UserSessionKeyType = iota
	KeyConnectionID
)

func (t UserSessionKeyType) String() string {
	switch t {
	case KeyUsername:
		return "username"
	case KeyConnectionID:
		return "connectionId"
	default:
		return "unknown"
	}
}
