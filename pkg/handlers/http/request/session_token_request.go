package request

import (
	"fmt"
	"time"
)

type SessionTokenRequest struct {
	Token string `json:"token"`
	// TTL is a Go duration string, empty means no expiry.
	TTL string `json:"ttl,omitempty"`
}

func (r *SessionTokenRequest) Validate() (time.Duration, error) {
	if r.Token == "" {
		return 0, fmt.Errorf("token is required")
	}
	if r.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(r.TTL)
	if err != nil || ttl < 0 {
		return 0, fmt.Errorf("ttl must be a positive duration")
	}
	return ttl, nil
}
