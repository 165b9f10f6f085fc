package event

// TokenRotatedEvent is published after a session token was replaced.
type TokenRotatedEvent struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
}

func (e TokenRotatedEvent) Type() string {
	return TokenRotatedEventType
}

type TokenRevokedEvent struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
}

func (e TokenRevokedEvent) Type() string {
	return TokenRevokedEventType
}
