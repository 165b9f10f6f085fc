package event

import "reflect"

type Event interface {
	Type() string
}

var (
	TokenRotatedEventType = "TokenRotatedEvent"
	TokenRevokedEventType = "TokenRevokedEvent"
)

var Registry = map[string]reflect.Type{
	TokenRotatedEventType: reflect.TypeOf(TokenRotatedEvent{}),
	TokenRevokedEventType: reflect.TypeOf(TokenRevokedEvent{}),
}
