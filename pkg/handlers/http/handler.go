package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var ErrInvalidJsonPayload = errors.New("invalid json payload")

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	DispatchHandler   Handler
	GetStateHandler   Handler
	GetVersionHandler Handler

	// nil when no token cache is configured
	PutSessionTokenHandler    Handler
	DeleteSessionTokenHandler Handler
}
