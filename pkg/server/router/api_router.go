package router

import (
	"errors"

	handlers "github.com/NeuralTrust/callgate/pkg/handlers/http"
	"github.com/NeuralTrust/callgate/pkg/server/middleware"
	"github.com/gofiber/fiber/v2"
)

var ErrInvalidHandlerTransport = errors.New("invalid handler transport")

type apiRouter struct {
	middlewareTransport *middleware.Transport
	handlerTransport    handlers.HandlerTransport
}

func NewAPIRouter(
	middlewareTransport *middleware.Transport,
	handlerTransport handlers.HandlerTransport,
) ServerRouter {
	return &apiRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
	}
}

func (r *apiRouter) BuildRoutes(router *fiber.App) error {
	h := r.handlerTransport
	if h.DispatchHandler == nil || h.GetStateHandler == nil || h.GetVersionHandler == nil {
		return ErrInvalidHandlerTransport
	}

	v1 := router.Group("/api/v1")
	{
		if r.middlewareTransport != nil {
			if mws := r.middlewareTransport.GetMiddlewares(); len(mws) > 0 {
				v1.Use(mws...)
			}
		}
		v1.Post("/dispatch", h.DispatchHandler.Handle)
		v1.Get("/state", h.GetStateHandler.Handle)
		v1.Get("/version", h.GetVersionHandler.Handle)

		if h.PutSessionTokenHandler != nil && h.DeleteSessionTokenHandler != nil {
			sessions := v1.Group("/sessions")
			sessions.Put("/:session_id/token", h.PutSessionTokenHandler.Handle)
			sessions.Delete("/:session_id/token", h.DeleteSessionTokenHandler.Handle)
		}
	}
	return nil
}
