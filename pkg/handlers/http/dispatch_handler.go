package http

import (
	"context"
	"errors"

	"github.com/NeuralTrust/callgate/pkg/callapi"
	"github.com/NeuralTrust/callgate/pkg/handlers/http/request"
	"github.com/NeuralTrust/callgate/pkg/interceptor"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, action *types.Action) (interface{}, error)
}

const SessionIDHeader = "X-Session-Id"

type dispatchHandler struct {
	logger     *logrus.Logger
	dispatcher Dispatcher
	sessionKey string
}

// NewDispatchHandler builds the dispatch endpoint. sessionKey names the meta
// entry read as the session id when no X-Session-Id header is sent.
func NewDispatchHandler(logger *logrus.Logger, dispatcher Dispatcher, sessionKey string) Handler {
	if sessionKey == "" {
		sessionKey = interceptor.DefaultSessionStateKey
	}
	return &dispatchHandler{
		logger:     logger,
		dispatcher: dispatcher,
		sessionKey: sessionKey,
	}
}

// Handle @Summary Dispatch an action
// @Description Runs an action through the store middleware chain and returns the final action
// @Tags Store
// @Accept json
// @Produce json
// @Param X-Session-Id header string false "Session whose token authorizes the api call"
// @Param action body request.DispatchRequest true "Action"
// @Success 200 {object} types.Action "Final action"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 422 {object} map[string]interface{} "Invalid configuration or call descriptor"
// @Router /api/v1/dispatch [post]
func (h *dispatchHandler) Handle(c *fiber.Ctx) error {
	var req request.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidJsonPayload.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	action := req.ToAction()
	ctx := c.UserContext()
	sessionID := c.Get(SessionIDHeader)
	if sessionID == "" {
		sessionID, _ = action.Meta[h.sessionKey].(string)
	}
	ctx = interceptor.ContextWithSession(ctx, sessionID)

	res, err := h.dispatcher.Dispatch(ctx, action)
	if err != nil {
		var (
			cfgErr *interceptor.ConfigError
			valErr *callapi.ValidationError
		)
		if errors.As(err, &cfgErr) || errors.As(err, &valErr) {
			h.logger.WithError(err).WithField("action", action.Type).Warn("action rejected")
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.WithError(err).WithField("action", action.Type).Error("failed to dispatch action")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if final, ok := res.(*types.Action); ok {
		return c.Status(fiber.StatusOK).JSON(final)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"result": res})
}
