package http

import (
	"github.com/NeuralTrust/callgate/pkg/app/session"
	"github.com/NeuralTrust/callgate/pkg/handlers/http/request"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type putSessionTokenHandler struct {
	logger *logrus.Logger
	writer session.TokenWriter
}

func NewPutSessionTokenHandler(logger *logrus.Logger, writer session.TokenWriter) Handler {
	return &putSessionTokenHandler{
		logger: logger,
		writer: writer,
	}
}

// Handle @Summary Set a session token
// @Description Stores the bearer token sent with api calls of a session
// @Tags Sessions
// @Accept json
// @Param session_id path string true "Session ID"
// @Param token body request.SessionTokenRequest true "Token"
// @Success 204 "Token stored"
// @Router /api/v1/sessions/{session_id}/token [put]
func (h *putSessionTokenHandler) Handle(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")

	var req request.SessionTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidJsonPayload.Error()})
	}
	ttl, err := req.Validate()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.writer.SetToken(c.UserContext(), sessionID, req.Token, ttl); err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("failed to store session token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store session token"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
