package http

import (
	"github.com/NeuralTrust/callgate/pkg/app/session"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type deleteSessionTokenHandler struct {
	logger *logrus.Logger
	writer session.TokenWriter
}

func NewDeleteSessionTokenHandler(logger *logrus.Logger, writer session.TokenWriter) Handler {
	return &deleteSessionTokenHandler{
		logger: logger,
		writer: writer,
	}
}

// Handle @Summary Revoke a session token
// @Tags Sessions
// @Param session_id path string true "Session ID"
// @Success 204 "Token revoked"
// @Router /api/v1/sessions/{session_id}/token [delete]
func (h *deleteSessionTokenHandler) Handle(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if err := h.writer.RevokeToken(c.UserContext(), sessionID); err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("failed to revoke session token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to revoke session token"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
