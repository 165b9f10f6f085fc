package http

import (
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type StateReader interface {
	GetState() types.State
}

type getStateHandler struct {
	logger *logrus.Logger
	reader StateReader
}

func NewGetStateHandler(logger *logrus.Logger, reader StateReader) Handler {
	return &getStateHandler{
		logger: logger,
		reader: reader,
	}
}

// Handle @Summary Get store state
// @Description Returns a snapshot of the store state
// @Tags Store
// @Produce json
// @Success 200 {object} map[string]interface{} "State snapshot"
// @Router /api/v1/state [get]
func (h *getStateHandler) Handle(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.reader.GetState())
}
