package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/internal/transport/http/dto"
)

type CommandHandler struct {
	service ports.CommandService
	logger  *logger.Logger
}

func NewCommandHandler(service ports.CommandService, logger *logger.Logger) *CommandHandler {
	return &CommandHandler{service: service, logger: logger}
}

func (h *CommandHandler) Execute(c *fiber.Ctx) error {
	var req dto.CommandRequest
	if ok, err := parseBody(c, h.logger, "command_execute", &req); !ok {
		return err
	}
	h.logger.Infow("command_execute_request", "command", req.Command, "level", req.Level)
	out, err := h.service.Execute(c.UserContext(), req.ToInput())
	if err != nil {
		return writeError(c, h.logger, "command_execute", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}
