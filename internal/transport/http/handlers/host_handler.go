package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/internal/transport/http/dto"
)

type HostHandler struct {
	service ports.HostService
	logger  *logger.Logger
}

func NewHostHandler(service ports.HostService, logger *logger.Logger) *HostHandler {
	return &HostHandler{service: service, logger: logger}
}

func (h *HostHandler) Check(c *fiber.Ctx) error {
	var req dto.HostCheckRequest
	if ok, err := parseBody(c, h.logger, "hosts_check", &req); !ok {
		return err
	}
	results, err := h.service.Check(c.UserContext(), req.Hosts)
	if err != nil {
		return writeError(c, h.logger, "hosts_check", err)
	}
	return c.JSON(results)
}
