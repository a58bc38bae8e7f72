package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/internal/transport/http/dto"
)

type WizardHandler struct {
	service ports.WizardService
	logger  *logger.Logger
}

func NewWizardHandler(service ports.WizardService, logger *logger.Logger) *WizardHandler {
	return &WizardHandler{service: service, logger: logger}
}

func (h *WizardHandler) Create(c *fiber.Ctx) error {
	session, err := h.service.Start(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "wizard_create", err)
	}
	h.logger.Infow("wizard_create_success", "id", session.ID)
	return c.Status(fiber.StatusCreated).JSON(dto.WizardToResponse(session))
}

func (h *WizardHandler) Get(c *fiber.Ctx) error {
	session, err := h.service.Get(c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "wizard_get", err)
	}
	return c.JSON(dto.WizardToResponse(session))
}

func (h *WizardHandler) Reset(c *fiber.Ctx) error {
	if err := h.service.Reset(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, h.logger, "wizard_reset", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *WizardHandler) ResolveService(c *fiber.Ctx) error {
	var req dto.ResolveServiceRequest
	if ok, err := parseBody(c, h.logger, "wizard_resolve", &req); !ok {
		return err
	}

	id := c.Params("id")
	h.logger.Infow("wizard_resolve_request", "id", id, "action", req.Action, "service", req.Service)
	out, err := h.service.ResolveService(c.UserContext(), ports.ResolveInput{
		SessionID:  id,
		Action:     domain.ResolveAction(req.Action),
		Service:    req.Service,
		Approvals:  req.Approvals,
		ApproveAll: req.ApproveAll,
	})
	if err != nil {
		return writeError(c, h.logger, "wizard_resolve", err)
	}
	if out.Rejected != nil {
		h.logger.Infow("wizard_resolve_needs_confirmation", "id", id, "service", out.Rejected.Service)
		return c.Status(fiber.StatusConflict).JSON(dto.ConfirmationResponse{
			Error:  "confirmation required",
			Prompt: *out.Rejected,
		})
	}
	return c.JSON(out)
}

func (h *WizardHandler) AssignHosts(c *fiber.Ctx) error {
	var req dto.AssignHostsRequest
	if ok, err := parseBody(c, h.logger, "wizard_assign_hosts", &req); !ok {
		return err
	}
	if err := h.service.AssignHosts(c.UserContext(), c.Params("id"), req.Assignments); err != nil {
		return writeError(c, h.logger, "wizard_assign_hosts", err)
	}
	return h.Get(c)
}

func (h *WizardHandler) CaptureSnapshot(c *fiber.Ctx) error {
	if err := h.service.CaptureSnapshot(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, h.logger, "wizard_snapshot", err)
	}
	return h.Get(c)
}

func (h *WizardHandler) Snapshots(c *fiber.Ctx) error {
	snapshots, err := h.service.Snapshots(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "wizard_snapshots", err)
	}
	return c.JSON(snapshots)
}

func (h *WizardHandler) UpdateConfigs(c *fiber.Ctx) error {
	var req dto.UpdateConfigsRequest
	if ok, err := parseBody(c, h.logger, "wizard_update_configs", &req); !ok {
		return err
	}
	if err := h.service.UpdateConfigs(c.UserContext(), c.Params("id"), c.Params("service"), req.Sections); err != nil {
		return writeError(c, h.logger, "wizard_update_configs", err)
	}
	return c.JSON(dto.SuccessResponse{Message: "configs updated"})
}

func (h *WizardHandler) Diff(c *fiber.Ctx) error {
	diff, err := h.service.PreviewDiff(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "wizard_diff", err)
	}
	return c.JSON(diff)
}

func (h *WizardHandler) Submit(c *fiber.Ctx) error {
	out, err := h.service.Submit(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "wizard_submit", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}

func (h *WizardHandler) SubmitComponents(c *fiber.Ctx) error {
	out, err := h.service.SubmitComponents(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "wizard_submit_components", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}
