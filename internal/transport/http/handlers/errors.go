package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/apache/bigtop-manager-sub000/internal/core/services"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/internal/transport/http/dto"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrServiceUnknown),
		errors.Is(err, services.ErrJobNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrServiceNotSelected),
		errors.Is(err, services.ErrInvalidAction),
		errors.Is(err, services.ErrInvalidAssignment),
		errors.Is(err, services.ErrCommandInvalid):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrSessionSubmitted):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrServiceInstalled),
		errors.Is(err, services.ErrInstalledUnremovable),
		errors.Is(err, services.ErrNothingToSubmit),
		errors.Is(err, services.ErrJobNotFailed):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, log *logger.Logger, event string, err error) error {
	if ce, ok := services.AsConflict(err); ok {
		log.Warnw(event+"_conflict", "service", ce.Service, "missing", ce.Missing)
		return c.Status(fiber.StatusConflict).JSON(dto.ConflictResponse{
			Error:   ce.Error(),
			Service: ce.Service,
			Missing: ce.Missing,
		})
	}
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Errorw(event+"_failed", "error", err)
	} else {
		log.Warnw(event+"_rejected", "status", status, "error", err)
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
}

// parseBody decodes and validates req. When it returns false the 400 response is already written.
func parseBody(c *fiber.Ctx, log *logger.Logger, event string, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		log.Warnw(event+"_body_parse_failed", "error", err)
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if details := dto.Validate(req); len(details) > 0 {
		log.Warnw(event+"_validation_failed", "details", details)
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: details,
		})
	}
	return true, nil
}
