package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/core/services"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/internal/transport/http/dto"
)

const defaultHistoryLimit = 50

type JobHandler struct {
	tracker ports.JobTracker
	records ports.JobRepository
	logger  *logger.Logger
}

func NewJobHandler(tracker ports.JobTracker, records ports.JobRepository, logger *logger.Logger) *JobHandler {
	return &JobHandler{tracker: tracker, records: records, logger: logger}
}

func (h *JobHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.tracker.List())
}

func (h *JobHandler) Get(c *fiber.Ctx) error {
	id, ok, err := jobID(c)
	if !ok {
		return err
	}
	entry, found := h.tracker.Get(id)
	if !found {
		return writeError(c, h.logger, "job_get", services.ErrJobNotFound)
	}
	return c.JSON(entry)
}

func (h *JobHandler) Retry(c *fiber.Ctx) error {
	id, ok, err := jobID(c)
	if !ok {
		return err
	}
	entry, err := h.tracker.Retry(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.logger, "job_retry", err)
	}
	h.logger.Infow("job_retry_success", "job_id", id)
	return c.Status(fiber.StatusAccepted).JSON(entry)
}

func (h *JobHandler) Dismiss(c *fiber.Ctx) error {
	id, ok, err := jobID(c)
	if !ok {
		return err
	}
	if !h.tracker.Remove(id) {
		return writeError(c, h.logger, "job_dismiss", services.ErrJobNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *JobHandler) History(c *fiber.Ctx) error {
	if h.records == nil {
		return c.JSON([]interface{}{})
	}
	if idStr := c.Query("job_id"); idStr != "" {
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job_id"})
		}
		record, err := h.records.GetByJobID(c.UserContext(), uint(id))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return writeError(c, h.logger, "job_history", services.ErrJobNotFound)
		}
		if err != nil {
			return writeError(c, h.logger, "job_history", err)
		}
		return c.JSON(record)
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	records, err := h.records.GetAll(c.UserContext(), limit)
	if err != nil {
		return writeError(c, h.logger, "job_history", err)
	}
	return c.JSON(records)
}

func jobID(c *fiber.Ctx) (uint, bool, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job id"})
	}
	return uint(id), true, nil
}
