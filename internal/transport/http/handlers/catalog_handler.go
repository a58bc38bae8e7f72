package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

type CatalogHandler struct {
	catalog   ports.CatalogAPI
	clusterID uint
	logger    *logger.Logger
}

func NewCatalogHandler(catalog ports.CatalogAPI, clusterID uint, logger *logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, clusterID: clusterID, logger: logger}
}

func (h *CatalogHandler) Get(c *fiber.Ctx) error {
	catalog, err := h.catalog.GetCatalog(c.UserContext(), h.clusterID)
	if err != nil {
		return writeError(c, h.logger, "catalog_get", err)
	}
	return c.JSON(catalog)
}
