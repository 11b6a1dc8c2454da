package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/carelog/backend/config"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Drug represents a drug reference catalog entry
type Drug struct {
	ID           int    `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Strength     string `json:"strength"`
	Form         string `json:"form"`
	Manufacturer string `json:"manufacturer"`
}

// DrugRefHandler serves the relational drug reference catalog used for
// medication autocomplete.
type DrugRefHandler struct {
	config *config.Config
	logger *zap.Logger
	pgPool *pgxpool.Pool
}

func NewDrugRefHandler(cfg *config.Config, logger *zap.Logger, pgPool *pgxpool.Pool) *DrugRefHandler {
	return &DrugRefHandler{
		config: cfg,
		logger: logger,
		pgPool: pgPool,
	}
}

// SearchDrugs searches the drug catalog by name, code or manufacturer.
func (h *DrugRefHandler) SearchDrugs(c *fiber.Ctx) error {
	searchTerm := c.Query("term")
	if searchTerm == "" {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("MISSING_TERM", "Search term is required"))
	}
	h.logger.Info("searching drugs", zap.String("searchTerm", searchTerm))

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	query := `
		SELECT id,
		       COALESCE(code, '') as code,
		       COALESCE(name, '') as name,
		       COALESCE(strength, '') as strength,
		       COALESCE(form, '') as form,
		       COALESCE(manufacturer, '') as manufacturer
		FROM public.drug_reference
		WHERE
			COALESCE(name, '') ILIKE $1 OR
			COALESCE(code, '') ILIKE $1 OR
			COALESCE(manufacturer, '') ILIKE $1
		ORDER BY name ASC
		LIMIT 50
	`

	pattern := fmt.Sprintf("%%%s%%", searchTerm)

	rows, err := h.pgPool.Query(ctx, query, pattern)
	if err != nil {
		h.logger.Error("failed to search drugs",
			zap.String("searchTerm", searchTerm),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("SEARCH_FAILED", "Failed to search drugs"))
	}
	defer rows.Close()

	var drugs []Drug
	for rows.Next() {
		var d Drug
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.Strength, &d.Form, &d.Manufacturer); err != nil {
			h.logger.Error("failed to scan drug row", zap.Error(err))
			continue
		}
		drugs = append(drugs, d)
	}

	if err = rows.Err(); err != nil {
		h.logger.Error("error during row iteration", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("SEARCH_FAILED", "Error while processing search results"))
	}

	if len(drugs) == 0 {
		h.logger.Info("no drugs found matching search term",
			zap.String("searchTerm", searchTerm))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "No drugs found matching the search term",
			"drugs":   []Drug{},
		})
	}

	h.logger.Info("drugs retrieved successfully",
		zap.String("searchTerm", searchTerm),
		zap.Int("count", len(drugs)))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"drugs": drugs,
	})
}
