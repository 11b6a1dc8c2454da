package handlers

import (
	"time"

	"github.com/carelog/backend/config"
	"github.com/carelog/backend/extractor"
	"github.com/carelog/backend/history"
	"github.com/carelog/backend/store"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// NotesHandler handles consultation notes. Every create or edit runs the
// extraction and reconciliation pipeline before persisting.
type NotesHandler struct {
	config       *config.Config
	logger       *zap.Logger
	mongoClient  *mongo.Client
	historyStore *store.HistoryStore
	extractor    *extractor.Client
}

type noteRequest struct {
	Text string `json:"text"`
}

func NewNotesHandler(cfg *config.Config, logger *zap.Logger, mongoClient *mongo.Client, historyStore *store.HistoryStore, extractorClient *extractor.Client) *NotesHandler {
	return &NotesHandler{
		config:       cfg,
		logger:       logger,
		mongoClient:  mongoClient,
		historyStore: historyStore,
		extractor:    extractorClient,
	}
}

// buildStructured runs the extraction and merges it with the latest prior
// record. Extraction failure is recovered locally: the note is persisted with
// the degraded default structure and no error reaches the user.
func (h *NotesHandler) buildStructured(c *fiber.Ctx, text string, prior *store.HistoryRecord) history.StructuredHistory {
	var priorStructured *history.StructuredHistory
	if prior != nil {
		priorStructured = &prior.Structured
	}

	extracted, err := h.extractor.Extract(c.Context(), text, extractor.PriorContext(priorStructured))
	if err != nil {
		h.logger.Warn("extraction failed, saving note without structured data",
			zap.Error(err))
		return history.Degraded(text)
	}

	return history.Reconcile(text, extracted, priorStructured)
}

// CreateNote persists a new consultation note for a patient.
func (h *NotesHandler) CreateNote(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	var req noteRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Error("failed to parse note request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Note text is required"})
	}

	if err := h.validatePatientExists(c, patientID); err != nil {
		return err
	}

	prior, err := h.historyStore.LatestForPatient(c.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to fetch latest history record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	structured := h.buildStructured(c, req.Text, prior)

	userID, _ := c.Locals("userID").(string)
	record := store.HistoryRecord{
		ID:         uuid.New().String(),
		PatientID:  patientID,
		RawText:    req.Text,
		Summary:    structured.Summary,
		Structured: structured,
		CreatedAt:  time.Now(),
		CreatedBy:  userID,
	}

	if err := h.historyStore.Insert(c.Context(), record); err != nil {
		h.logger.Error("failed to insert note", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create note"})
	}

	h.logger.Info("note created successfully",
		zap.String("record_id", record.ID),
		zap.String("patient_id", patientID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Note created successfully",
		"note":    record,
	})
}

// UpdateNote replaces the text of an existing note and re-runs reconciliation
// against the patient's other notes.
func (h *NotesHandler) UpdateNote(c *fiber.Ctx) error {
	noteID := c.Params("id")
	if !validateUUID(noteID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Note ID must be in UUID format"})
	}

	var req noteRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Error("failed to parse note request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Note text is required"})
	}

	existing, err := h.historyStore.GetByID(c.Context(), noteID)
	if err != nil {
		if err == store.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Note not found"})
		}
		h.logger.Error("failed to fetch note", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	// The prior for an edit comes from the patient's other notes, most
	// recent first, excluding the one being edited.
	prior, err := h.historyStore.LatestForPatientExcluding(c.Context(), existing.PatientID, noteID)
	if err != nil {
		h.logger.Error("failed to fetch latest history record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	structured := h.buildStructured(c, req.Text, prior)

	if err := h.historyStore.ReplaceNote(c.Context(), noteID, req.Text, structured); err != nil {
		if err == store.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Note not found"})
		}
		h.logger.Error("failed to update note", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update note"})
	}

	h.logger.Info("note updated successfully",
		zap.String("record_id", noteID),
		zap.String("patient_id", existing.PatientID))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":    "Note updated successfully",
		"note_id":    noteID,
		"structured": structured,
	})
}

// GetNote retrieves a single note by ID.
func (h *NotesHandler) GetNote(c *fiber.Ctx) error {
	noteID := c.Params("id")
	if !validateUUID(noteID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Note ID must be in UUID format"})
	}

	record, err := h.historyStore.GetByID(c.Context(), noteID)
	if err != nil {
		if err == store.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Note not found"})
		}
		h.logger.Error("failed to fetch note", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"note": record})
}

// ListNotes retrieves a patient's notes newest first with pagination.
func (h *NotesHandler) ListNotes(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	skip := int64((page - 1) * limit)

	records, total, err := h.historyStore.ListByPatient(c.Context(), patientID, skip, int64(limit))
	if err != nil {
		h.logger.Error("failed to list notes", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if records == nil {
		records = []store.HistoryRecord{}
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notes": records,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
			"has_next":    int64(page) < totalPages,
			"has_prev":    page > 1,
		},
	})
}

// DeleteNote deletes a note by ID.
func (h *NotesHandler) DeleteNote(c *fiber.Ctx) error {
	noteID := c.Params("id")
	if !validateUUID(noteID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Note ID must be in UUID format"})
	}

	if err := h.historyStore.Delete(c.Context(), noteID); err != nil {
		if err == store.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Note not found"})
		}
		h.logger.Error("failed to delete note", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete note"})
	}

	h.logger.Info("note deleted successfully", zap.String("record_id", noteID))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Note deleted successfully",
		"note_id": noteID,
	})
}

// validatePatientExists checks that the patient profile exists.
func (h *NotesHandler) validatePatientExists(c *fiber.Ctx, patientID string) error {
	patientsCollection := h.mongoClient.Database(h.config.MongoDBName).Collection("patients")

	var patient bson.M
	err := patientsCollection.FindOne(c.Context(), bson.M{"patient_id": patientID}).Decode(&patient)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			h.logger.Warn("patient not found", zap.String("patient_id", patientID))
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Patient not found"})
		}
		h.logger.Error("error checking patient", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return nil
}
