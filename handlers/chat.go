package handlers

import (
	"time"

	"github.com/carelog/backend/config"
	"github.com/carelog/backend/extractor"
	"github.com/carelog/backend/history"
	"github.com/carelog/backend/models"
	"github.com/carelog/backend/store"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// transcriptWindow is how many recent messages feed a chat extraction.
const transcriptWindow = 50

// ChatHandler handles per-patient chat threads and structured extraction
// from conversation transcripts.
type ChatHandler struct {
	config       *config.Config
	logger       *zap.Logger
	mongoClient  *mongo.Client
	historyStore *store.HistoryStore
	extractor    *extractor.Client
	validator    *validator.Validate
}

type chatMessageRequest struct {
	Sender  string `json:"sender" validate:"required,oneof=patient provider"`
	Content string `json:"content" validate:"required,min=1"`
}

func NewChatHandler(cfg *config.Config, logger *zap.Logger, mongoClient *mongo.Client, historyStore *store.HistoryStore, extractorClient *extractor.Client) *ChatHandler {
	return &ChatHandler{
		config:       cfg,
		logger:       logger,
		mongoClient:  mongoClient,
		historyStore: historyStore,
		extractor:    extractorClient,
		validator:    validator.New(),
	}
}

func (h *ChatHandler) collection() *mongo.Collection {
	return h.mongoClient.Database(h.config.MongoDBName).Collection("chat_messages")
}

// SendMessage appends a message to a patient's chat thread.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	var req chatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Error("failed to parse chat message", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
	}

	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": formatValidationErrors(err),
		})
	}

	message := models.ChatMessage{
		MessageID: uuid.New().String(),
		PatientID: patientID,
		Sender:    req.Sender,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}

	if _, err := h.collection().InsertOne(c.Context(), message); err != nil {
		h.logger.Error("failed to insert chat message", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send message"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Message sent successfully",
		"chat":    message,
	})
}

// ListMessages returns a patient's chat thread oldest first.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := h.collection().Find(c.Context(), bson.M{"patient_id": patientID}, opts)
	if err != nil {
		h.logger.Error("failed to list chat messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	defer cursor.Close(c.Context())

	var messages []models.ChatMessage
	if err := cursor.All(c.Context(), &messages); err != nil {
		h.logger.Error("failed to decode chat messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"messages": messages})
}

// ExtractFromChat runs the structured extraction over the recent transcript
// and appends the reconciled result as a history record.
func (h *ChatHandler) ExtractFromChat(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	// Most recent messages, re-ordered oldest first for the transcript.
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(transcriptWindow)

	cursor, err := h.collection().Find(c.Context(), bson.M{"patient_id": patientID}, opts)
	if err != nil {
		h.logger.Error("failed to fetch chat messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	defer cursor.Close(c.Context())

	var messages []models.ChatMessage
	if err := cursor.All(c.Context(), &messages); err != nil {
		h.logger.Error("failed to decode chat messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if len(messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No chat messages to extract from"})
	}

	entries := make([]extractor.TranscriptEntry, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		entries = append(entries, extractor.TranscriptEntry{
			Sender:  messages[i].Sender,
			Content: messages[i].Content,
		})
	}
	transcript := extractor.TranscriptContext(entries)

	prior, err := h.historyStore.LatestForPatient(c.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to fetch latest history record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	var priorStructured *history.StructuredHistory
	if prior != nil {
		priorStructured = &prior.Structured
	}

	var structured history.StructuredHistory
	extracted, err := h.extractor.Extract(c.Context(), transcript, extractor.PriorContext(priorStructured))
	if err != nil {
		h.logger.Warn("chat extraction failed, saving degraded record", zap.Error(err))
		structured = history.Degraded(transcript)
	} else {
		structured = history.Reconcile(transcript, extracted, priorStructured)
	}

	userID, _ := c.Locals("userID").(string)
	record := store.HistoryRecord{
		ID:         uuid.New().String(),
		PatientID:  patientID,
		RawText:    transcript,
		Summary:    structured.Summary,
		Structured: structured,
		CreatedAt:  time.Now(),
		CreatedBy:  userID,
	}

	if err := h.historyStore.Insert(c.Context(), record); err != nil {
		h.logger.Error("failed to insert chat extraction record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save extraction"})
	}

	h.logger.Info("chat extraction saved",
		zap.String("record_id", record.ID),
		zap.String("patient_id", patientID),
		zap.Int("message_count", len(messages)))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Chat extraction saved",
		"note":    record,
	})
}
