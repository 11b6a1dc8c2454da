package handlers

import (
	"time"

	"github.com/carelog/backend/config"
	"github.com/carelog/backend/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// AppointmentsHandler handles appointment CRUD.
type AppointmentsHandler struct {
	config      *config.Config
	logger      *zap.Logger
	mongoClient *mongo.Client
	validator   *validator.Validate
}

type appointmentRequest struct {
	PatientID       string    `json:"patient_id" validate:"required"`
	Provider        string    `json:"provider" validate:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=5,max=480"`
	Reason          string    `json:"reason,omitempty"`
	Status          string    `json:"status" validate:"required,oneof=scheduled completed cancelled no_show"`
	Notes           string    `json:"notes,omitempty"`
}

func NewAppointmentsHandler(cfg *config.Config, logger *zap.Logger, mongoClient *mongo.Client) *AppointmentsHandler {
	return &AppointmentsHandler{
		config:      cfg,
		logger:      logger,
		mongoClient: mongoClient,
		validator:   validator.New(),
	}
}

func (h *AppointmentsHandler) collection() *mongo.Collection {
	return h.mongoClient.Database(h.config.MongoDBName).Collection("appointments")
}

// CreateAppointment schedules a new appointment.
func (h *AppointmentsHandler) CreateAppointment(c *fiber.Ctx) error {
	var req appointmentRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Error("failed to parse appointment request", zap.Error(err))
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

	if !validatePatientID(req.PatientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	now := time.Now()
	appointment := models.Appointment{
		AppointmentID:   uuid.New().String(),
		PatientID:       req.PatientID,
		Provider:        req.Provider,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		Status:          req.Status,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := h.collection().InsertOne(c.Context(), appointment); err != nil {
		h.logger.Error("failed to insert appointment", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create appointment"})
	}

	h.logger.Info("appointment created successfully",
		zap.String("appointment_id", appointment.AppointmentID),
		zap.String("patient_id", appointment.PatientID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Appointment created successfully",
		"appointment": appointment,
	})
}

// GetAppointment retrieves an appointment by ID.
func (h *AppointmentsHandler) GetAppointment(c *fiber.Ctx) error {
	appointmentID := c.Params("id")
	if !validateUUID(appointmentID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Appointment ID must be in UUID format"})
	}

	var appointment models.Appointment
	err := h.collection().FindOne(c.Context(), bson.M{"appointment_id": appointmentID}).Decode(&appointment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Appointment not found"})
		}
		h.logger.Error("failed to fetch appointment", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"appointment": appointment})
}

// ListAppointments retrieves appointments with optional filtering.
func (h *AppointmentsHandler) ListAppointments(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	skip := (page - 1) * limit

	filter := bson.M{}
	if patientID := c.Query("patient_id"); patientID != "" {
		filter["patient_id"] = patientID
	}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}
	if provider := c.Query("provider"); provider != "" {
		filter["provider"] = provider
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "scheduled_at", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := h.collection().Find(c.Context(), filter, opts)
	if err != nil {
		h.logger.Error("failed to list appointments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	defer cursor.Close(c.Context())

	var appointments []models.Appointment
	if err := cursor.All(c.Context(), &appointments); err != nil {
		h.logger.Error("failed to decode appointments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if appointments == nil {
		appointments = []models.Appointment{}
	}

	total, err := h.collection().CountDocuments(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to count appointments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"appointments": appointments,
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

// UpdateAppointment updates an existing appointment.
func (h *AppointmentsHandler) UpdateAppointment(c *fiber.Ctx) error {
	appointmentID := c.Params("id")
	if !validateUUID(appointmentID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Appointment ID must be in UUID format"})
	}

	var req appointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
	}

	updateDoc := bson.M{"updated_at": time.Now()}
	if req.Provider != "" {
		updateDoc["provider"] = req.Provider
	}
	if !req.ScheduledAt.IsZero() {
		updateDoc["scheduled_at"] = req.ScheduledAt
	}
	if req.DurationMinutes > 0 {
		updateDoc["duration_minutes"] = req.DurationMinutes
	}
	if req.Reason != "" {
		updateDoc["reason"] = req.Reason
	}
	if req.Status != "" {
		updateDoc["status"] = req.Status
	}
	if req.Notes != "" {
		updateDoc["notes"] = req.Notes
	}

	result, err := h.collection().UpdateOne(c.Context(),
		bson.M{"appointment_id": appointmentID},
		bson.M{"$set": updateDoc})
	if err != nil {
		h.logger.Error("failed to update appointment", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update appointment"})
	}
	if result.MatchedCount == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Appointment not found"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":        "Appointment updated successfully",
		"appointment_id": appointmentID,
	})
}

// DeleteAppointment deletes an appointment by ID.
func (h *AppointmentsHandler) DeleteAppointment(c *fiber.Ctx) error {
	appointmentID := c.Params("id")
	if !validateUUID(appointmentID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Appointment ID must be in UUID format"})
	}

	result, err := h.collection().DeleteOne(c.Context(), bson.M{"appointment_id": appointmentID})
	if err != nil {
		h.logger.Error("failed to delete appointment", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete appointment"})
	}
	if result.DeletedCount == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Appointment not found"})
	}

	h.logger.Info("appointment deleted successfully", zap.String("appointment_id", appointmentID))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":        "Appointment deleted successfully",
		"appointment_id": appointmentID,
	})
}
