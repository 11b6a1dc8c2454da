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

// MedicationsHandler handles standing medication schedules.
type MedicationsHandler struct {
	config      *config.Config
	logger      *zap.Logger
	mongoClient *mongo.Client
	validator   *validator.Validate
}

type medicationRequest struct {
	Name         string   `json:"name" validate:"required"`
	Dosage       string   `json:"dosage" validate:"required"`
	Frequency    string   `json:"frequency" validate:"required"`
	Times        []string `json:"times,omitempty"`
	StartDate    string   `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string   `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Instructions string   `json:"instructions,omitempty"`
}

func NewMedicationsHandler(cfg *config.Config, logger *zap.Logger, mongoClient *mongo.Client) *MedicationsHandler {
	return &MedicationsHandler{
		config:      cfg,
		logger:      logger,
		mongoClient: mongoClient,
		validator:   validator.New(),
	}
}

func (h *MedicationsHandler) collection() *mongo.Collection {
	return h.mongoClient.Database(h.config.MongoDBName).Collection("medications")
}

// CreateMedication adds a medication schedule for a patient.
func (h *MedicationsHandler) CreateMedication(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Error("failed to parse medication request", zap.Error(err))
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

	now := time.Now()
	medication := models.MedicationSchedule{
		MedicationID: uuid.New().String(),
		PatientID:    patientID,
		Name:         req.Name,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		Times:        req.Times,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Instructions: req.Instructions,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := h.collection().InsertOne(c.Context(), medication); err != nil {
		h.logger.Error("failed to insert medication", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create medication"})
	}

	h.logger.Info("medication created successfully",
		zap.String("medication_id", medication.MedicationID),
		zap.String("patient_id", patientID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Medication created successfully",
		"medication": medication,
	})
}

// ListMedications returns a patient's medication schedules, active first.
func (h *MedicationsHandler) ListMedications(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	filter := bson.M{"patient_id": patientID}
	if c.QueryBool("active_only", false) {
		filter["active"] = true
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "active", Value: -1},
		{Key: "created_at", Value: -1},
	})

	cursor, err := h.collection().Find(c.Context(), filter, opts)
	if err != nil {
		h.logger.Error("failed to list medications", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	defer cursor.Close(c.Context())

	var medications []models.MedicationSchedule
	if err := cursor.All(c.Context(), &medications); err != nil {
		h.logger.Error("failed to decode medications", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if medications == nil {
		medications = []models.MedicationSchedule{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"medications": medications})
}

// UpdateMedication updates a medication schedule.
func (h *MedicationsHandler) UpdateMedication(c *fiber.Ctx) error {
	medicationID := c.Params("id")
	if !validateUUID(medicationID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Medication ID must be in UUID format"})
	}

	var req struct {
		medicationRequest
		Active *bool `json:"active,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
	}

	updateDoc := bson.M{"updated_at": time.Now()}
	if req.Name != "" {
		updateDoc["name"] = req.Name
	}
	if req.Dosage != "" {
		updateDoc["dosage"] = req.Dosage
	}
	if req.Frequency != "" {
		updateDoc["frequency"] = req.Frequency
	}
	if len(req.Times) > 0 {
		updateDoc["times"] = req.Times
	}
	if req.StartDate != "" {
		updateDoc["start_date"] = req.StartDate
	}
	if req.EndDate != "" {
		updateDoc["end_date"] = req.EndDate
	}
	if req.Instructions != "" {
		updateDoc["instructions"] = req.Instructions
	}
	if req.Active != nil {
		updateDoc["active"] = *req.Active
	}

	result, err := h.collection().UpdateOne(c.Context(),
		bson.M{"medication_id": medicationID},
		bson.M{"$set": updateDoc})
	if err != nil {
		h.logger.Error("failed to update medication", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update medication"})
	}
	if result.MatchedCount == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Medication not found"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":       "Medication updated successfully",
		"medication_id": medicationID,
	})
}

// DeleteMedication deletes a medication schedule.
func (h *MedicationsHandler) DeleteMedication(c *fiber.Ctx) error {
	medicationID := c.Params("id")
	if !validateUUID(medicationID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Medication ID must be in UUID format"})
	}

	result, err := h.collection().DeleteOne(c.Context(), bson.M{"medication_id": medicationID})
	if err != nil {
		h.logger.Error("failed to delete medication", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete medication"})
	}
	if result.DeletedCount == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Medication not found"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":       "Medication deleted successfully",
		"medication_id": medicationID,
	})
}
