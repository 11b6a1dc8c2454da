package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"

	"github.com/carelog/backend/config"
	"github.com/carelog/backend/models"
	"github.com/carelog/backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/nfnt/resize"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const (
	photoBucket  = "patient-photos"
	maxPhotoSize = 5 * 1024 * 1024
	jpegQuality  = 85
)

// PatientsHandler handles patient profile CRUD and profile photos.
type PatientsHandler struct {
	config      *config.Config
	logger      *zap.Logger
	mongoClient *mongo.Client
	minioClient *minio.Client
	idGenerator *utils.IDGenerator
	validator   *validator.Validate
}

type patientRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,max=20"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female other"`
	BloodGroup  string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}

func NewPatientsHandler(cfg *config.Config, logger *zap.Logger, mongoClient *mongo.Client, minioClient *minio.Client) *PatientsHandler {
	return &PatientsHandler{
		config:      cfg,
		logger:      logger,
		mongoClient: mongoClient,
		minioClient: minioClient,
		idGenerator: utils.NewIDGenerator(),
		validator:   validator.New(),
	}
}

func (h *PatientsHandler) collection() *mongo.Collection {
	return h.mongoClient.Database(h.config.MongoDBName).Collection("patients")
}

// CreatePatient creates a new patient profile.
func (h *PatientsHandler) CreatePatient(c *fiber.Ctx) error {
	var req patientRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Error("failed to parse patient request", zap.Error(err))
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

	patientID, err := h.idGenerator.GenerateID()
	if err != nil {
		h.logger.Error("failed to generate patient ID", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	now := time.Now()
	patient := models.Patient{
		PatientID:   patientID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		BloodGroup:  req.BloodGroup,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := h.collection().InsertOne(c.Context(), patient); err != nil {
		h.logger.Error("failed to insert patient", zap.Error(err))
		if mongo.IsDuplicateKeyError(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Patient with this ID already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create patient"})
	}

	h.logger.Info("patient created successfully", zap.String("patient_id", patientID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Patient created successfully",
		"patient": patient,
	})
}

// GetPatient retrieves a patient profile by ID.
func (h *PatientsHandler) GetPatient(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	var patient models.Patient
	err := h.collection().FindOne(c.Context(), bson.M{"patient_id": patientID}).Decode(&patient)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Patient not found"})
		}
		h.logger.Error("failed to fetch patient", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"patient": patient})
}

// ListPatients returns patient profiles with optional name search and
// pagination.
func (h *PatientsHandler) ListPatients(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	skip := (page - 1) * limit

	filter := bson.M{}
	if term := c.Query("search"); term != "" {
		filter["name"] = bson.M{"$regex": term, "$options": "i"}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := h.collection().Find(c.Context(), filter, opts)
	if err != nil {
		h.logger.Error("failed to list patients", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	defer cursor.Close(c.Context())

	var patients []models.Patient
	if err := cursor.All(c.Context(), &patients); err != nil {
		h.logger.Error("failed to decode patients", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if patients == nil {
		patients = []models.Patient{}
	}

	total, err := h.collection().CountDocuments(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to count patients", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"patients": patients,
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

// UpdatePatient updates a patient profile.
func (h *PatientsHandler) UpdatePatient(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	var req patientRequest
	if err := c.BodyParser(&req); err != nil {
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

	updateDoc := bson.M{"updated_at": time.Now()}
	if req.Name != "" {
		updateDoc["name"] = req.Name
	}
	if req.Email != "" {
		updateDoc["email"] = req.Email
	}
	if req.Phone != "" {
		updateDoc["phone"] = req.Phone
	}
	if req.DateOfBirth != "" {
		updateDoc["date_of_birth"] = req.DateOfBirth
	}
	if req.Gender != "" {
		updateDoc["gender"] = req.Gender
	}
	if req.BloodGroup != "" {
		updateDoc["blood_group"] = req.BloodGroup
	}

	result, err := h.collection().UpdateOne(c.Context(),
		bson.M{"patient_id": patientID},
		bson.M{"$set": updateDoc})
	if err != nil {
		h.logger.Error("failed to update patient", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update patient"})
	}
	if result.MatchedCount == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Patient not found"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":    "Patient updated successfully",
		"patient_id": patientID,
	})
}

// DeletePatient deletes a patient profile.
func (h *PatientsHandler) DeletePatient(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	result, err := h.collection().DeleteOne(c.Context(), bson.M{"patient_id": patientID})
	if err != nil {
		h.logger.Error("failed to delete patient", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete patient"})
	}
	if result.DeletedCount == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Patient not found"})
	}

	h.logger.Info("patient deleted successfully", zap.String("patient_id", patientID))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":    "Patient deleted successfully",
		"patient_id": patientID,
	})
}

// UploadPhoto stores a resized profile photo in object storage and records
// its URL on the patient profile.
func (h *PatientsHandler) UploadPhoto(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if !validatePatientID(patientID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid patient ID format"})
	}

	file, err := c.FormFile("photo")
	if err != nil {
		h.logger.Error("failed to get file from form", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file uploaded"})
	}

	if file.Size > maxPhotoSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("File size exceeds maximum limit of %d MB", maxPhotoSize/(1024*1024)),
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Only JPG and PNG files are allowed"})
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error("failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process uploaded file"})
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		h.logger.Error("failed to decode image", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid image format"})
	}

	// Resize image to 512x512
	resized := resize.Resize(512, 512, img, resize.Lanczos3)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		h.logger.Error("failed to encode image", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process image"})
	}

	filename := fmt.Sprintf("%s.jpg", uuid.New().String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := h.minioClient.BucketExists(ctx, photoBucket)
	if err != nil {
		h.logger.Error("failed to check bucket existence", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check storage configuration"})
	}
	if !exists {
		err = h.minioClient.MakeBucket(ctx, photoBucket, minio.MakeBucketOptions{})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			h.logger.Error("failed to create bucket", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to configure storage"})
		}
	}

	info, err := h.minioClient.PutObject(
		ctx,
		photoBucket,
		filename,
		bytes.NewReader(buf.Bytes()),
		int64(buf.Len()),
		minio.PutObjectOptions{
			ContentType: "image/jpeg",
		},
	)
	if err != nil {
		h.logger.Error("failed to upload to minio",
			zap.Error(err),
			zap.String("filename", filename))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store image"})
	}

	h.logger.Info("photo uploaded",
		zap.String("bucket", photoBucket),
		zap.String("filename", filename),
		zap.Int64("size", info.Size))

	photoURL := fmt.Sprintf("/api/media/patient-photos/%s", filename)

	result, err := h.collection().UpdateOne(c.Context(),
		bson.M{"patient_id": patientID},
		bson.M{"$set": bson.M{"photo_url": photoURL, "updated_at": time.Now()}})
	if err != nil {
		h.logger.Error("failed to update photo URL", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update patient photo"})
	}
	if result.MatchedCount == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Patient not found"})
	}

	return c.JSON(fiber.Map{
		"message": "Photo updated successfully",
		"url":     photoURL,
	})
}

// GetPhoto streams a stored profile photo.
func (h *PatientsHandler) GetPhoto(c *fiber.Ctx) error {
	filename := c.Params("filename")

	// Basic validation to prevent path traversal
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid filename"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Retry with backoff; object storage hiccups are transient often enough.
	var obj *minio.Object
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		obj, err = h.minioClient.GetObject(ctx, photoBucket, filename, minio.GetObjectOptions{})
		if err == nil {
			break
		}
		h.logger.Warn("attempt to get object from minio failed, retrying...",
			zap.Error(err),
			zap.String("filename", filename),
			zap.Int("attempt", attempt+1))
		if attempt < 2 {
			time.Sleep(time.Duration(100*(2<<attempt)) * time.Millisecond)
		}
	}
	if err != nil {
		h.logger.Error("all attempts to get object from minio failed",
			zap.Error(err),
			zap.String("filename", filename))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve image"})
	}

	objInfo, err := obj.Stat()
	if err != nil {
		h.logger.Error("failed to stat object",
			zap.Error(err),
			zap.String("filename", filename))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Image not found"})
	}

	c.Set("Content-Type", objInfo.ContentType)
	return c.SendStream(obj, int(objInfo.Size))
}
