// Package store persists structured history records in MongoDB. The
// reconciler consumes the single most recent prior record per patient and
// produces the next record to append or replace.
package store

import (
	"context"
	"time"

	"github.com/carelog/backend/history"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const historyCollection = "history_records"

// ErrNotFound is returned when a referenced history record does not exist.
var ErrNotFound = errors.New("history record not found")

// HistoryRecord is the persisted entity created per consultation note.
type HistoryRecord struct {
	ID         string                    `json:"id" bson:"record_id"`
	PatientID  string                    `json:"patient_id" bson:"patient_id"`
	RawText    string                    `json:"raw_text" bson:"raw_text"`
	Summary    string                    `json:"summary" bson:"summary"`
	Structured history.StructuredHistory `json:"structured" bson:"structured"`
	CreatedAt  time.Time                 `json:"created_at" bson:"created_at"`
	CreatedBy  string                    `json:"created_by" bson:"created_by"`
}

// HistoryStore reads and writes a patient's ordered history records.
type HistoryStore struct {
	client *mongo.Client
	dbName string
	logger *zap.Logger
}

func NewHistoryStore(client *mongo.Client, dbName string, logger *zap.Logger) *HistoryStore {
	return &HistoryStore{
		client: client,
		dbName: dbName,
		logger: logger,
	}
}

func (s *HistoryStore) collection() *mongo.Collection {
	return s.client.Database(s.dbName).Collection(historyCollection)
}

// EnsureIndexes creates the patient/recency index the latest-prior lookups
// depend on.
func (s *HistoryStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "patient_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	return errors.Wrap(err, "failed to create history indexes")
}

// LatestForPatient returns the most recent record for a patient, or nil when
// the patient has no history yet.
func (s *HistoryStore) LatestForPatient(ctx context.Context, patientID string) (*HistoryRecord, error) {
	return s.latest(ctx, bson.M{"patient_id": patientID})
}

// LatestForPatientExcluding returns the most recent record for a patient
// ignoring the given record id. Used on the edit path, where the prior must
// come from the other notes.
func (s *HistoryStore) LatestForPatientExcluding(ctx context.Context, patientID, excludeID string) (*HistoryRecord, error) {
	return s.latest(ctx, bson.M{
		"patient_id": patientID,
		"record_id":  bson.M{"$ne": excludeID},
	})
}

func (s *HistoryStore) latest(ctx context.Context, filter bson.M) (*HistoryRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var record HistoryRecord
	err := s.collection().FindOne(ctx, filter, opts).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to fetch latest history record")
	}
	return &record, nil
}

func (s *HistoryStore) Insert(ctx context.Context, record HistoryRecord) error {
	if _, err := s.collection().InsertOne(ctx, record); err != nil {
		return errors.Wrap(err, "failed to insert history record")
	}
	s.logger.Debug("history record inserted",
		zap.String("record_id", record.ID),
		zap.String("patient_id", record.PatientID))
	return nil
}

func (s *HistoryStore) GetByID(ctx context.Context, id string) (*HistoryRecord, error) {
	var record HistoryRecord
	err := s.collection().FindOne(ctx, bson.M{"record_id": id}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to fetch history record")
	}
	return &record, nil
}

// ListByPatient returns a patient's records newest first with the total count
// for pagination.
func (s *HistoryStore) ListByPatient(ctx context.Context, patientID string, skip, limit int64) ([]HistoryRecord, int64, error) {
	filter := bson.M{"patient_id": patientID}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list history records")
	}
	defer cursor.Close(ctx)

	var records []HistoryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, errors.Wrap(err, "failed to decode history records")
	}

	total, err := s.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count history records")
	}
	return records, total, nil
}

// ReplaceNote swaps the raw text and re-reconciled structure of an existing
// record in place.
func (s *HistoryStore) ReplaceNote(ctx context.Context, id, rawText string, structured history.StructuredHistory) error {
	result, err := s.collection().UpdateOne(ctx,
		bson.M{"record_id": id},
		bson.M{"$set": bson.M{
			"raw_text":   rawText,
			"structured": structured,
			"summary":    structured.Summary,
		}},
	)
	if err != nil {
		return errors.Wrap(err, "failed to update history record")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection().DeleteOne(ctx, bson.M{"record_id": id})
	if err != nil {
		return errors.Wrap(err, "failed to delete history record")
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
