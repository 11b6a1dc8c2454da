package models

import "time"

type ChatMessage struct {
	MessageID string    `json:"message_id" bson:"message_id"`
	PatientID string    `json:"patient_id" bson:"patient_id"`
	Sender    string    `json:"sender" bson:"sender"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
