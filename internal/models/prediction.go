package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PredictionRecord is one stored document per save operation, not per distinct
// image. For any image_hash exactly one document (the canonical record) carries
// Payload; later documents sharing the hash omit it and point back via
// DuplicateOf.
type PredictionRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename       string             `bson:"filename" json:"filename"`
	PredictedLabel string             `bson:"predicted_label" json:"predicted_label"`
	Confidence     float64            `bson:"confidence" json:"confidence"`
	ImageHash      string             `bson:"image_hash" json:"image_hash"`
	Payload        []byte             `bson:"payload,omitempty" json:"payload,omitempty"`
	DuplicateOf    string             `bson:"duplicate_of,omitempty" json:"duplicate_of,omitempty"`
	Meta           map[string]string  `bson:"meta,omitempty" json:"meta,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      *time.Time         `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// IsCanonical reports whether this record stores the payload for its hash.
func (p *PredictionRecord) IsCanonical() bool {
	return len(p.Payload) > 0
}

// DuplicateSummary is the trimmed view returned by duplicate checks.
type DuplicateSummary struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	PredictedLabel string    `json:"predicted_label"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// ResolvedRecord is a history entry with the payload of reference records
// substituted from their canonical record.
type ResolvedRecord struct {
	ID             string            `json:"id"`
	Filename       string            `json:"filename"`
	PredictedLabel string            `json:"predicted_label"`
	Confidence     float64           `json:"confidence"`
	Payload        []byte            `json:"payload,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	IsDuplicate    bool              `json:"is_duplicate"`
}

// ClassificationResult is the classifier collaborator's output, treated as
// opaque by the store.
type ClassificationResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Tag        string  `json:"tag"`
}
