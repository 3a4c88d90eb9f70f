package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fruitvision/internal/hasher"
	"fruitvision/internal/models"
	"fruitvision/internal/providers"
)

type RecordStoreInterface interface {
	CheckDuplicate(ctx context.Context, image []byte) *models.DuplicateSummary
	SavePrediction(ctx context.Context, filename string, image []byte, label string, confidence float64, meta map[string]string, updateExisting bool) (string, bool, error)
	GetHistory(ctx context.Context, limit int) []models.ResolvedRecord
	DeletePredictions(ctx context.Context, ids []string) (int64, error)
	UniqueLabels(ctx context.Context) []string
}

type RecordStore struct {
	conn    ConnectionProviderInterface
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewRecordStore(conn ConnectionProviderInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) RecordStoreInterface {
	return &RecordStore{
		conn:    conn,
		logger:  logger,
		metrics: metrics,
	}
}

// findByHash returns an arbitrary document carrying the hash, or nil when none
// exists. Any document works: all records sharing a hash have identical content.
func (rs *RecordStore) findByHash(ctx context.Context, col CollectionInterface, hash string) (*models.PredictionRecord, error) {
	var rec models.PredictionRecord
	err := col.FindOne(ctx, bson.D{{Key: "image_hash", Value: hash}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CheckDuplicate reports whether content-identical bytes were stored before.
// Advisory: a backing store failure is logged and reported as "no duplicate"
// so it never blocks the caller's operation.
func (rs *RecordStore) CheckDuplicate(ctx context.Context, image []byte) *models.DuplicateSummary {
	// The collection is acquired with the caller's context so a first-use
	// connect keeps its full retry budget; opTimeout bounds the query only.
	col, err := rs.conn.Collection(ctx)
	if err != nil {
		rs.logger.Errorf(providers.TypeApp, "Duplicate check unavailable: %s", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rec, err := rs.findByHash(ctx, col, hasher.Sum(image))
	if err != nil {
		rs.logger.Errorf(providers.TypeApp, "Duplicate check failed: %s", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	return &models.DuplicateSummary{
		ID:             rec.ID.Hex(),
		Filename:       rec.Filename,
		PredictedLabel: rec.PredictedLabel,
		Confidence:     rec.Confidence,
		CreatedAt:      rec.CreatedAt,
	}
}

// SavePrediction persists one upload event. New content inserts a canonical
// record holding the payload; repeated content either updates the existing
// record in place (updateExisting) or inserts a payload-less reference record
// pointing at it. Returns the affected id and whether a new document was
// created. Write failures propagate to the caller.
func (rs *RecordStore) SavePrediction(ctx context.Context, filename string, image []byte, label string, confidence float64, meta map[string]string, updateExisting bool) (string, bool, error) {
	start := time.Now()
	defer func() { rs.metrics.ObserveStoreDuration("save", time.Since(start)) }()

	col, err := rs.conn.Collection(ctx)
	if err != nil {
		rs.metrics.IncStoreErrors("save")
		return "", false, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	hash := hasher.Sum(image)

	// The check-then-insert below is not atomic. The partial unique index on
	// image_hash turns the lost race into a duplicate key error on the
	// canonical insert, which we resolve by re-running the lookup once.
	for attempt := 0; ; attempt++ {
		existing, err := rs.findByHash(ctx, col, hash)
		if err != nil {
			rs.metrics.IncStoreErrors("save")
			return "", false, err
		}

		if existing != nil && updateExisting {
			return rs.updateInPlace(ctx, col, existing, filename, label, confidence, meta)
		}

		if existing != nil {
			return rs.insertReference(ctx, col, existing, filename, label, confidence, meta, hash)
		}

		id, err := rs.insertCanonical(ctx, col, filename, image, label, confidence, meta, hash)
		if mongo.IsDuplicateKeyError(err) && attempt == 0 {
			rs.logger.Warnf(providers.TypeApp, "Concurrent canonical insert for hash %s, retrying as duplicate", hash[:16])
			continue
		}
		if err != nil {
			rs.metrics.IncStoreErrors("save")
			return "", false, err
		}
		return id, true, nil
	}
}

func (rs *RecordStore) updateInPlace(ctx context.Context, col CollectionInterface, existing *models.PredictionRecord, filename, label string, confidence float64, meta map[string]string) (string, bool, error) {
	now := time.Now().UTC()
	set := bson.D{
		{Key: "filename", Value: filename},
		{Key: "predicted_label", Value: label},
		{Key: "confidence", Value: confidence},
		{Key: "updated_at", Value: now},
	}
	if meta != nil {
		set = append(set, bson.E{Key: "meta", Value: meta})
	}

	_, err := col.UpdateByID(ctx, existing.ID, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		rs.metrics.IncStoreErrors("save")
		return "", false, err
	}
	rs.metrics.IncPredictions(providers.OutcomeUpdated)
	return existing.ID.Hex(), false, nil
}

func (rs *RecordStore) insertReference(ctx context.Context, col CollectionInterface, existing *models.PredictionRecord, filename, label string, confidence float64, meta map[string]string, hash string) (string, bool, error) {
	rs.logger.Infof(providers.TypeApp, "Duplicate hash %s..., storing reference to %s", hash[:16], existing.ID.Hex())
	doc := models.PredictionRecord{
		Filename:       filename,
		PredictedLabel: label,
		Confidence:     confidence,
		ImageHash:      hash,
		DuplicateOf:    existing.ID.Hex(),
		Meta:           meta,
		CreatedAt:      time.Now().UTC(),
	}
	res, err := col.InsertOne(ctx, doc)
	if err != nil {
		rs.metrics.IncStoreErrors("save")
		return "", false, err
	}
	rs.metrics.IncPredictions(providers.OutcomeDuplicate)
	return res.InsertedID.(primitive.ObjectID).Hex(), true, nil
}

func (rs *RecordStore) insertCanonical(ctx context.Context, col CollectionInterface, filename string, image []byte, label string, confidence float64, meta map[string]string, hash string) (string, error) {
	doc := models.PredictionRecord{
		Filename:       filename,
		PredictedLabel: label,
		Confidence:     confidence,
		ImageHash:      hash,
		Payload:        image,
		Meta:           meta,
		CreatedAt:      time.Now().UTC(),
	}
	res, err := col.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	rs.metrics.IncPredictions(providers.OutcomeNew)
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

// GetHistory returns the most recent limit records, newest first. Reference
// records get the canonical record's payload substituted for display; a failed
// or missing canonical lookup leaves the payload empty. A backing store
// failure degrades to an empty slice.
func (rs *RecordStore) GetHistory(ctx context.Context, limit int) []models.ResolvedRecord {
	start := time.Now()
	defer func() { rs.metrics.ObserveStoreDuration("history", time.Since(start)) }()

	col, err := rs.conn.Collection(ctx)
	if err != nil {
		rs.logger.Errorf(providers.TypeApp, "History unavailable: %s", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := col.Find(ctx, bson.D{}, opts)
	if err != nil {
		rs.logger.Errorf(providers.TypeApp, "History query failed: %s", err)
		return nil
	}

	var records []models.PredictionRecord
	if err := cursor.All(ctx, &records); err != nil {
		rs.logger.Errorf(providers.TypeApp, "History decode failed: %s", err)
		return nil
	}

	resolved := make([]models.ResolvedRecord, 0, len(records))
	for _, rec := range records {
		payload := rec.Payload
		if len(payload) == 0 && rec.DuplicateOf != "" {
			payload = rs.resolvePayload(ctx, col, rec.DuplicateOf)
		}
		resolved = append(resolved, models.ResolvedRecord{
			ID:             rec.ID.Hex(),
			Filename:       rec.Filename,
			PredictedLabel: rec.PredictedLabel,
			Confidence:     rec.Confidence,
			Payload:        payload,
			Meta:           rec.Meta,
			CreatedAt:      rec.CreatedAt,
			IsDuplicate:    rec.DuplicateOf != "",
		})
	}
	return resolved
}

func (rs *RecordStore) resolvePayload(ctx context.Context, col CollectionInterface, canonicalID string) []byte {
	oid, err := primitive.ObjectIDFromHex(canonicalID)
	if err != nil {
		rs.logger.Warnf(providers.TypeApp, "Malformed canonical reference %q: %s", canonicalID, err)
		return nil
	}
	var canonical models.PredictionRecord
	err = col.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&canonical)
	if err != nil {
		rs.logger.Warnf(providers.TypeApp, "Canonical record %s unavailable: %s", canonicalID, err)
		return nil
	}
	return canonical.Payload
}

// DeletePredictions removes the given records in one bulk operation. Ids that
// fail to parse are skipped with a log line instead of aborting the batch.
// Returns the number of documents actually deleted.
func (rs *RecordStore) DeletePredictions(ctx context.Context, ids []string) (int64, error) {
	start := time.Now()
	defer func() { rs.metrics.ObserveStoreDuration("delete", time.Since(start)) }()

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			rs.logger.Warnf(providers.TypeApp, "Skipping invalid id %q: %s", id, err)
			continue
		}
		objectIDs = append(objectIDs, oid)
	}
	if len(objectIDs) == 0 {
		return 0, nil
	}

	col, err := rs.conn.Collection(ctx)
	if err != nil {
		rs.metrics.IncStoreErrors("delete")
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := col.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: objectIDs}}}})
	if err != nil {
		rs.metrics.IncStoreErrors("delete")
		return 0, err
	}
	return res.DeletedCount, nil
}

// UniqueLabels returns the distinct predicted labels currently stored, sorted.
// Advisory: empty on backing store failure.
func (rs *RecordStore) UniqueLabels(ctx context.Context) []string {
	col, err := rs.conn.Collection(ctx)
	if err != nil {
		rs.logger.Errorf(providers.TypeApp, "Labels unavailable: %s", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	values, err := col.Distinct(ctx, "predicted_label", bson.D{})
	if err != nil {
		rs.logger.Errorf(providers.TypeApp, "Distinct labels failed: %s", err)
		return nil
	}

	labels := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			labels = append(labels, s)
		}
	}
	sort.Strings(labels)
	return labels
}
