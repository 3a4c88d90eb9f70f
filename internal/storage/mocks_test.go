package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fruitvision/internal/models"
)

// mockConnection hands out a fixed collection handle.
type mockConnection struct {
	col CollectionInterface
	err error
}

func (m *mockConnection) Collection(_ context.Context) (CollectionInterface, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.col, nil
}

func (m *mockConnection) Ping(_ context.Context) error       { return nil }
func (m *mockConnection) Disconnect(_ context.Context) error { return nil }

// mockCollection is an in-memory stand-in for the Mongo collection. It
// understands exactly the filters the store issues; fake results are built
// with the driver's document-backed constructors so the production decode
// paths run unchanged.
type mockCollection struct {
	mu   sync.Mutex
	docs []*models.PredictionRecord

	// uniqueHashIndex simulates the partial unique index on image_hash: a
	// second payload-bearing insert for the same hash fails with a duplicate
	// key error.
	uniqueHashIndex bool

	// aggregateResults are popped in call order when set.
	aggregateResults [][]interface{}
	aggregateCalls   int

	findOneErr   error
	findErr      error
	insertErr    error
	updateErr    error
	deleteErr    error
	countErr     error
	aggregateErr error
	distinctErr  error
}

func (m *mockCollection) FindOne(_ context.Context, filter interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findOneErr != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, m.findOneErr, nil)
	}

	if hash, ok := filterValue(filter, "image_hash"); ok {
		for _, doc := range m.docs {
			if doc.ImageHash == hash {
				return mongo.NewSingleResultFromDocument(doc, nil, nil)
			}
		}
	}
	if id, ok := filterValue(filter, "_id"); ok {
		oid, _ := id.(primitive.ObjectID)
		for _, doc := range m.docs {
			if doc.ID == oid {
				return mongo.NewSingleResultFromDocument(doc, nil, nil)
			}
		}
	}
	return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
}

func (m *mockCollection) Find(_ context.Context, _ interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}

	sorted := make([]*models.PredictionRecord, len(m.docs))
	copy(sorted, m.docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if len(opts) > 0 && opts[0].Limit != nil && int64(len(sorted)) > *opts[0].Limit {
		sorted = sorted[:*opts[0].Limit]
	}

	docs := make([]interface{}, len(sorted))
	for i, doc := range sorted {
		docs[i] = doc
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (m *mockCollection) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}

	rec := document.(models.PredictionRecord)
	if m.uniqueHashIndex && rec.IsCanonical() {
		for _, doc := range m.docs {
			if doc.IsCanonical() && doc.ImageHash == rec.ImageHash {
				return nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
			}
		}
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	m.docs = append(m.docs, &rec)
	return &mongo.InsertOneResult{InsertedID: rec.ID}, nil
}

func (m *mockCollection) UpdateByID(_ context.Context, id interface{}, update interface{}, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}

	oid, _ := id.(primitive.ObjectID)
	for _, doc := range m.docs {
		if doc.ID != oid {
			continue
		}
		set, _ := filterValue(update, "$set")
		fields, _ := set.(bson.D)
		for _, e := range fields {
			switch e.Key {
			case "filename":
				doc.Filename = e.Value.(string)
			case "predicted_label":
				doc.PredictedLabel = e.Value.(string)
			case "confidence":
				doc.Confidence = e.Value.(float64)
			case "updated_at":
				t := e.Value.(time.Time)
				doc.UpdatedAt = &t
			case "meta":
				doc.Meta = e.Value.(map[string]string)
			}
		}
		return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}
	return &mongo.UpdateResult{}, nil
}

func (m *mockCollection) DeleteMany(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}

	idFilter, _ := filterValue(filter, "_id")
	in, _ := filterValue(idFilter, "$in")
	ids, _ := in.([]primitive.ObjectID)

	var deleted int64
	kept := m.docs[:0]
	for _, doc := range m.docs {
		matched := false
		for _, oid := range ids {
			if doc.ID == oid {
				matched = true
				break
			}
		}
		if matched {
			deleted++
		} else {
			kept = append(kept, doc)
		}
	}
	m.docs = kept
	return &mongo.DeleteResult{DeletedCount: deleted}, nil
}

func (m *mockCollection) CountDocuments(_ context.Context, filter interface{}, _ ...*options.CountOptions) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}

	d, _ := filter.(bson.D)
	if len(d) == 0 {
		return int64(len(m.docs)), nil
	}

	var count int64
	switch d[0].Key {
	case "payload":
		for _, doc := range m.docs {
			if doc.IsCanonical() {
				count++
			}
		}
	case "duplicate_of":
		for _, doc := range m.docs {
			if doc.DuplicateOf != "" {
				count++
			}
		}
	case "created_at":
		gte, _ := filterValue(d[0].Value, "$gte")
		boundary, _ := gte.(time.Time)
		for _, doc := range m.docs {
			if !doc.CreatedAt.Before(boundary) {
				count++
			}
		}
	}
	return count, nil
}

func (m *mockCollection) Aggregate(_ context.Context, _ interface{}, _ ...*options.AggregateOptions) (*mongo.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aggregateErr != nil {
		return nil, m.aggregateErr
	}
	if m.aggregateCalls < len(m.aggregateResults) {
		docs := m.aggregateResults[m.aggregateCalls]
		m.aggregateCalls++
		return mongo.NewCursorFromDocuments(docs, nil, nil)
	}
	return mongo.NewCursorFromDocuments([]interface{}{}, nil, nil)
}

func (m *mockCollection) Distinct(_ context.Context, fieldName string, _ interface{}, _ ...*options.DistinctOptions) ([]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.distinctErr != nil {
		return nil, m.distinctErr
	}
	if fieldName != "predicted_label" {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var values []interface{}
	for _, doc := range m.docs {
		if _, ok := seen[doc.PredictedLabel]; ok {
			continue
		}
		seen[doc.PredictedLabel] = struct{}{}
		values = append(values, doc.PredictedLabel)
	}
	return values, nil
}

func filterValue(filter interface{}, key string) (interface{}, bool) {
	d, ok := filter.(bson.D)
	if !ok {
		return nil, false
	}
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
