package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fruitvision/internal/models"
	"fruitvision/internal/testutil"
)

// Wednesday afternoon, UTC.
var analyticsNow = time.Date(2026, time.August, 26, 15, 30, 0, 0, time.UTC)

func newTestEngine(col CollectionInterface) (*AnalyticsEngine, *testutil.MockLogger) {
	logger := &testutil.MockLogger{}
	engine := NewAnalyticsEngine(&mockConnection{col: col}, logger, testutil.NewMockMetrics()).(*AnalyticsEngine)
	engine.now = func() time.Time { return analyticsNow }
	return engine, logger
}

func seedDoc(createdAt time.Time, canonical bool, hash, label string) *models.PredictionRecord {
	doc := &models.PredictionRecord{
		ID:             primitive.NewObjectID(),
		Filename:       "f.jpg",
		PredictedLabel: label,
		Confidence:     0.9,
		ImageHash:      hash,
		CreatedAt:      createdAt,
	}
	if canonical {
		doc.Payload = []byte("payload")
	} else {
		doc.DuplicateOf = primitive.NewObjectID().Hex()
	}
	return doc
}

func TestSnapshot_CountsAndWindows(t *testing.T) {
	col := &mockCollection{docs: []*models.PredictionRecord{
		seedDoc(time.Date(2026, time.August, 26, 10, 0, 0, 0, time.UTC), true, "h1", "Banana A"),  // today
		seedDoc(time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC), false, "h1", "Banana A"), // this week
		seedDoc(time.Date(2026, time.August, 2, 8, 0, 0, 0, time.UTC), true, "h2", "Mango A"),     // this month
		seedDoc(time.Date(2026, time.July, 10, 8, 0, 0, 0, time.UTC), true, "h3", "Mango B"),      // older
	}}
	engine, _ := newTestEngine(col)

	a := engine.Snapshot(context.Background())
	require.NotNil(t, a)

	assert.EqualValues(t, 4, a.TotalPredictions)
	assert.EqualValues(t, 3, a.UniqueImages)
	assert.EqualValues(t, 1, a.DuplicateCount)
	assert.EqualValues(t, 1, a.TodayCount)
	assert.EqualValues(t, 2, a.WeekCount, "week starts Monday 00:00 UTC")
	assert.EqualValues(t, 3, a.MonthCount)
	assert.EqualValues(t, 4, a.TotalPredictions)
	assert.EqualValues(t, a.TotalPredictions, a.UniqueImages+a.DuplicateCount)
}

func TestSnapshot_ConfidencePercentages(t *testing.T) {
	col := &mockCollection{aggregateResults: [][]interface{}{
		// confidences 0.9, 0.8, 0.95
		{bson.D{
			{Key: "avg_confidence", Value: 0.8833333333333333},
			{Key: "max_confidence", Value: 0.95},
			{Key: "min_confidence", Value: 0.8},
		}},
	}}
	engine, _ := newTestEngine(col)

	a := engine.Snapshot(context.Background())
	assert.Equal(t, 88.33, a.Confidence.Average)
	assert.Equal(t, 95.0, a.Confidence.Max)
	assert.Equal(t, 80.0, a.Confidence.Min)
}

func TestSnapshot_TopLabelsAndBuckets(t *testing.T) {
	col := &mockCollection{aggregateResults: [][]interface{}{
		{}, // confidence
		{
			bson.D{{Key: "_id", Value: "Banana A"}, {Key: "count", Value: 3}},
			bson.D{{Key: "_id", Value: "Mango A"}, {Key: "count", Value: 1}},
		},
		{
			bson.D{{Key: "_id", Value: "2026-08-25"}, {Key: "count", Value: 2}},
			bson.D{{Key: "_id", Value: "2026-08-26"}, {Key: "count", Value: 1}},
		},
		{
			bson.D{{Key: "_id", Value: 9}, {Key: "count", Value: 1}},
			bson.D{{Key: "_id", Value: 13}, {Key: "count", Value: 2}},
		},
	}}
	engine, _ := newTestEngine(col)

	a := engine.Snapshot(context.Background())

	require.Len(t, a.TopLabels, 2)
	assert.Equal(t, models.LabelCount{Label: "Banana A", Count: 3}, a.TopLabels[0])

	require.Len(t, a.DailyStats, 2)
	assert.Equal(t, models.DailyCount{Date: "2026-08-25", Count: 2}, a.DailyStats[0])

	require.Len(t, a.HourlyStats, 2)
	assert.Equal(t, models.HourlyCount{Hour: 13, Count: 2}, a.HourlyStats[1])
}

func TestSnapshot_StorageEstimate(t *testing.T) {
	docs := []*models.PredictionRecord{
		seedDoc(analyticsNow, true, "h1", "Banana A"),
		seedDoc(analyticsNow, true, "h2", "Banana A"),
		seedDoc(analyticsNow, true, "h3", "Banana A"),
		seedDoc(analyticsNow, false, "h1", "Banana A"),
		seedDoc(analyticsNow, false, "h2", "Banana A"),
	}
	col := &mockCollection{docs: docs}
	engine, _ := newTestEngine(col)

	a := engine.Snapshot(context.Background())
	assert.Equal(t, 1.5, a.Storage.EstimatedMB)
	assert.Equal(t, 1.0, a.Storage.SavedMB)
}

func TestSnapshot_EmptyStore(t *testing.T) {
	engine, _ := newTestEngine(&mockCollection{})

	a := engine.Snapshot(context.Background())
	assert.EqualValues(t, 0, a.TotalPredictions)
	assert.Equal(t, models.ConfidenceStats{}, a.Confidence)
	assert.Empty(t, a.TopLabels)
	assert.Equal(t, 0.0, a.Storage.EstimatedMB)
}

func TestSnapshot_ErrorDegradesToZeroSnapshot(t *testing.T) {
	col := &mockCollection{countErr: errors.New("aggregation failed")}
	engine, logger := newTestEngine(col)

	a := engine.Snapshot(context.Background())
	require.NotNil(t, a)
	assert.Equal(t, &models.Analytics{}, a)
	assert.True(t, logger.HasLevel("error"))
}

func TestSnapshot_ConnectionErrorDegradesToZeroSnapshot(t *testing.T) {
	logger := &testutil.MockLogger{}
	engine := NewAnalyticsEngine(&mockConnection{err: errors.New("unreachable")}, logger, testutil.NewMockMetrics()).(*AnalyticsEngine)

	a := engine.Snapshot(context.Background())
	assert.Equal(t, &models.Analytics{}, a)
	assert.True(t, logger.HasLevel("error"))
}

func TestSnapshot_ConnectKeepsCallerContext(t *testing.T) {
	conn := &ctxInspectingConnection{col: &mockCollection{}}
	engine := NewAnalyticsEngine(conn, &testutil.MockLogger{}, testutil.NewMockMetrics()).(*AnalyticsEngine)
	engine.now = func() time.Time { return analyticsNow }

	require.NotNil(t, engine.Snapshot(context.Background()))
	assert.False(t, conn.hadDeadline, "op timeout must not bound the connect retry loop")
}

func TestRoundPct(t *testing.T) {
	assert.Equal(t, 88.33, roundPct(0.8833333333333333))
	assert.Equal(t, 100.0, roundPct(1))
	assert.Equal(t, 0.0, roundPct(0))
}
