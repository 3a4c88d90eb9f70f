package storage

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"fruitvision/internal/models"
	"fruitvision/internal/providers"
)

// avgPayloadMB is the assumed average payload size used for the storage
// estimate. A stand-in for measuring real payload sizes.
const avgPayloadMB = 0.5

type AnalyticsEngineInterface interface {
	Snapshot(ctx context.Context) *models.Analytics
}

// AnalyticsEngine computes derived statistics with read-only aggregation
// queries. The sub-queries run independently, so the snapshot is consistent
// per field only, not across fields.
type AnalyticsEngine struct {
	conn    ConnectionProviderInterface
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	now     func() time.Time
}

func NewAnalyticsEngine(conn ConnectionProviderInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) AnalyticsEngineInterface {
	return &AnalyticsEngine{
		conn:    conn,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Snapshot never fails the caller: analytics is advisory, so any error yields
// a zero-valued snapshot with a log line.
func (ae *AnalyticsEngine) Snapshot(ctx context.Context) *models.Analytics {
	start := time.Now()
	defer func() { ae.metrics.ObserveStoreDuration("analytics", time.Since(start)) }()

	snapshot, err := ae.snapshot(ctx)
	if err != nil {
		ae.logger.Errorf(providers.TypeApp, "Analytics failed: %s", err)
		return &models.Analytics{}
	}
	return snapshot
}

func (ae *AnalyticsEngine) snapshot(ctx context.Context) (*models.Analytics, error) {
	col, err := ae.conn.Collection(ctx)
	if err != nil {
		return nil, err
	}

	// opTimeout bounds the aggregation queries, not a first-use connect.
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := ae.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := todayStart.AddDate(0, 0, -((int(todayStart.Weekday()) + 6) % 7))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	a := &models.Analytics{}

	counts := []struct {
		dst    *int64
		filter bson.D
	}{
		{&a.TotalPredictions, bson.D{}},
		{&a.UniqueImages, existsFilter("payload")},
		{&a.DuplicateCount, existsFilter("duplicate_of")},
		{&a.TodayCount, sinceFilter(todayStart)},
		{&a.WeekCount, sinceFilter(weekStart)},
		{&a.MonthCount, sinceFilter(monthStart)},
	}
	for _, c := range counts {
		n, err := col.CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	if a.Confidence, err = ae.confidenceStats(ctx, col); err != nil {
		return nil, err
	}
	if a.TopLabels, err = ae.topLabels(ctx, col); err != nil {
		return nil, err
	}
	if a.DailyStats, err = ae.dailyStats(ctx, col, todayStart.AddDate(0, 0, -7)); err != nil {
		return nil, err
	}
	if a.HourlyStats, err = ae.hourlyStats(ctx, col, now.Add(-24*time.Hour)); err != nil {
		return nil, err
	}

	a.Storage = models.StorageEstimate{
		EstimatedMB: round2(float64(a.UniqueImages) * avgPayloadMB),
		SavedMB:     round2(float64(a.DuplicateCount) * avgPayloadMB),
	}
	return a, nil
}

func existsFilter(field string) bson.D {
	return bson.D{{Key: field, Value: bson.D{
		{Key: "$exists", Value: true},
		{Key: "$ne", Value: nil},
	}}}
}

func sinceFilter(boundary time.Time) bson.D {
	return bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: boundary}}}}
}

func (ae *AnalyticsEngine) confidenceStats(ctx context.Context, col CollectionInterface) (models.ConfidenceStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg_confidence", Value: bson.D{{Key: "$avg", Value: "$confidence"}}},
			{Key: "max_confidence", Value: bson.D{{Key: "$max", Value: "$confidence"}}},
			{Key: "min_confidence", Value: bson.D{{Key: "$min", Value: "$confidence"}}},
		}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return models.ConfidenceStats{}, err
	}

	var rows []struct {
		Avg float64 `bson:"avg_confidence"`
		Max float64 `bson:"max_confidence"`
		Min float64 `bson:"min_confidence"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return models.ConfidenceStats{}, err
	}
	if len(rows) == 0 {
		return models.ConfidenceStats{}, nil
	}
	return models.ConfidenceStats{
		Average: roundPct(rows[0].Avg),
		Max:     roundPct(rows[0].Max),
		Min:     roundPct(rows[0].Min),
	}, nil
}

func (ae *AnalyticsEngine) topLabels(ctx context.Context, col CollectionInterface) ([]models.LabelCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$predicted_label"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: 10}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Label string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	labels := make([]models.LabelCount, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, models.LabelCount{Label: row.Label, Count: row.Count})
	}
	return labels, nil
}

func (ae *AnalyticsEngine) dailyStats(ctx context.Context, col CollectionInterface, since time.Time) ([]models.DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: sinceFilter(since)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$created_at"},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Date  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	daily := make([]models.DailyCount, 0, len(rows))
	for _, row := range rows {
		daily = append(daily, models.DailyCount{Date: row.Date, Count: row.Count})
	}
	return daily, nil
}

func (ae *AnalyticsEngine) hourlyStats(ctx context.Context, col CollectionInterface, since time.Time) ([]models.HourlyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: sinceFilter(since)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$hour", Value: "$created_at"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Hour  int   `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	hourly := make([]models.HourlyCount, 0, len(rows))
	for _, row := range rows {
		hourly = append(hourly, models.HourlyCount{Hour: row.Hour, Count: row.Count})
	}
	return hourly, nil
}

// roundPct converts a 0..1 confidence into a percentage with 2 decimals.
func roundPct(v float64) float64 {
	return math.Round(v*10000) / 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
