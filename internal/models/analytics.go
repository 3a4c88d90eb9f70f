package models

type ConfidenceStats struct {
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type HourlyCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

type StorageEstimate struct {
	EstimatedMB float64 `json:"estimated_mb"`
	SavedMB     float64 `json:"saved_mb"`
}

// Analytics is a point-in-time snapshot of derived statistics. The sub-queries
// behind it are only consistent individually, not with each other.
type Analytics struct {
	TotalPredictions int64           `json:"total_predictions"`
	UniqueImages     int64           `json:"unique_images"`
	DuplicateCount   int64           `json:"duplicate_count"`
	TodayCount       int64           `json:"today_count"`
	WeekCount        int64           `json:"week_count"`
	MonthCount       int64           `json:"month_count"`
	Confidence       ConfidenceStats `json:"confidence"`
	TopLabels        []LabelCount    `json:"top_labels"`
	DailyStats       []DailyCount    `json:"daily_stats"`
	HourlyStats      []HourlyCount   `json:"hourly_stats"`
	Storage          StorageEstimate `json:"storage"`
}
