package store

import (
	"context"
	"time"

	"github.com/pantrybase/insight-cli/internal/model"
)

// InsightFilter specifies criteria for listing insights.
type InsightFilter struct {
	Barcode   string            `json:"barcode,omitempty"`
	Flavor    model.Flavor      `json:"flavor,omitempty"`
	Type      model.InsightType `json:"type,omitempty"`
	Annotated *bool             `json:"annotated,omitempty"`
	Lc        string            `json:"lc,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for predictions and insights.
type Store interface {
	// Predictions. Rows are immutable once inserted.
	CreatePredictions(ctx context.Context, preds []model.Prediction) (int, error)
	LatestPrediction(ctx context.Context, ptype model.PredictionType, sourceImage string) (*model.Prediction, error)

	// Insights
	CreateInsight(ctx context.Context, insight *model.ProductInsight) error
	GetInsight(ctx context.Context, id string) (*model.ProductInsight, error)
	ListInsights(ctx context.Context, filter InsightFilter) ([]model.ProductInsight, error)
	CountInsights(ctx context.Context, filter InsightFilter) (int, error)

	// ListDueInsights returns pending insights marked for automatic
	// processing whose process_after delay has elapsed, oldest first.
	ListDueInsights(ctx context.Context, now time.Time, limit int) ([]model.ProductInsight, error)

	// PendingInsightExists reports whether a pending insight already
	// covers (barcode, flavor, type, value_tag).
	PendingInsightExists(ctx context.Context, barcode string, flavor model.Flavor, itype model.InsightType, valueTag string) (bool, error)

	// DeleteStaleInsights removes pending zero-vote insights for the
	// product whose predictor_version differs from keepVersion.
	DeleteStaleInsights(ctx context.Context, barcode string, flavor model.Flavor, itype model.InsightType, keepVersion string) (int, error)

	// Begin opens a transaction scoped to a single insight's state
	// change. The engine holds one open per processed insight, never
	// across insights.
	Begin(ctx context.Context) (Tx, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is a single-insight transaction.
type Tx interface {
	// LockInsight re-reads the insight inside the transaction, locking
	// the row against concurrent annotation. Nil when the insight is
	// gone.
	LockInsight(ctx context.Context, id string) (*model.ProductInsight, error)

	// SaveAnnotation persists the decision fields of the insight
	// (annotation, completed_at, value, value_tag, data, n_votes,
	// username).
	SaveAnnotation(ctx context.Context, insight *model.ProductInsight) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
