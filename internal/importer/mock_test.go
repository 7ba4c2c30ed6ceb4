package importer

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreatePredictions(ctx context.Context, preds []model.Prediction) (int, error) {
	args := m.Called(ctx, preds)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) LatestPrediction(ctx context.Context, ptype model.PredictionType, sourceImage string) (*model.Prediction, error) {
	args := m.Called(ctx, ptype, sourceImage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Prediction), args.Error(1)
}

func (m *mockStore) CreateInsight(ctx context.Context, insight *model.ProductInsight) error {
	args := m.Called(ctx, insight)
	return args.Error(0)
}

func (m *mockStore) GetInsight(ctx context.Context, id string) (*model.ProductInsight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProductInsight), args.Error(1)
}

func (m *mockStore) ListInsights(ctx context.Context, filter store.InsightFilter) ([]model.ProductInsight, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProductInsight), args.Error(1)
}

func (m *mockStore) CountInsights(ctx context.Context, filter store.InsightFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ListDueInsights(ctx context.Context, now time.Time, limit int) ([]model.ProductInsight, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProductInsight), args.Error(1)
}

func (m *mockStore) PendingInsightExists(ctx context.Context, barcode string, flavor model.Flavor, itype model.InsightType, valueTag string) (bool, error) {
	args := m.Called(ctx, barcode, flavor, itype, valueTag)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) DeleteStaleInsights(ctx context.Context, barcode string, flavor model.Flavor, itype model.InsightType, keepVersion string) (int, error) {
	args := m.Called(ctx, barcode, flavor, itype, keepVersion)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Begin(ctx context.Context) (store.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(store.Tx), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var _ store.Store = (*mockStore)(nil)
