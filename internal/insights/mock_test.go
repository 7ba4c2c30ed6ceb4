package insights

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/internal/notifier"
	"github.com/pantrybase/insight-cli/internal/store"
)

// --- Catalog Mock ---

type mockCatalogClient struct {
	mock.Mock
}

func (m *mockCatalogClient) GetProduct(ctx context.Context, pid model.ProductID, fields []string) (*catalog.Product, error) {
	args := m.Called(ctx, pid, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *mockCatalogClient) UpdateProduct(ctx context.Context, pid model.ProductID, params map[string]string, comment string) error {
	args := m.Called(ctx, pid, params, comment)
	return args.Error(0)
}

func (m *mockCatalogClient) AddCategory(ctx context.Context, pid model.ProductID, categoryTag, comment string) error {
	args := m.Called(ctx, pid, categoryTag, comment)
	return args.Error(0)
}

func (m *mockCatalogClient) SaveIngredients(ctx context.Context, pid model.ProductID, text, lang, comment string) error {
	args := m.Called(ctx, pid, text, lang, comment)
	return args.Error(0)
}

func (m *mockCatalogClient) SelectRotateImage(ctx context.Context, pid model.ProductID, params catalog.SelectRotateParams) error {
	args := m.Called(ctx, pid, params)
	return args.Error(0)
}

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

// --- Notifier Mock ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyImageFlag(ctx context.Context, predictions []model.Prediction, sourceImage string, pid model.ProductID) {
	m.Called(ctx, predictions, sourceImage, pid)
}

func (m *mockNotifier) NotifyAutomaticProcessing(ctx context.Context, insight *model.ProductInsight) {
	m.Called(ctx, insight)
}

func (m *mockNotifier) SendLogoNotification(ctx context.Context, logo model.LogoAnnotation, probs map[model.LogoLabel]float64) {
	m.Called(ctx, logo, probs)
}

// --- Ensure interface compliance ---
var (
	_ catalog.Client    = (*mockCatalogClient)(nil)
	_ store.Store       = (*mockStore)(nil)
	_ notifier.Notifier = (*mockNotifier)(nil)
)
