//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrybase/insight-cli/internal/model"
)

func TestParseStatusFilter(t *testing.T) {
	annotated, err := parseStatusFilter("")
	require.NoError(t, err)
	assert.Nil(t, annotated)

	annotated, err = parseStatusFilter("pending")
	require.NoError(t, err)
	require.NotNil(t, annotated)
	assert.False(t, *annotated)

	annotated, err = parseStatusFilter("annotated")
	require.NoError(t, err)
	require.NotNil(t, annotated)
	assert.True(t, *annotated)

	_, err = parseStatusFilter("done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestFormatInsightsList(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	accept := 1
	list := []model.ProductInsight{
		{
			ID:                  "abc12345-6789-0000-0000-000000000000",
			Barcode:             "3017620422003",
			Flavor:              model.FlavorFood,
			Type:                model.InsightTypeCategory,
			ValueTag:            "en:teas",
			AutomaticProcessing: true,
			CreatedAt:           now,
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			Barcode:    "5000112345678",
			Flavor:     model.FlavorFood,
			Type:       model.InsightTypeBrand,
			ValueTag:   "nutella",
			Annotation: &accept,
			CreatedAt:  now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatInsightsList(&buf, list)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "BARCODE")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "3017620422003")
	assert.Contains(t, output, "en:teas")
	assert.Contains(t, output, "yes")
	assert.Contains(t, output, "pending")
	assert.Contains(t, output, "annotated(1)")
	assert.Contains(t, output, "2026-03-10 14:30")
}

func TestInsightStats(t *testing.T) {
	accept := 1
	refuse := -1
	list := []model.ProductInsight{
		{ID: "1", Type: model.InsightTypeCategory, AutomaticProcessing: true},
		{ID: "2", Type: model.InsightTypeCategory, Annotation: &accept},
		{ID: "3", Type: model.InsightTypeBrand, Annotation: &refuse},
		{ID: "4", Type: model.InsightTypeNutrient},
	}

	stats := computeInsightStats(list)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 2, stats.Annotated)
	assert.Equal(t, 1, stats.Automatic)
	assert.Equal(t, 2, stats.ByType[model.InsightTypeCategory])
	assert.Equal(t, 1, stats.ByType[model.InsightTypeBrand])
	assert.Equal(t, 1, stats.ByType[model.InsightTypeNutrient])

	var buf bytes.Buffer
	formatInsightStats(&buf, stats)

	output := buf.String()
	assert.Contains(t, output, "Total insights:")
	assert.Contains(t, output, "Pending:")
	assert.Contains(t, output, "Annotated:")
	assert.Contains(t, output, "Automatic:")
	assert.Contains(t, output, "category:")
	assert.Contains(t, output, "brand:")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
