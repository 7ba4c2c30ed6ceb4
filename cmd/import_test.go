//go:build !integration

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrybase/insight-cli/internal/model"
)

func TestImportCmd_Metadata(t *testing.T) {
	assert.Equal(t, "import", importCmd.Use)
	assert.NotEmpty(t, importCmd.Short)

	fileFlag := importCmd.Flags().Lookup("file")
	require.NotNil(t, fileFlag)
}

func TestImportCmd_BadFilePath(t *testing.T) {
	importCmd.SetContext(context.Background())
	defer importCmd.SetContext(context.TODO())

	// Point importFilePath at a nonexistent file.
	oldPath := importFilePath
	importFilePath = "/nonexistent/path/to/documents.jsonl"
	defer func() { importFilePath = oldPath }()

	err := importCmd.RunE(importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open documents file")
}

func TestFilterByPredictor(t *testing.T) {
	preds := []model.Prediction{
		{Barcode: "1", Predictor: "regex"},
		{Barcode: "2", Predictor: "curated-list"},
		{Barcode: "3", Predictor: "regex"},
	}

	kept := filterByPredictor(preds, []string{"regex"})
	require.Len(t, kept, 2)
	assert.Equal(t, "1", kept[0].Barcode)
	assert.Equal(t, "3", kept[1].Barcode)
}

func TestFilterByPredictor_EmptyKeepsAll(t *testing.T) {
	preds := []model.Prediction{
		{Barcode: "1", Predictor: "regex"},
		{Barcode: "2", Predictor: "curated-list"},
	}

	kept := filterByPredictor(preds, nil)
	assert.Len(t, kept, 2)
}

func TestFilterByPredictor_UnknownPredictor(t *testing.T) {
	preds := []model.Prediction{
		{Barcode: "1", Predictor: "regex"},
	}

	kept := filterByPredictor(preds, []string{"neural"})
	assert.Empty(t, kept)
}
