package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/internal/ocr"
)

// Document is one OCR capture of a product image, as produced by the
// upstream OCR pipeline (one JSON object per line).
type Document struct {
	Barcode     string       `json:"barcode"`
	Flavor      model.Flavor `json:"flavor"`
	SourceImage string       `json:"source_image"`
	Text        string       `json:"text"`
	Languages   []string     `json:"languages,omitempty"`
}

// maxDocumentLine bounds a single OCR document line. Full-page OCR text
// runs to a few hundred KB at most.
const maxDocumentLine = 4 * 1024 * 1024

// ReadDocuments parses newline-delimited JSON documents. Blank lines
// are skipped; a malformed line or a missing barcode fails the whole
// read, since a half-imported file is harder to recover from than a
// rejected one.
func ReadDocuments(r io.Reader) ([]Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDocumentLine)

	var docs []Document
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, eris.Wrapf(err, "importer: parse document line %d", line)
		}
		if doc.Barcode == "" {
			return nil, eris.Errorf("importer: document line %d has no barcode", line)
		}
		doc.Flavor = model.ParseFlavor(string(doc.Flavor))
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "importer: read documents")
	}
	return docs, nil
}

// ExtractPredictions runs the OCR extractors over docs with at most
// concurrency documents in flight, stamping each prediction with its
// document's product identity and source image.
func ExtractPredictions(ctx context.Context, docs []Document, concurrency int) ([]model.Prediction, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var preds []model.Prediction

	for _, doc := range docs {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			found := extractDocument(doc)
			if len(found) == 0 {
				return nil
			}

			mu.Lock()
			preds = append(preds, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return preds, nil
}

func extractDocument(doc Document) []model.Prediction {
	var preds []model.Prediction
	preds = append(preds, ocr.FindNutrientValues(doc.Text)...)
	preds = append(preds, ocr.FindNutrientMentions(doc.Text, doc.Languages)...)
	preds = append(preds, ocr.FindBrands(doc.Text)...)

	for i := range preds {
		preds[i].Barcode = doc.Barcode
		preds[i].Flavor = doc.Flavor
		preds[i].SourceImage = doc.SourceImage
	}
	return preds
}
