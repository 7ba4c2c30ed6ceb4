package insights

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/internal/notifier"
	"github.com/pantrybase/insight-cli/internal/store"
)

// Processor drives annotation decisions through the store in per-insight
// transactions.
type Processor struct {
	store     store.Store
	registry  *Registry
	notifier  notifier.Notifier
	batchSize int
}

// NewProcessor creates a Processor. batchSize caps how many due insights
// one ProcessDueInsights call handles (default 100).
func NewProcessor(st store.Store, registry *Registry, notif notifier.Notifier, batchSize int) *Processor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Processor{store: st, registry: registry, notifier: notif, batchSize: batchSize}
}

// ProcessSummary counts the outcomes of one processing batch.
type ProcessSummary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ProcessDueInsights applies every due automatic insight, each in its own
// transaction. A failure rolls back that insight only; the rest of the
// batch continues. Insights left unprocessed by a crash stay pending and
// are picked up on the next run.
func (p *Processor) ProcessDueInsights(ctx context.Context) (ProcessSummary, error) {
	due, err := p.store.ListDueInsights(ctx, time.Now().UTC(), p.batchSize)
	if err != nil {
		return ProcessSummary{}, eris.Wrap(err, "insights: list due insights")
	}

	var summary ProcessSummary
	for i := range due {
		switch p.processOne(ctx, &due[i]) {
		case outcomeProcessed:
			summary.Processed++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeFailed:
			summary.Failed++
		}
	}

	zap.L().Info("automatic processing complete",
		zap.Int("due", len(due)),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (p *Processor) processOne(ctx context.Context, insight *model.ProductInsight) outcome {
	log := zap.L().With(
		zap.String("insight_id", insight.ID),
		zap.String("type", string(insight.Type)),
		zap.String("barcode", insight.Barcode),
	)

	tx, err := p.store.Begin(ctx)
	if err != nil {
		log.Error("insight processing failed", zap.Error(err))
		return outcomeFailed
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	// Re-read under lock: the insight may have been annotated or deleted
	// since the batch was listed.
	locked, err := tx.LockInsight(ctx, insight.ID)
	if err != nil {
		log.Error("insight processing failed", zap.Error(err))
		return outcomeFailed
	}
	if locked == nil || locked.Annotated() {
		return outcomeSkipped
	}

	annotator, ok := p.registry.Get(locked.Type)
	if !ok {
		log.Error("insight processing failed",
			zap.Error(eris.Errorf("no annotator registered for type %s", locked.Type)))
		return outcomeFailed
	}

	accept := model.AnnotationAccept
	locked.Annotation = &accept

	result, err := annotator.ProcessAnnotation(ctx, locked, nil, false)
	if err != nil {
		log.Error("insight processing failed", zap.Error(err))
		return outcomeFailed
	}
	if !result.Terminal() {
		log.Error("insight processing failed",
			zap.Error(eris.Errorf("non-terminal result %s for automatic annotation", result.Status)))
		return outcomeFailed
	}

	now := time.Now().UTC()
	locked.CompletedAt = &now
	if err := tx.SaveAnnotation(ctx, locked); err != nil {
		log.Error("insight processing failed", zap.Error(err))
		return outcomeFailed
	}
	if err := tx.Commit(ctx); err != nil {
		log.Error("insight processing failed", zap.Error(err))
		return outcomeFailed
	}
	committed = true

	log.Info("insight processed",
		zap.String("status", result.Status),
		zap.String("value_tag", locked.ValueTag),
	)

	// Best-effort, after the commit: a notification must never undo a
	// catalog write.
	if result.StatusCode == model.StatusUpdated {
		p.notifier.NotifyAutomaticProcessing(ctx, locked)
	}
	return outcomeProcessed
}

// Annotate applies a single annotation decision to one insight. Accepts
// run the type's annotator; refusals and skips only record the decision.
// An already-annotated insight is left untouched.
func (p *Processor) Annotate(ctx context.Context, insightID string, annotation int, data map[string]any, username string, isVote bool) (model.AnnotationResult, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: begin annotate")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	insight, err := tx.LockInsight(ctx, insightID)
	if err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: lock insight")
	}
	if insight == nil {
		return model.AnnotationResult{}, eris.Errorf("insight not found: %s", insightID)
	}
	if insight.Annotated() {
		return model.AlreadyAnnotatedResult, nil
	}

	insight.Annotation = &annotation
	if username != "" {
		insight.Username = username
	}
	if isVote {
		insight.NVotes++
	}

	result := model.SavedResult
	if annotation == model.AnnotationAccept {
		annotator, ok := p.registry.Get(insight.Type)
		if !ok {
			return model.AnnotationResult{}, eris.Errorf("no annotator registered for type %s", insight.Type)
		}
		result, err = annotator.ProcessAnnotation(ctx, insight, data, isVote)
		if err != nil {
			return model.AnnotationResult{}, err
		}
	}

	if !result.Terminal() {
		return result, nil
	}

	now := time.Now().UTC()
	insight.CompletedAt = &now
	if err := tx.SaveAnnotation(ctx, insight); err != nil {
		return model.AnnotationResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: commit annotate")
	}
	committed = true
	return result, nil
}
