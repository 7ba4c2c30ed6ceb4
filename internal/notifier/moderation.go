package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/model"
)

// moderationNotifier files one moderation report per flagged prediction.
type moderationNotifier struct {
	url        string
	baseDomain string
	client     *http.Client
}

func newModerationNotifier(serviceURL, baseDomain string) *moderationNotifier {
	return &moderationNotifier{
		url:        serviceURL,
		baseDomain: baseDomain,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *moderationNotifier) NotifyImageFlag(ctx context.Context, predictions []model.Prediction, sourceImage string, pid model.ProductID) {
	for i := range predictions {
		pred := &predictions[i]
		flagType, _ := pred.Data["type"].(string)
		label, _ := pred.Data["label"].(string)

		// Text matches against the beauty keyword list are too noisy to
		// report.
		if flagType == "text" && label == "beauty" {
			continue
		}

		if err := m.report(ctx, pred, flagType, label, sourceImage, pid); err != nil {
			zap.L().Error("notifier: failed to file moderation report",
				zap.String("barcode", pid.Barcode),
				zap.String("image", sourceImage),
				zap.Error(err),
			)
		}
	}
}

func (m *moderationNotifier) NotifyAutomaticProcessing(ctx context.Context, insight *model.ProductInsight) {
}

func (m *moderationNotifier) SendLogoNotification(ctx context.Context, logo model.LogoAnnotation, probs map[model.LogoLabel]float64) {
}

// moderationReport is the JSON body filed with the moderation service.
type moderationReport struct {
	Barcode    string   `json:"barcode"`
	Type       string   `json:"type"`
	URL        string   `json:"url"`
	UserID     string   `json:"user_id"`
	Source     string   `json:"source"`
	ImageID    string   `json:"image_id"`
	Flavor     string   `json:"flavor"`
	Reason     string   `json:"reason"`
	Comment    string   `json:"comment"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (m *moderationNotifier) report(ctx context.Context, pred *model.Prediction, flagType, label, sourceImage string, pid model.ProductID) error {
	body, err := json.Marshal(moderationReport{
		Barcode:    pid.Barcode,
		Type:       "image",
		URL:        catalog.ImageURL(m.baseDomain, sourceImage),
		UserID:     "insight-bot",
		Source:     "insight-bot",
		ImageID:    model.ImageIDFromPath(sourceImage),
		Flavor:     string(pid.Flavor),
		Reason:     flagReason(flagType, label),
		Comment:    flagComment(pred, label),
		Confidence: pred.Confidence,
	})
	if err != nil {
		return eris.Wrap(err, "notifier: marshal moderation report")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notifier: create moderation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notifier: moderation request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return eris.Errorf("notifier: moderation service returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// flagReason classifies the report for the moderation queue.
func flagReason(flagType, label string) string {
	switch {
	case flagType == "safe_search":
		return "inappropriate"
	case flagType == "face_annotation":
		return "human"
	case model.IsHumanFlagLabel(label):
		return "human"
	default:
		return "other"
	}
}

func flagComment(pred *model.Prediction, label string) string {
	comment := "Automated detection"
	if text, ok := pred.Data["text"].(string); ok && text != "" {
		return fmt.Sprintf("%s: '%s'", comment, text)
	}
	if label != "" {
		return fmt.Sprintf("%s (%s)", comment, label)
	}
	return comment
}
