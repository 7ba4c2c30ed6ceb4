package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/geometry"
	"github.com/pantrybase/insight-cli/internal/model"
)

const defaultSlackChannel = "#insight-alerts"

// slackNotifier posts chat alerts through the Slack Web API.
type slackNotifier struct {
	token      string
	channel    string
	baseDomain string
	baseURL    string
	client     *http.Client
}

func newSlackNotifier(token, channel, baseDomain string) *slackNotifier {
	if channel == "" {
		channel = defaultSlackChannel
	}
	return &slackNotifier{
		token:      token,
		channel:    channel,
		baseDomain: baseDomain,
		baseURL:    "https://slack.com",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyImageFlag is handled by the moderation channel.
func (s *slackNotifier) NotifyImageFlag(ctx context.Context, predictions []model.Prediction, sourceImage string, pid model.ProductID) {
}

func (s *slackNotifier) NotifyAutomaticProcessing(ctx context.Context, insight *model.ProductInsight) {
	text := automaticProcessingMessage(insight, s.baseDomain)
	if err := s.postMessage(ctx, text); err != nil {
		zap.L().Error("notifier: failed to send automatic processing alert",
			zap.String("insight_id", insight.ID),
			zap.Error(err),
		)
	}
}

func (s *slackNotifier) SendLogoNotification(ctx context.Context, logo model.LogoAnnotation, probs map[model.LogoLabel]float64) {
	text := logoMessage(logo, probs, s.baseDomain)
	if err := s.postMessage(ctx, text); err != nil {
		zap.L().Error("notifier: failed to send logo alert",
			zap.Int64("logo_id", logo.ID),
			zap.Error(err),
		)
	}
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// postMessage sends one mrkdwn section block to the configured channel.
func (s *slackNotifier) postMessage(ctx context.Context, text string) error {
	blocks, err := json.Marshal([]map[string]any{{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}})
	if err != nil {
		return eris.Wrap(err, "notifier: marshal blocks")
	}

	form := url.Values{}
	form.Set("token", s.token)
	form.Set("channel", s.channel)
	form.Set("blocks", string(blocks))
	form.Set("unfurl_links", "false")
	form.Set("unfurl_media", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/api/chat.postMessage", strings.NewReader(form.Encode()))
	if err != nil {
		return eris.Wrap(err, "notifier: create slack request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notifier: slack request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "notifier: read slack response")
	}
	if resp.StatusCode >= 300 {
		return eris.Errorf("notifier: slack returned status %d", resp.StatusCode)
	}

	var parsed slackResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return eris.Wrap(err, "notifier: unmarshal slack response")
	}
	if !parsed.OK {
		return eris.Errorf("notifier: slack rejected message: %s", parsed.Error)
	}
	return nil
}

// noopSlackNotifier replaces the chat channel when no token is
// configured; it logs the messages it would have sent.
type noopSlackNotifier struct {
	baseDomain string
}

func (n *noopSlackNotifier) NotifyImageFlag(ctx context.Context, predictions []model.Prediction, sourceImage string, pid model.ProductID) {
}

func (n *noopSlackNotifier) NotifyAutomaticProcessing(ctx context.Context, insight *model.ProductInsight) {
	zap.L().Info("notifier: slack disabled, skipping alert",
		zap.String("message", automaticProcessingMessage(insight, n.baseDomain)),
	)
}

func (n *noopSlackNotifier) SendLogoNotification(ctx context.Context, logo model.LogoAnnotation, probs map[model.LogoLabel]float64) {
	zap.L().Info("notifier: slack disabled, skipping alert",
		zap.String("message", logoMessage(logo, probs, n.baseDomain)),
	)
}

// automaticProcessingMessage describes an automatically applied insight
// with links back to the product edit page and the source image.
func automaticProcessingMessage(insight *model.ProductInsight, baseDomain string) string {
	value := insight.Value
	if value == "" {
		value = insight.ValueTag
	}

	var text string
	switch insight.Type {
	case model.InsightTypeProductWeight, model.InsightTypeExpirationDate:
		raw, _ := insight.DataString("raw")
		text = fmt.Sprintf("The %s `%s` (match: `%s`) was automatically added to product %s",
			insight.Type, value, raw, insight.Barcode)
	default:
		text = fmt.Sprintf("The `%s` %s was automatically added to product %s",
			value, insight.Type, insight.Barcode)
	}

	pid := insight.ProductID()
	lines := []string{text, "", fmt.Sprintf("<%s|Edit product>", catalog.ProductEditURL(pid, baseDomain))}
	if insight.SourceImage != "" {
		lines = append(lines, fmt.Sprintf("<%s|Source image>", insightImageURL(insight, baseDomain)))
	}
	return strings.Join(lines, "\n")
}

// insightImageURL links the region the insight was extracted from when
// its data pins a bounding box, the full source image otherwise.
func insightImageURL(insight *model.ProductInsight, baseDomain string) string {
	full := catalog.ImageURL(baseDomain, insight.SourceImage)
	if box, ok := relativeBox(insight.Data["bounding_box"]); ok {
		return catalog.CropImageURL(baseDomain, full, box)
	}
	return full
}

// relativeBox decodes a stored [x_min, y_min, x_max, y_max] fraction
// array from insight data.
func relativeBox(raw any) (geometry.BoundingBox, bool) {
	arr, ok := raw.([]any)
	if !ok || len(arr) != 4 {
		return geometry.BoundingBox{}, false
	}
	var coords [4]float64
	for i, v := range arr {
		f, ok := v.(float64)
		if !ok {
			return geometry.BoundingBox{}, false
		}
		coords[i] = f
	}
	return geometry.BoundingBox{XMin: coords[0], YMin: coords[1], XMax: coords[2], YMax: coords[3]}, true
}

// logoMessage links the logo crop, the annotation tool, and the product,
// followed by classification probabilities in descending order.
func logoMessage(logo model.LogoAnnotation, probs map[model.LogoLabel]float64, baseDomain string) string {
	bb := logo.BoundingBox
	cropURL := catalog.CropImageURL(baseDomain,
		catalog.ImageURL(baseDomain, logo.SourceImage),
		geometry.BoundingBox{YMin: bb[1], XMin: bb[0], YMax: bb[3], XMax: bb[2]},
	)
	annotateURL := fmt.Sprintf("https://annotate.%s/logos?logo_id=%d", baseDomain, logo.ID)
	productURL := catalog.ProductURL(logo.ProductID(), baseDomain)

	lines := []string{
		fmt.Sprintf("Probable new logo on product <%s|%s>", productURL, logo.Barcode),
		fmt.Sprintf("<%s|Logo crop> | <%s|Annotate>", cropURL, annotateURL),
	}

	type labelProb struct {
		label model.LogoLabel
		prob  float64
	}
	ranked := make([]labelProb, 0, len(probs))
	for label, prob := range probs {
		ranked = append(ranked, labelProb{label, prob})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].prob != ranked[j].prob {
			return ranked[i].prob > ranked[j].prob
		}
		return ranked[i].label.String() < ranked[j].label.String()
	})
	for _, lp := range ranked {
		lines = append(lines, fmt.Sprintf("%s: %.2f", lp.label, lp.prob))
	}
	return strings.Join(lines, "\n")
}
