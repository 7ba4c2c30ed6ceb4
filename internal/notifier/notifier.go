// Package notifier reports insight activity to chat and moderation
// channels. Delivery is best-effort: a channel failure is logged and
// never propagates to the caller.
package notifier

import (
	"context"

	"github.com/pantrybase/insight-cli/internal/model"
)

// Notifier publishes insight events. Methods return no error; failures
// are contained per channel.
type Notifier interface {
	// NotifyImageFlag reports flagged image content for moderation.
	NotifyImageFlag(ctx context.Context, predictions []model.Prediction, sourceImage string, pid model.ProductID)
	// NotifyAutomaticProcessing announces an automatically applied insight.
	NotifyAutomaticProcessing(ctx context.Context, insight *model.ProductInsight)
	// SendLogoNotification announces a newly detected logo with its
	// classification probabilities.
	SendLogoNotification(ctx context.Context, logo model.LogoAnnotation, probs map[model.LogoLabel]float64)
}

// Config selects and configures the notification channels.
type Config struct {
	SlackToken    string `yaml:"slack_token" mapstructure:"slack_token"`
	SlackChannel  string `yaml:"slack_channel" mapstructure:"slack_channel"`
	ModerationURL string `yaml:"moderation_url" mapstructure:"moderation_url"`
	BaseDomain    string `yaml:"base_domain" mapstructure:"base_domain"`
}

// New builds the notifier stack from config. Without a Slack token the
// chat channel degrades to log-only output; the moderation channel is
// added when its service URL is configured.
func New(cfg Config) Notifier {
	baseDomain := cfg.BaseDomain
	if baseDomain == "" {
		baseDomain = "pantrybase.org"
	}

	var notifiers []Notifier
	if cfg.SlackToken != "" {
		notifiers = append(notifiers, newSlackNotifier(cfg.SlackToken, cfg.SlackChannel, baseDomain))
	} else {
		notifiers = append(notifiers, &noopSlackNotifier{baseDomain: baseDomain})
	}
	if cfg.ModerationURL != "" {
		notifiers = append(notifiers, newModerationNotifier(cfg.ModerationURL, baseDomain))
	}

	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return &multiNotifier{notifiers: notifiers}
}

// multiNotifier fans every call out to all children sequentially.
type multiNotifier struct {
	notifiers []Notifier
}

func (m *multiNotifier) NotifyImageFlag(ctx context.Context, predictions []model.Prediction, sourceImage string, pid model.ProductID) {
	for _, n := range m.notifiers {
		n.NotifyImageFlag(ctx, predictions, sourceImage, pid)
	}
}

func (m *multiNotifier) NotifyAutomaticProcessing(ctx context.Context, insight *model.ProductInsight) {
	for _, n := range m.notifiers {
		n.NotifyAutomaticProcessing(ctx, insight)
	}
}

func (m *multiNotifier) SendLogoNotification(ctx context.Context, logo model.LogoAnnotation, probs map[model.LogoLabel]float64) {
	for _, n := range m.notifiers {
		n.SendLogoNotification(ctx, logo, probs)
	}
}
