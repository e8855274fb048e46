// Package notify delivers operator alerts.
package notify

import (
	"context"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/httpclient"
	"digital.vasic.beekeeper/pkg/logging"
)

// Icons used by beekeeper alerts.
const (
	IconDefault = ":bee:"
	IconFailure = ":illuminati:"
)

// Message is one alert.
type Message struct {
	Text string

	// Username, Channel and Icon override the notifier defaults
	// when set.
	Username string
	Channel  string
	Icon     string
}

// Notifier delivers messages to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// SlackOptions are the defaults applied to every Slack message.
type SlackOptions struct {
	Username string
	Channel  string
	Icon     string
}

// Slack posts messages to a Slack incoming webhook.
type Slack struct {
	client *httpclient.APIClient
	opts   SlackOptions
}

type slackPayload struct {
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	Channel   string `json:"channel,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// NewSlack creates a Slack notifier for the webhook URL.
func NewSlack(webhookURL string, opts SlackOptions, clientOpts ...httpclient.ClientOption) *Slack {
	if opts.Username == "" {
		opts.Username = "beekeeper"
	}
	if opts.Icon == "" {
		opts.Icon = IconDefault
	}
	return &Slack{
		client: httpclient.NewAPIClient(webhookURL, clientOpts...),
		opts:   opts,
	}
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, msg Message) error {
	p := slackPayload{
		Text:      msg.Text,
		Username:  firstNonEmpty(msg.Username, s.opts.Username),
		Channel:   firstNonEmpty(msg.Channel, s.opts.Channel),
		IconEmoji: firstNonEmpty(msg.Icon, s.opts.Icon),
	}
	if err := s.client.PostJSON(ctx, "", p, nil); err != nil {
		return errors.Wrap(err, "post to slack")
	}
	return nil
}

// Muted logs messages instead of delivering them.
type Muted struct {
	Logger logging.Logger
}

// Notify implements Notifier.
func (m Muted) Notify(_ context.Context, msg Message) error {
	if m.Logger != nil {
		m.Logger.Info("alert muted",
			logging.StringField("text", msg.Text),
			logging.StringField("icon", msg.Icon))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
