package action

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
)

// SlackSink posts a short notice for every dispatch to a slack channel, through an "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace. Slack messages are notifications only, and this sink is normally combined with an executing sink in a MultiSink.
type SlackSink struct {
	WebhookURL string
	Client     *http.Client
}

var _ Sink = (*SlackSink)(nil)

func FormatDispatch(d *Dispatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ automod: rule `%s` fired `%s`", d.RuleName, d.Action.Kind())
	if d.GuildID != 0 {
		fmt.Fprintf(&b, " in guild `%s`", d.GuildID)
	}
	switch a := d.Action.(type) {
	case Ban:
		fmt.Fprintf(&b, " for user `%s`", a.UserID)
	case Kick:
		fmt.Fprintf(&b, " for user `%s`", a.UserID)
	case Mute:
		fmt.Fprintf(&b, " for user `%s` (%s)", a.UserID, a.Duration)
	}
	return b.String()
}

func (s *SlackSink) Execute(ctx context.Context, d *Dispatch) error {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	msg := &slack.WebhookMessage{Text: FormatDispatch(d)}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, client, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
