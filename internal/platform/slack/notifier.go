package slack

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// Notifier posts compliance digests to a Slack incoming webhook.
type Notifier struct {
	webhookURL string
}

// New returns nil when no webhook is configured; a nil Notifier drops messages.
func New(webhookURL string) *Notifier {
	if strings.TrimSpace(webhookURL) == "" {
		return nil
	}
	return &Notifier{webhookURL: webhookURL}
}

func (n *Notifier) Configured() bool {
	return n != nil && n.webhookURL != ""
}

// Post sends a header block followed by one section per line.
func (n *Notifier) Post(ctx context.Context, title string, lines []string) error {
	if !n.Configured() {
		return nil
	}
	msg := &slack.WebhookMessage{
		Text:   title,
		Blocks: BuildBlocks(title, lines),
	}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post slack webhook")
	}
	return nil
}

const maxSectionLines = 20

func BuildBlocks(title string, lines []string) *slack.Blocks {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false)),
	}
	for start := 0; start < len(lines); start += maxSectionLines {
		end := min(start+maxSectionLines, len(lines))
		text := slack.NewTextBlockObject(slack.MarkdownType, strings.Join(lines[start:end], "\n"), false, false)
		blocks = append(blocks, slack.NewSectionBlock(text, nil, nil))
	}
	return &slack.Blocks{BlockSet: blocks}
}
