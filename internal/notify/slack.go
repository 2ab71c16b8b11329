package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/transition"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	// Slack rejects messages with more than 50 blocks.
	slackMaxBlocks = 50
	// header and context
	slackReservedBlocks = 2
	slackMaxTransitions = slackMaxBlocks - slackReservedBlocks
)

// SlackNotifier posts service transitions to a Slack incoming webhook.
type SlackNotifier struct {
	logger   zerolog.Logger
	endpoint *endpoint
}

// NewSlackNotifier returns a SlackNotifier, or a NoopNotifier when webhookURL
// is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...Option) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}
	return &SlackNotifier{
		logger:   logger,
		endpoint: newEndpoint(logger, "slack", webhookURL, buildPacing(opts)),
	}
}

// Notify implements Notifier. Large batches are split across several
// messages so each stays under Slack's block limit.
func (n *SlackNotifier) Notify(ctx context.Context, project string, transitions []transition.ServiceTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	name := projectLabel(project)

	messages := buildSlackMessages(name, transitions)
	payloads := make([][]byte, 0, len(messages))
	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		payloads = append(payloads, payload)
	}
	if err := n.endpoint.deliver(ctx, name, payloads...); err != nil {
		return err
	}

	n.logger.Debug().
		Str("project", name).
		Int("transitions", len(transitions)).
		Int("messages", len(messages)).
		Msg("slack notification sent")
	return nil
}

func buildSlackMessages(project string, transitions []transition.ServiceTransition) []slack.WebhookMessage {
	if len(transitions) == 0 {
		return nil
	}
	summary := summarize(project, transitions)
	parts := (len(transitions) + slackMaxTransitions - 1) / slackMaxTransitions

	messages := make([]slack.WebhookMessage, 0, parts)
	for chunk := range slices.Chunk(transitions, slackMaxTransitions) {
		messages = append(messages, buildSlackMessage(project, summary, chunk, len(messages)+1, parts))
	}
	return messages
}

// summarize reads like "Sail project shop: 3 service transition(s), 1 stopped".
func summarize(project string, transitions []transition.ServiceTransition) string {
	stopped := 0
	for _, change := range transitions {
		if change.Current != sail.RunStateRunning {
			stopped++
		}
	}
	summary := fmt.Sprintf("Sail project %s: %d service transition(s)", project, len(transitions))
	if stopped > 0 {
		summary += fmt.Sprintf(", %d stopped", stopped)
	}
	return summary
}

func buildSlackMessage(project, summary string, chunk []transition.ServiceTransition, part, parts int) slack.WebhookMessage {
	text := summary
	if parts > 1 {
		text = fmt.Sprintf("%s (part %d/%d)", summary, part, parts)
	}

	blocks := make([]slack.Block, 0, slackReservedBlocks+len(chunk))
	blocks = append(blocks,
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, text, false, false)),
		slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("Project: *%s*", project), false, false)),
	)
	for _, change := range chunk {
		blocks = append(blocks, buildTransitionBlock(change))
	}

	return slack.WebhookMessage{
		Text:   text,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

func buildTransitionBlock(change transition.ServiceTransition) slack.Block {
	title := fmt.Sprintf("%s *%s*: `%s` → `%s`",
		stateIcon(change.Current),
		change.Name,
		stateLabel(change.Previous, "NEW"),
		stateLabel(change.Current, "REMOVED"),
	)

	var fields []*slack.TextBlockObject
	if change.Image != "" {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Image:*\n`%s`", change.Image), false, false))
	}
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, title, false, false), fields, nil)
}

func stateIcon(state sail.RunState) string {
	if state == sail.RunStateRunning {
		return ":large_green_circle:"
	}
	return ":red_circle:"
}

func stateLabel(state sail.RunState, empty string) string {
	if state == "" {
		return empty
	}
	return strings.ToUpper(string(state))
}
