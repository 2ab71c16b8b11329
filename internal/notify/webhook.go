package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

const defaultWebhookTemplate = `{"project":"{{ .Project }}","transitions":{{ toJson .Transitions }}}`

// WebhookPayload is the data a webhook template is executed against.
type WebhookPayload struct {
	Project     string
	Transitions []transition.ServiceTransition
	// Stopped lists the services whose new state is anything but running.
	Stopped     []string
	GeneratedAt time.Time
}

// WebhookNotifier renders transitions through a text/template and posts the
// result to an arbitrary URL.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	endpoint *endpoint
}

var webhookFuncs = template.FuncMap{
	"toJson": func(v any) (string, error) {
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	},
	"join": strings.Join,
}

// NewWebhookNotifier parses tmpl, falling back to a JSON body listing the
// transitions. It returns nil when webhookURL is empty.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL, tmpl string, opts ...Option) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultWebhookTemplate
	}
	parsed, err := template.New("webhook").Funcs(webhookFuncs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}
	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		endpoint: newEndpoint(logger, "webhook", webhookURL, buildPacing(opts)),
	}, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, project string, transitions []transition.ServiceTransition) error {
	if n == nil || len(transitions) == 0 {
		return nil
	}
	name := projectLabel(project)

	body, err := n.render(name, transitions)
	if err != nil {
		return err
	}
	if err := n.endpoint.deliver(ctx, name, body); err != nil {
		return err
	}

	n.logger.Debug().
		Str("project", name).
		Int("transitions", len(transitions)).
		Msg("webhook notification sent")
	return nil
}

func (n *WebhookNotifier) render(project string, transitions []transition.ServiceTransition) ([]byte, error) {
	payload := WebhookPayload{
		Project:     project,
		Transitions: transitions,
		GeneratedAt: time.Now().UTC(),
	}
	for _, change := range transitions {
		if change.Current != sail.RunStateRunning {
			payload.Stopped = append(payload.Stopped, change.Name)
		}
	}

	var buf bytes.Buffer
	if err := n.template.Execute(&buf, payload); err != nil {
		return nil, fmt.Errorf("render webhook template: %w", err)
	}
	return buf.Bytes(), nil
}
