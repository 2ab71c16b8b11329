package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nholik/sail-sentinel/internal/config"
	"github.com/nholik/sail-sentinel/internal/logging"
	"github.com/nholik/sail-sentinel/internal/notify"
	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/server"
	"github.com/nholik/sail-sentinel/internal/shell"
	"github.com/nholik/sail-sentinel/internal/state"
	"github.com/nholik/sail-sentinel/internal/task"
	"github.com/nholik/sail-sentinel/internal/ui"
	"github.com/rs/zerolog"
)

const refreshTimeout = time.Second

// app carries the configuration and collaborators shared by subcommands.
// The factories are replaced in tests.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg       config.Config
	workspace string
	logger    zerolog.Logger
	console   *ui.Console

	newShell    func(workspace string, logger zerolog.Logger) shell.Runner
	newExecutor func(workspace string, logger zerolog.Logger, stdin io.Reader, stdout, stderr io.Writer) task.Executor
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:     in,
		out:    out,
		errOut: errOut,
		newShell: func(workspace string, logger zerolog.Logger) shell.Runner {
			return shell.NewExecRunner(workspace, shell.WithLogger(logger))
		},
		newExecutor: func(workspace string, logger zerolog.Logger, stdin io.Reader, stdout, stderr io.Writer) task.Executor {
			return task.NewShellExecutor(workspace, logger, task.WithStreams(stdin, stdout, stderr))
		},
	}
}

// configure loads configuration and applies flag overrides.
func (a *app) configure(workspace, logLevel string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if workspace != "" {
		cfg.Workspace = workspace
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := cfg.WorkspaceDir()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.workspace = dir
	a.logger = logging.NewConsole(a.errOut, cfg.LogLevel)
	a.console = ui.NewConsole(a.out)
	return nil
}

func (a *app) component(name string) zerolog.Logger {
	return logging.Component(a.logger, name)
}

func (a *app) shellRunner() shell.Runner {
	return a.newShell(a.workspace, a.component("shell"))
}

func (a *app) statusClient() *sail.StatusClient {
	return sail.NewStatusClient(a.shellRunner(), a.cfg.SailPath)
}

func (a *app) paths() sail.Paths {
	return sail.Paths{
		Sail:     a.cfg.SailPath,
		Artisan:  a.cfg.ArtisanPath,
		Composer: a.cfg.ComposerPath,
	}
}

func (a *app) taskRunner(stdout, stderr io.Writer, opts ...task.RunnerOption) *task.Runner {
	executor := a.newExecutor(a.workspace, a.component("executor"), a.in, stdout, stderr)
	opts = append([]task.RunnerOption{
		task.WithPHPPath(a.cfg.PHPPath),
		task.WithProgress(a.console),
		task.WithNotifier(a.console),
	}, opts...)
	return task.NewRunner(executor, a.component("tasks"), opts...)
}

// commands builds the command vocabulary for a one-shot CLI invocation.
// State-changing commands poke a running watch process to poll right away.
func (a *app) commands() *sail.Commands {
	return sail.NewCommands(a.taskRunner(a.out, a.errOut), a.shellRunner(), a.watchRefresher(), a.paths())
}

func (a *app) stateStore() state.Store {
	return state.NewFileStore(a.cfg.StatePath(), a.component("state"))
}

func (a *app) watchURL(path string) string {
	return "http://" + server.ListenAddr(a.cfg.LocalHost(), a.cfg.HealthPort) + path
}

// watchRefresher asks a running watch process to poll now. A missing watch
// process is not an error.
type watchRefresher struct {
	client *retryablehttp.Client
	url    string
	logger zerolog.Logger
}

func (a *app) watchRefresher() sail.Refresher {
	if a.cfg.HealthPort == 0 {
		return nil
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.HTTPClient.Timeout = refreshTimeout
	return &watchRefresher{client: client, url: a.watchURL("/api/refresh"), logger: a.component("refresh")}
}

func (r *watchRefresher) Fire() {
	if err := r.post(context.Background()); err != nil {
		r.logger.Debug().Err(err).Str("url", r.url).Msg("watch process not reachable")
	}
}

func (r *watchRefresher) post(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("refresh returned status %d", resp.StatusCode)
	}
	return nil
}

// notifier builds the transition notifier chain from configuration.
func (a *app) notifier() (notify.Notifier, error) {
	logger := a.component("notify")
	var targets []notify.Notifier
	if a.cfg.SlackWebhookURL != "" {
		targets = append(targets, notify.NewSlackNotifier(logger, a.cfg.SlackWebhookURL))
	}
	if a.cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(logger, a.cfg.WebhookURL, a.cfg.WebhookTemplate)
		if err != nil {
			return nil, err
		}
		targets = append(targets, webhook)
	}

	var notifier notify.Notifier
	switch len(targets) {
	case 0:
		notifier = notify.NewNoop(logger, "no notification targets configured")
	case 1:
		notifier = targets[0]
	default:
		notifier = notify.NewMultiNotifier(targets...)
	}
	if a.cfg.DryRun {
		notifier = notify.NewDryRunNotifier(logger, notifier)
	}
	return notifier, nil
}
