package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nholik/sail-sentinel/internal/compose"
	"github.com/nholik/sail-sentinel/internal/engine"
	"github.com/nholik/sail-sentinel/internal/notify"
	"github.com/nholik/sail-sentinel/internal/project"
	"github.com/nholik/sail-sentinel/internal/shell"
	"github.com/nholik/sail-sentinel/internal/ui"
	"github.com/spf13/cobra"
)

type check struct {
	name   string
	ok     bool
	detail string
}

func (c check) row() []string {
	status := ui.Success("ok")
	if !c.ok {
		status = ui.Error("fail")
	}
	return []string{c.name, status, c.detail}
}

// composeProjectName mirrors how Compose names a project: COMPOSE_PROJECT_NAME
// or the lowercased directory name stripped to [a-z0-9_-].
func composeProjectName(dir string, env map[string]string) string {
	if name := strings.TrimSpace(env["COMPOSE_PROJECT_NAME"]); name != "" {
		return name
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, strings.ToLower(filepath.Base(dir)))
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the workspace, shell, project and container engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks := a.runChecks(cmd.Context())

			rows := make([][]string, 0, len(checks))
			failed := 0
			for _, c := range checks {
				rows = append(rows, c.row())
				if !c.ok {
					failed++
				}
			}
			fmt.Fprintln(a.out, ui.Table([]string{"Check", "Status", "Detail"}, rows))
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(checks))
			}
			a.console.Success("Everything looks good")
			return nil
		},
	}
}

func (a *app) runChecks(ctx context.Context) []check {
	var checks []check

	dir, err := shell.ResolveWorkspace(a.workspace)
	if err != nil {
		return append(checks, check{name: "workspace", detail: err.Error()})
	}
	checks = append(checks, check{name: "workspace", ok: true, detail: dir})

	if err := shell.Default().Verify(ctx); err != nil {
		checks = append(checks, check{name: "shell", detail: err.Error()})
	} else {
		checks = append(checks, check{name: "shell", ok: true, detail: "ready"})
	}

	info, err := project.Detect(dir)
	switch {
	case err != nil:
		checks = append(checks, check{name: "laravel", detail: err.Error()})
	case !info.IsLaravel:
		checks = append(checks, check{name: "laravel", detail: "laravel/framework is not required in composer.json"})
	default:
		checks = append(checks, check{name: "laravel", ok: true, detail: "laravel/framework found"})
	}
	if info.IsLaravel {
		if info.SailInstalled {
			checks = append(checks, check{name: "sail", ok: true, detail: "laravel/sail found"})
		} else {
			checks = append(checks, check{name: "sail", detail: "laravel/sail is not installed; run `sail-sentinel install`"})
		}
	}

	env, err := project.Env(dir)
	if err != nil {
		checks = append(checks, check{name: ".env", detail: err.Error()})
		env = map[string]string{}
	}

	if info.ComposeFile == "" {
		checks = append(checks, check{name: "compose file", detail: "NOT FOUND; run `sail-sentinel publish`"})
	} else {
		var cache compose.Cache
		declared, err := cache.Load(ctx, info.ComposeFile, env)
		if err != nil {
			checks = append(checks, check{name: "compose file", detail: err.Error()})
		} else {
			checks = append(checks, check{name: "compose file", ok: true,
				detail: fmt.Sprintf("%s: %s", filepath.Base(info.ComposeFile), strings.Join(declared.Names(), ", "))})
		}
	}

	checks = append(checks, a.notificationCheck())
	checks = append(checks, a.engineChecks(ctx, composeProjectName(dir, env))...)
	return checks
}

func (a *app) notificationCheck() check {
	notifier, err := a.notifier()
	if err != nil {
		return check{name: "notifications", detail: err.Error()}
	}
	if noop, ok := notifier.(*notify.NoopNotifier); ok {
		return check{name: "notifications", ok: true, detail: noop.Reason()}
	}
	var targets []string
	if a.cfg.SlackWebhookURL != "" {
		targets = append(targets, "slack")
	}
	if a.cfg.WebhookURL != "" {
		targets = append(targets, "webhook")
	}
	detail := strings.Join(targets, ", ")
	if detail == "" {
		detail = "none configured"
	}
	if a.cfg.DryRun {
		detail += " (dry run)"
	}
	return check{name: "notifications", ok: true, detail: detail}
}

func (a *app) engineChecks(ctx context.Context, projectName string) []check {
	client, err := engine.NewClient(a.cfg.DockerHost, a.cfg.StatusTimeout)
	if err != nil {
		return []check{{name: "docker", detail: err.Error()}}
	}
	defer client.Close()

	pingInfo, err := client.Ping(ctx)
	if err != nil {
		if shell.IsEngineUnavailable(err) {
			return []check{{name: "docker", detail: dockerNotRunning}}
		}
		return []check{{name: "docker", detail: err.Error()}}
	}
	checks := []check{{name: "docker", ok: true, detail: fmt.Sprintf("API %s (%s)", pingInfo.APIVersion, pingInfo.OSType)}}

	containers, err := client.ProjectContainers(ctx, projectName)
	if err != nil {
		return append(checks, check{name: "containers", detail: err.Error()})
	}
	running := 0
	for _, c := range containers {
		if c.State == "running" {
			running++
		}
	}
	return append(checks, check{name: "containers", ok: true,
		detail: fmt.Sprintf("project %q: %d of %d running", projectName, running, len(containers))})
}
