package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name     string
		composer string
		compose  string
		want     Info
	}{
		{
			name: "no composer.json",
		},
		{
			name:     "not laravel",
			composer: `{"require":{"symfony/console":"^7.0"}}`,
		},
		{
			name:     "laravel without sail",
			composer: `{"require":{"php":"^8.2","laravel/framework":"^11.0"}}`,
			want:     Info{IsLaravel: true},
		},
		{
			name:     "sail in require-dev",
			composer: `{"require":{"laravel/framework":"^11.0"},"require-dev":{"laravel/sail":"^1.26"}}`,
			compose:  "docker-compose.yml",
			want:     Info{IsLaravel: true, SailInstalled: true, ComposeFile: "docker-compose.yml"},
		},
		{
			name:     "sail in require",
			composer: `{"require":{"laravel/framework":"^11.0","laravel/sail":"^1.26"}}`,
			compose:  "compose.yaml",
			want:     Info{IsLaravel: true, SailInstalled: true, ComposeFile: "compose.yaml"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if tc.composer != "" {
				writeFile(t, dir, "composer.json", tc.composer)
			}
			if tc.compose != "" {
				writeFile(t, dir, tc.compose, "services: {}\n")
			}

			got, err := Detect(dir)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}

			want := tc.want
			want.Dir = dir
			if want.ComposeFile != "" {
				want.ComposeFile = filepath.Join(dir, want.ComposeFile)
			}
			if got != want {
				t.Fatalf("expected %+v, got %+v", want, got)
			}
		})
	}
}

func TestDetect_InvalidComposerJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "composer.json", "{")

	if _, err := Detect(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnv(t *testing.T) {
	dir := t.TempDir()

	env, err := Env(dir)
	if err != nil || len(env) != 0 {
		t.Fatalf("expected empty env for missing file, got %v %v", env, err)
	}

	writeFile(t, dir, ".env", "APP_PORT=8080\nFORWARD_DB_PORT=33060\n")
	env, err = Env(dir)
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	if env["APP_PORT"] != "8080" || env["FORWARD_DB_PORT"] != "33060" {
		t.Fatalf("unexpected env: %v", env)
	}
}
