// Package project inspects a workspace to decide whether it is a Laravel
// application and whether Sail is installed in it.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	frameworkPackage = "laravel/framework"
	sailPackage      = "laravel/sail"
)

// composeFileNames are checked in order.
var composeFileNames = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yaml", "compose.yml"}

// Info summarizes what Detect found.
type Info struct {
	Dir           string `json:"dir"`
	IsLaravel     bool   `json:"is_laravel"`
	SailInstalled bool   `json:"sail_installed"`
	ComposeFile   string `json:"compose_file,omitempty"`
}

type composerManifest struct {
	Require    map[string]string `json:"require"`
	RequireDev map[string]string `json:"require-dev"`
}

// Detect reads composer.json in dir. A missing composer.json is not an error:
// the directory simply is not a Laravel project.
func Detect(dir string) (Info, error) {
	info := Info{Dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, "composer.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return info, nil
		}
		return info, err
	}

	var manifest composerManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return info, fmt.Errorf("parse composer.json: %w", err)
	}

	_, info.IsLaravel = manifest.Require[frameworkPackage]
	_, inRequire := manifest.Require[sailPackage]
	_, inRequireDev := manifest.RequireDev[sailPackage]
	info.SailInstalled = inRequire || inRequireDev

	for _, name := range composeFileNames {
		path := filepath.Join(dir, name)
		if stat, err := os.Stat(path); err == nil && !stat.IsDir() {
			info.ComposeFile = path
			break
		}
	}

	return info, nil
}

// Env reads the project's .env file for compose interpolation. A missing
// file yields an empty map.
func Env(dir string) (map[string]string, error) {
	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return env, nil
}
