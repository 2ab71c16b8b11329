// Package compose reads the project's compose file to learn which services
// the stack declares.
package compose

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
)

const projectName = "sail"

// DeclaredService is a service as written in the compose file.
type DeclaredService struct {
	Name  string   `json:"name"`
	Image string   `json:"image,omitempty"`
	Build bool     `json:"build"`
	Ports []string `json:"ports,omitempty"`
}

// DeclaredServices is the sorted list of services in a compose file.
type DeclaredServices []DeclaredService

// Names returns the declared service names in order.
func (d DeclaredServices) Names() []string {
	names := make([]string, 0, len(d))
	for _, service := range d {
		names = append(names, service.Name)
	}
	return names
}

// ParseDeclaredServices parses compose content. env supplies interpolation
// values such as APP_PORT; unset variables interpolate to empty strings.
func ParseDeclaredServices(ctx context.Context, body []byte, env map[string]string) (DeclaredServices, error) {
	if len(body) == 0 {
		return nil, errors.New("compose body is empty")
	}

	environment := types.Mapping{}
	for key, value := range env {
		environment[key] = value
	}

	details := types.ConfigDetails{
		WorkingDir: ".",
		ConfigFiles: []types.ConfigFile{
			{
				Filename: "docker-compose.yml",
				Content:  body,
			},
		},
		Environment: environment,
	}

	project, err := loader.LoadWithContext(ctx, details, func(opts *loader.Options) {
		opts.SetProjectName(projectName, false)
		opts.SkipConsistencyCheck = true
		opts.ResolvePaths = false
	})
	if err != nil {
		return nil, fmt.Errorf("load compose: %w", err)
	}
	if len(project.Services) == 0 {
		return nil, errors.New("compose has no services")
	}

	services := make(DeclaredServices, 0, len(project.Services))
	for name, service := range project.Services {
		services = append(services, DeclaredService{
			Name:  name,
			Image: service.Image,
			Build: service.Build != nil,
			Ports: formatPorts(service.Ports),
		})
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].Name < services[j].Name
	})

	return services, nil
}

func formatPorts(ports []types.ServicePortConfig) []string {
	if len(ports) == 0 {
		return nil
	}
	out := make([]string, 0, len(ports))
	for _, port := range ports {
		protocol := port.Protocol
		if protocol == "" {
			protocol = "tcp"
		}
		if port.Published == "" {
			out = append(out, fmt.Sprintf("%d/%s", port.Target, protocol))
			continue
		}
		out = append(out, fmt.Sprintf("%s:%d/%s", port.Published, port.Target, protocol))
	}
	return out
}
