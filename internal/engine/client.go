// Package engine talks to the container engine API directly. The status
// poller goes through the Sail CLI; this client backs diagnostics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/shell"
)

const (
	defaultAPITimeout = 5 * time.Second
	projectLabel      = "com.docker.compose.project"
	serviceLabel      = "com.docker.compose.service"
)

// dockerAPI is the subset of *client.Client used here.
type dockerAPI interface {
	Ping(ctx context.Context) (dockertypes.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]dockertypes.Container, error)
	Close() error
}

// Info describes the engine a Ping reached.
type Info struct {
	APIVersion string `json:"api_version"`
	OSType     string `json:"os_type"`
}

// Container is a compose-managed container of the project.
type Container struct {
	Service string `json:"service"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Status  string `json:"status"`
}

// Client wraps the official Docker Go SDK.
type Client struct {
	api     dockerAPI
	timeout time.Duration
}

// NewClient initializes a Docker client for host. An empty host uses the
// SDK's environment defaults (DOCKER_HOST and friends).
func NewClient(host string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}

	httpClient := &http.Client{Timeout: timeout}

	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(httpClient),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		api:     api,
		timeout: timeout,
	}, nil
}

// Ping validates connectivity to the engine. Connection failures are
// reported as *shell.EngineUnavailableError.
func (c *Client) Ping(ctx context.Context) (Info, error) {
	if c == nil || c.api == nil {
		return Info{}, errors.New("docker client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ping, err := c.api.Ping(ctx)
	if err != nil {
		return Info{}, classify(err)
	}
	return Info{APIVersion: ping.APIVersion, OSType: ping.OSType}, nil
}

// ProjectContainers lists every container, running or not, labeled with
// the given compose project, sorted by service name.
func (c *Client) ProjectContainers(ctx context.Context, project string) ([]Container, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("docker client is not initialized")
	}
	if project == "" {
		return nil, errors.New("compose project name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", projectLabel, project))),
	})
	if err != nil {
		return nil, classify(err)
	}

	containers := make([]Container, 0, len(list))
	for _, item := range list {
		name := ""
		if len(item.Names) > 0 {
			name = strings.TrimPrefix(item.Names[0], "/")
		}
		containers = append(containers, Container{
			Service: item.Labels[serviceLabel],
			Name:    name,
			Image:   sail.NormalizeImage(item.Image),
			State:   item.State,
			Status:  item.Status,
		})
	}
	sort.Slice(containers, func(i, j int) bool {
		return containers[i].Service < containers[j].Service
	})
	return containers, nil
}

// Close releases resources associated with the client.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

func classify(err error) error {
	if client.IsErrConnectionFailed(err) {
		return &shell.EngineUnavailableError{Err: err}
	}
	return err
}
