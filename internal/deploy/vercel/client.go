package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrDeploymentTimeout = errors.New("deployment timeout")

type State string

const (
	StateQueued       State = "QUEUED"
	StateBuilding     State = "BUILDING"
	StateError        State = "ERROR"
	StateInitializing State = "INITIALIZING"
	StateReady        State = "READY"
	StateCanceled     State = "CANCELED"
)

// Terminal reports whether polling can stop at this state.
func (s State) Terminal() bool {
	return s == StateReady || s == StateError || s == StateCanceled
}

type Config struct {
	APIURL        string
	Token         string
	TeamID        string
	ProjectID     string
	RepoID        string
	DeployHookURL string
	BaseDomain    string
	Timeout       time.Duration
	PollInterval  time.Duration
	PollAttempts  int
}

// Deployment is the handle returned when a deployment is started.
type Deployment struct {
	ID  string
	URL string
}

type DeploymentStatus struct {
	ID           string
	State        State
	URL          string
	ErrorMessage string
}

type Client struct {
	httpClient    *http.Client
	apiURL        string
	token         string
	teamID        string
	projectID     string
	repoID        string
	deployHookURL string
	baseDomain    string
	pollInterval  time.Duration
	pollAttempts  int
	logger        *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiURL:        cfg.APIURL,
		token:         cfg.Token,
		teamID:        cfg.TeamID,
		projectID:     cfg.ProjectID,
		repoID:        cfg.RepoID,
		deployHookURL: cfg.DeployHookURL,
		baseDomain:    cfg.BaseDomain,
		pollInterval:  cfg.PollInterval,
		pollAttempts:  cfg.PollAttempts,
		logger:        logger.With("component", "vercel"),
	}
}

// SiteURL is the public address of an agent site.
func (c *Client) SiteURL(subdomain string) string {
	return fmt.Sprintf("https://%s.%s", subdomain, c.baseDomain)
}

// Trigger starts a deployment of the agent site. A configured deploy hook
// takes precedence over the deployments API.
func (c *Client) Trigger(ctx context.Context, subdomain string, siteData []byte) (*Deployment, error) {
	c.logger.Info("triggering deployment", "subdomain", subdomain, "via_hook", c.deployHookURL != "")

	if c.deployHookURL != "" {
		return c.triggerHook(ctx, subdomain)
	}
	return c.triggerAPI(ctx, subdomain, siteData)
}

func (c *Client) triggerHook(ctx context.Context, subdomain string) (*Deployment, error) {
	body := map[string]interface{}{
		"meta": map[string]string{
			"agentSubdomain": subdomain,
			"buildType":      "agent-site",
		},
	}

	var result struct {
		Job *struct {
			ID string `json:"id"`
		} `json:"job"`
	}
	if err := c.do(ctx, http.MethodPost, c.deployHookURL, body, false, &result); err != nil {
		return nil, fmt.Errorf("deploy hook: %w", err)
	}

	id := fmt.Sprintf("hook_%d", time.Now().UnixMilli())
	if result.Job != nil && result.Job.ID != "" {
		id = result.Job.ID
	}
	return &Deployment{ID: id, URL: c.SiteURL(subdomain)}, nil
}

type createDeploymentRequest struct {
	Name            string            `json:"name"`
	Project         string            `json:"project"`
	Target          string            `json:"target"`
	Alias           []string          `json:"alias"`
	Env             map[string]string `json:"env"`
	GitSource       gitSource         `json:"gitSource"`
	ProjectSettings projectSettings   `json:"projectSettings"`
	Meta            map[string]string `json:"meta"`
}

type gitSource struct {
	Type   string `json:"type"`
	Ref    string `json:"ref"`
	RepoID string `json:"repoId,omitempty"`
}

type projectSettings struct {
	Framework       string `json:"framework"`
	BuildCommand    string `json:"buildCommand"`
	OutputDirectory string `json:"outputDirectory"`
	InstallCommand  string `json:"installCommand"`
}

type deploymentResponse struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ReadyState State  `json:"readyState"`
}

func (c *Client) triggerAPI(ctx context.Context, subdomain string, siteData []byte) (*Deployment, error) {
	req := createDeploymentRequest{
		Name:    "agent-site-" + subdomain,
		Project: c.projectID,
		Target:  "production",
		Alias:   []string{subdomain + "." + c.baseDomain},
		Env: map[string]string{
			"AGENT_SUBDOMAIN": subdomain,
			"AGENT_SITE_DATA": string(siteData),
		},
		GitSource: gitSource{Type: "github", Ref: "main", RepoID: c.repoID},
		ProjectSettings: projectSettings{
			Framework:       "astro",
			BuildCommand:    "pnpm build",
			OutputDirectory: "dist",
			InstallCommand:  "pnpm install",
		},
		Meta: map[string]string{
			"agentSubdomain": subdomain,
			"buildType":      "agent-site",
			"triggeredAt":    time.Now().UTC().Format(time.RFC3339),
		},
	}

	var resp deploymentResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint("/v13/deployments"), req, true, &resp); err != nil {
		return nil, fmt.Errorf("create deployment: %w", err)
	}

	c.logger.Info("deployment created", "deployment_id", resp.ID, "subdomain", subdomain)
	return &Deployment{ID: resp.ID, URL: c.SiteURL(subdomain)}, nil
}

// Status reads the current state of a deployment. A deployment the API does
// not know yet is reported as queued.
func (c *Client) Status(ctx context.Context, id string) (*DeploymentStatus, error) {
	var resp deploymentResponse
	err := c.do(ctx, http.MethodGet, c.endpoint("/v13/deployments/"+url.PathEscape(id)), nil, true, &resp)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return &DeploymentStatus{ID: id, State: StateQueued}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", id, err)
	}

	status := &DeploymentStatus{ID: resp.ID, State: resp.ReadyState}
	if status.ID == "" {
		status.ID = id
	}
	switch resp.ReadyState {
	case StateReady:
		status.URL = "https://" + resp.URL
	case StateError:
		status.ErrorMessage = "Build failed"
	}
	return status, nil
}

// WaitForDeployment polls until the deployment reaches a terminal state.
// Status errors count as an attempt and polling continues. When attempts
// run out ErrDeploymentTimeout is returned.
func (c *Client) WaitForDeployment(ctx context.Context, id string) (*DeploymentStatus, error) {
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		status, err := c.Status(ctx, id)
		if err != nil {
			c.logger.Warn("status check failed", "deployment_id", id, "attempt", attempt, "error", err)
		} else {
			c.logger.Debug("deployment status",
				"deployment_id", id,
				"state", status.State,
				"attempt", attempt,
				"max_attempts", c.pollAttempts,
			)
			if status.State.Terminal() {
				return status, nil
			}
		}

		if attempt == c.pollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, fmt.Errorf("%w after %s", ErrDeploymentTimeout, time.Duration(c.pollAttempts)*c.pollInterval)
}

func (c *Client) endpoint(path string) string {
	u := c.apiURL + path
	if c.teamID != "" {
		u += "?teamId=" + url.QueryEscape(c.teamID)
	}
	return u
}

// APIError carries a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "vercel api error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

func (c *Client) do(ctx context.Context, method, u string, in interface{}, auth bool, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
