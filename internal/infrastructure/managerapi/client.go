package managerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

var (
	ErrManagerStatus   = errors.New("manager: unexpected status")
	ErrManagerResponse = errors.New("manager: request rejected")
)

// envelope is the manager's response wrapper; code 0 means success.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type stackVO struct {
	StackName    string `json:"stackName"`
	StackVersion string `json:"stackVersion"`
}

type propertyVO struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type configVO struct {
	Name       string       `json:"name"`
	Properties []propertyVO `json:"properties"`
}

type componentVO struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Cardinality string   `json:"cardinality"`
	Hosts       []string `json:"hosts"`
}

type serviceVO struct {
	Name             string        `json:"name"`
	DisplayName      string        `json:"displayName"`
	Version          string        `json:"version"`
	RequiredServices []string      `json:"requiredServices"`
	Components       []componentVO `json:"components"`
	Configs          []configVO    `json:"configs"`
}

type installedServiceVO struct {
	Name string `json:"name"`
}

type commandVO struct {
	JobID uint   `json:"jobId"`
	Name  string `json:"name"`
}

type jobVO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *logger.Logger
}

// Client talks to the cluster manager's catalog, command and job endpoints.
// It implements ports.CatalogAPI, ports.CommandAPI, ports.JobAPI and ports.JobRetrier.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("manager"),
	}
}

// GetCatalog lists the stacks, fetches each stack's services in parallel and
// marks the services already installed on the cluster.
func (c *Client) GetCatalog(ctx context.Context, clusterID uint) (*domain.Catalog, error) {
	var stacks []stackVO
	if err := c.do(ctx, http.MethodGet, "/stacks", nil, &stacks); err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}

	var installed []installedServiceVO
	catalog := &domain.Catalog{Stacks: make([]domain.Stack, len(stacks))}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.do(gctx, http.MethodGet, fmt.Sprintf("/clusters/%d/services", clusterID), nil, &installed); err != nil {
			return fmt.Errorf("list installed services: %w", err)
		}
		return nil
	})
	for i, st := range stacks {
		i, st := i, st
		g.Go(func() error {
			var services []serviceVO
			path := fmt.Sprintf("/stacks/%s/%s/services", url.PathEscape(st.StackName), url.PathEscape(st.StackVersion))
			if err := c.do(gctx, http.MethodGet, path, nil, &services); err != nil {
				return fmt.Errorf("list services of %s-%s: %w", st.StackName, st.StackVersion, err)
			}
			catalog.Stacks[i] = c.toStack(st, services)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(installed))
	for _, svc := range installed {
		names[svc.Name] = struct{}{}
	}
	for i := range catalog.Stacks {
		for j := range catalog.Stacks[i].Services {
			_, ok := names[catalog.Stacks[i].Services[j].Name]
			catalog.Stacks[i].Services[j].Installed = ok
		}
	}
	c.logger.Infow("manager_catalog_loaded", "cluster_id", clusterID, "stacks", len(catalog.Stacks), "installed", len(installed))
	return catalog, nil
}

func (c *Client) SubmitCommand(ctx context.Context, req *domain.CommandRequest) (*domain.CommandResult, error) {
	var out commandVO
	path := fmt.Sprintf("/clusters/%d/command", req.ClusterID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	c.logger.Infow("manager_command_accepted", "cluster_id", req.ClusterID, "command", req.Command, "level", req.CommandLevel, "job_id", out.JobID)
	return &domain.CommandResult{JobID: out.JobID, Name: out.Name}, nil
}

func (c *Client) GetJobStatus(ctx context.Context, clusterID, jobID uint) (*domain.JobDetails, error) {
	return c.job(ctx, http.MethodGet, fmt.Sprintf("/clusters/%d/jobs/%d", clusterID, jobID))
}

func (c *Client) RetryJob(ctx context.Context, clusterID, jobID uint) (*domain.JobDetails, error) {
	details, err := c.job(ctx, http.MethodPost, fmt.Sprintf("/clusters/%d/jobs/%d/retry", clusterID, jobID))
	if err != nil {
		return nil, err
	}
	c.logger.Infow("manager_job_retried", "cluster_id", clusterID, "job_id", jobID)
	return details, nil
}

func (c *Client) job(ctx context.Context, method, path string) (*domain.JobDetails, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var vo jobVO
	if err := json.Unmarshal(raw, &vo); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	var payload domain.JSONB
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.Warnw("manager_job_payload_skipped", "path", path, "error", err)
		payload = nil
	}
	return &domain.JobDetails{ID: vo.ID, Name: vo.Name, State: domain.JobState(vo.State), Raw: payload}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	start := time.Now()
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warnw("manager_network_error", "method", method, "path", path, "error", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debugw("manager_response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"resp_bytes", len(respBody),
	)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w %d: %s", ErrManagerStatus, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("%w: code %d: %s", ErrManagerResponse, env.Code, env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// toStack converts a stack listing. Components with a malformed cardinality are
// kept but logged; the wizard rejects any assignment to them.
func (c *Client) toStack(st stackVO, services []serviceVO) domain.Stack {
	out := domain.Stack{Name: st.StackName, Version: st.StackVersion}
	for _, svc := range services {
		desc := domain.ServiceDescriptor{
			Name:             svc.Name,
			DisplayName:      svc.DisplayName,
			Stack:            st.StackName,
			Version:          svc.Version,
			RequiredServices: append([]string(nil), svc.RequiredServices...),
		}
		for _, comp := range svc.Components {
			cardinality := domain.Cardinality(comp.Cardinality)
			if err := cardinality.Validate(); err != nil {
				c.logger.Warnw("manager_component_cardinality_invalid",
					"stack", st.StackName, "service", svc.Name, "component", comp.Name, "error", err)
			}
			desc.Components = append(desc.Components, domain.ComponentDescriptor{
				Name:        comp.Name,
				DisplayName: comp.DisplayName,
				Cardinality: cardinality,
				Hosts:       append([]string(nil), comp.Hosts...),
			})
		}
		for _, cfg := range svc.Configs {
			section := domain.ConfigSection{Name: cfg.Name, Properties: []domain.Property{}}
			for _, p := range cfg.Properties {
				section.Properties = append(section.Properties, domain.Property{Name: p.Name, Value: p.Value})
			}
			desc.Configs = append(desc.Configs, section)
		}
		out.Services = append(out.Services, desc)
	}
	return out
}
