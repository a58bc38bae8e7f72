package ports

import (
	"context"
	"time"

	"github.com/apache/bigtop-manager-sub000/internal/domain"
)

// ==================== External collaborators ====================

// CatalogAPI returns the service catalog grouped by stack.
type CatalogAPI interface {
	GetCatalog(ctx context.Context, clusterID uint) (*domain.Catalog, error)
}

// CommandAPI submits command requests to the manager.
type CommandAPI interface {
	SubmitCommand(ctx context.Context, req *domain.CommandRequest) (*domain.CommandResult, error)
}

// JobAPI reports server-side job state.
type JobAPI interface {
	GetJobStatus(ctx context.Context, clusterID, jobID uint) (*domain.JobDetails, error)
}

// JobRetrier is implemented by job APIs that can re-run a failed job server side.
type JobRetrier interface {
	RetryJob(ctx context.Context, clusterID, jobID uint) (*domain.JobDetails, error)
}

// Prompt is a single confirmation question raised by the dependency resolver.
type Prompt struct {
	Action  domain.ResolveAction `json:"action"`
	Service string               `json:"service"`
	Target  string               `json:"target"`
	Message string               `json:"message"`
}

// Confirmer asks the user to approve a prompt; it blocks until answered.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (bool, error)
}

// Notifier displays live progress entries keyed by job id.
type Notifier interface {
	Publish(entry domain.JobProgressEntry)
	Close(jobID uint, delay time.Duration)
}

// HostProber checks that a host can be reached before components are assigned to it.
type HostProber interface {
	Probe(ctx context.Context, host string) error
}

// ==================== Services ====================

type ResolveInput struct {
	SessionID  string
	Action     domain.ResolveAction
	Service    string
	Approvals  []string
	ApproveAll bool
}

type ResolveOutput struct {
	Changed   []string `json:"changed"`
	Selection []string `json:"selection"`
	Rejected  *Prompt  `json:"rejected,omitempty"`
}

type SubmitOutput struct {
	Job      domain.CommandResult    `json:"job"`
	Progress domain.JobProgressEntry `json:"progress"`
}

type WizardService interface {
	Start(ctx context.Context) (*domain.WizardSession, error)
	Get(sessionID string) (*domain.WizardSession, error)
	Reset(ctx context.Context, sessionID string) error
	ResolveService(ctx context.Context, input ResolveInput) (*ResolveOutput, error)
	AssignHosts(ctx context.Context, sessionID string, assignments map[string][]string) error
	CaptureSnapshot(ctx context.Context, sessionID string) error
	Snapshots(ctx context.Context, sessionID string) ([]domain.ConfigSnapshot, error)
	UpdateConfigs(ctx context.Context, sessionID, service string, sections []domain.ConfigSection) error
	PreviewDiff(ctx context.Context, sessionID string) (map[string][]domain.ConfigSection, error)
	Submit(ctx context.Context, sessionID string) (*SubmitOutput, error)
	SubmitComponents(ctx context.Context, sessionID string) (*SubmitOutput, error)
}

type CommandService interface {
	Execute(ctx context.Context, input CommandInput) (*SubmitOutput, error)
}

type CommandInput struct {
	Command       domain.Command
	CustomCommand string
	Level         domain.CommandLevel
	Services      []string
	Hosts         []string
}

type JobTracker interface {
	Track(clusterID uint, result domain.CommandResult, onSuccess func()) domain.JobProgressEntry
	Retry(ctx context.Context, jobID uint) (domain.JobProgressEntry, error)
	Get(jobID uint) (domain.JobProgressEntry, bool)
	List() []domain.JobProgressEntry
	Remove(jobID uint) bool
}

type HostProbeResult struct {
	Host      string `json:"host"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

type HostService interface {
	Check(ctx context.Context, hosts []string) ([]HostProbeResult, error)
}
