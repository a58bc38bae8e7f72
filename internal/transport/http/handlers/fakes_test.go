package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/core/services"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
)

type fakeWizardService struct {
	mu          sync.Mutex
	session     *domain.WizardSession
	resolveOut  *ports.ResolveOutput
	submitOut   *ports.SubmitOutput
	err         error
	lastResolve ports.ResolveInput
	lastAssign  map[string][]string
}

func (f *fakeWizardService) Start(ctx context.Context) (*domain.WizardSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeWizardService) Get(sessionID string) (*domain.WizardSession, error) {
	if f.session == nil || f.session.ID != sessionID {
		return nil, services.ErrSessionNotFound
	}
	return f.session, nil
}

func (f *fakeWizardService) Reset(ctx context.Context, sessionID string) error {
	_, err := f.Get(sessionID)
	return err
}

func (f *fakeWizardService) ResolveService(ctx context.Context, input ports.ResolveInput) (*ports.ResolveOutput, error) {
	f.mu.Lock()
	f.lastResolve = input
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.resolveOut, nil
}

func (f *fakeWizardService) AssignHosts(ctx context.Context, sessionID string, assignments map[string][]string) error {
	f.mu.Lock()
	f.lastAssign = assignments
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	_, err := f.Get(sessionID)
	return err
}

func (f *fakeWizardService) CaptureSnapshot(ctx context.Context, sessionID string) error {
	return f.err
}

func (f *fakeWizardService) Snapshots(ctx context.Context, sessionID string) ([]domain.ConfigSnapshot, error) {
	return nil, f.err
}

func (f *fakeWizardService) UpdateConfigs(ctx context.Context, sessionID, service string, sections []domain.ConfigSection) error {
	return f.err
}

func (f *fakeWizardService) PreviewDiff(ctx context.Context, sessionID string) (map[string][]domain.ConfigSection, error) {
	return map[string][]domain.ConfigSection{}, f.err
}

func (f *fakeWizardService) Submit(ctx context.Context, sessionID string) (*ports.SubmitOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.submitOut, nil
}

func (f *fakeWizardService) SubmitComponents(ctx context.Context, sessionID string) (*ports.SubmitOutput, error) {
	return f.Submit(ctx, sessionID)
}

type fakeJobTracker struct {
	entries  map[uint]domain.JobProgressEntry
	retryErr error
	removed  []uint
}

func (f *fakeJobTracker) Track(clusterID uint, result domain.CommandResult, onSuccess func()) domain.JobProgressEntry {
	entry := domain.JobProgressEntry{JobID: result.JobID, ClusterID: clusterID, Name: result.Name, Status: domain.JobStatusProcessing}
	f.entries[result.JobID] = entry
	return entry
}

func (f *fakeJobTracker) Retry(ctx context.Context, jobID uint) (domain.JobProgressEntry, error) {
	if f.retryErr != nil {
		return domain.JobProgressEntry{}, f.retryErr
	}
	entry := f.entries[jobID]
	entry.Status = domain.JobStatusProcessing
	entry.Percent = 0
	return entry, nil
}

func (f *fakeJobTracker) Get(jobID uint) (domain.JobProgressEntry, bool) {
	e, ok := f.entries[jobID]
	return e, ok
}

func (f *fakeJobTracker) List() []domain.JobProgressEntry {
	out := make([]domain.JobProgressEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out
}

func (f *fakeJobTracker) Remove(jobID uint) bool {
	if _, ok := f.entries[jobID]; !ok {
		return false
	}
	delete(f.entries, jobID)
	f.removed = append(f.removed, jobID)
	return true
}

type memoryJobRecords struct {
	records   []domain.JobRecord
	lastLimit int
}

func (m *memoryJobRecords) Upsert(ctx context.Context, record *domain.JobRecord) error {
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryJobRecords) GetByJobID(ctx context.Context, jobID uint) (*domain.JobRecord, error) {
	for i := range m.records {
		if m.records[i].JobID == jobID {
			r := m.records[i]
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryJobRecords) GetAll(ctx context.Context, limit int) ([]domain.JobRecord, error) {
	m.lastLimit = limit
	return m.records, nil
}

func (m *memoryJobRecords) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeCommandService struct {
	input ports.CommandInput
	out   *ports.SubmitOutput
	err   error
}

func (f *fakeCommandService) Execute(ctx context.Context, input ports.CommandInput) (*ports.SubmitOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type fakeHostService struct {
	hosts []string
}

func (f *fakeHostService) Check(ctx context.Context, hosts []string) ([]ports.HostProbeResult, error) {
	f.hosts = hosts
	out := make([]ports.HostProbeResult, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, ports.HostProbeResult{Host: h, Reachable: h != "down"})
	}
	return out, nil
}

// do sends a request through app.Test and decodes the JSON response into out when set.
func do(t *testing.T, app *fiber.App, method, path, body string, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
