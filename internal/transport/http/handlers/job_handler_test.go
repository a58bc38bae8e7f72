package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/core/services"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/internal/transport/http/dto"
)

func newJobApp(tracker *fakeJobTracker, records ports.JobRepository) *fiber.App {
	h := NewJobHandler(tracker, records, logger.NewNop())
	app := fiber.New()
	app.Get("/jobs", h.List)
	app.Get("/jobs/history", h.History)
	app.Get("/jobs/:id", h.Get)
	app.Post("/jobs/:id/retry", h.Retry)
	app.Delete("/jobs/:id", h.Dismiss)
	return app
}

func failedTracker() *fakeJobTracker {
	return &fakeJobTracker{entries: map[uint]domain.JobProgressEntry{
		7: {JobID: 7, Name: "Add services", Percent: 100, Status: domain.JobStatusFailed, Error: "install failed"},
	}}
}

func TestJobHandler_Get(t *testing.T) {
	app := newJobApp(failedTracker(), nil)

	var entry domain.JobProgressEntry
	assert.Equal(t, fiber.StatusOK, do(t, app, http.MethodGet, "/jobs/7", "", &entry))
	assert.Equal(t, domain.JobStatusFailed, entry.Status)
	assert.Equal(t, "install failed", entry.Error)

	assert.Equal(t, fiber.StatusNotFound, do(t, app, http.MethodGet, "/jobs/8", "", nil))

	var body dto.ErrorResponse
	assert.Equal(t, fiber.StatusBadRequest, do(t, app, http.MethodGet, "/jobs/abc", "", &body))
	assert.Equal(t, "invalid job id", body.Error)
}

func TestJobHandler_List(t *testing.T) {
	app := newJobApp(failedTracker(), nil)

	var entries []domain.JobProgressEntry
	assert.Equal(t, fiber.StatusOK, do(t, app, http.MethodGet, "/jobs", "", &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, uint(7), entries[0].JobID)
}

func TestJobHandler_Retry(t *testing.T) {
	app := newJobApp(failedTracker(), nil)

	var entry domain.JobProgressEntry
	assert.Equal(t, fiber.StatusAccepted, do(t, app, http.MethodPost, "/jobs/7/retry", "", &entry))
	assert.Equal(t, domain.JobStatusProcessing, entry.Status)
	assert.Zero(t, entry.Percent)
}

func TestJobHandler_RetryRejected(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrJobNotFailed, fiber.StatusUnprocessableEntity},
		{services.ErrJobNotFound, fiber.StatusNotFound},
	}
	for _, tt := range tests {
		tracker := failedTracker()
		tracker.retryErr = tt.err
		app := newJobApp(tracker, nil)

		assert.Equal(t, tt.want, do(t, app, http.MethodPost, "/jobs/7/retry", "", nil), tt.err.Error())
	}
}

func TestJobHandler_Dismiss(t *testing.T) {
	tracker := failedTracker()
	app := newJobApp(tracker, nil)

	assert.Equal(t, fiber.StatusNoContent, do(t, app, http.MethodDelete, "/jobs/7", "", nil))
	assert.Equal(t, []uint{7}, tracker.removed)
	assert.Equal(t, fiber.StatusNotFound, do(t, app, http.MethodDelete, "/jobs/7", "", nil))
}

func TestJobHandler_History(t *testing.T) {
	records := &memoryJobRecords{records: []domain.JobRecord{
		{JobID: 3, Name: "Start", Status: domain.JobStatusSuccess, Percent: 100},
	}}
	app := newJobApp(failedTracker(), records)

	var all []domain.JobRecord
	assert.Equal(t, fiber.StatusOK, do(t, app, http.MethodGet, "/jobs/history?limit=5", "", &all))
	assert.Len(t, all, 1)
	assert.Equal(t, 5, records.lastLimit)

	do(t, app, http.MethodGet, "/jobs/history?limit=9000", "", nil)
	assert.Equal(t, defaultHistoryLimit, records.lastLimit)

	var one domain.JobRecord
	assert.Equal(t, fiber.StatusOK, do(t, app, http.MethodGet, "/jobs/history?job_id=3", "", &one))
	assert.Equal(t, "Start", one.Name)

	assert.Equal(t, fiber.StatusNotFound, do(t, app, http.MethodGet, "/jobs/history?job_id=4", "", nil))
	assert.Equal(t, fiber.StatusBadRequest, do(t, app, http.MethodGet, "/jobs/history?job_id=x", "", nil))
}

func TestJobHandler_HistoryWithoutStore(t *testing.T) {
	app := newJobApp(failedTracker(), nil)

	var all []domain.JobRecord
	assert.Equal(t, fiber.StatusOK, do(t, app, http.MethodGet, "/jobs/history", "", &all))
	assert.Empty(t, all)
}

func TestCommandHandler_Execute(t *testing.T) {
	svc := &fakeCommandService{out: &ports.SubmitOutput{Job: domain.CommandResult{JobID: 11, Name: "Restart"}}}
	h := NewCommandHandler(svc, logger.NewNop())
	app := fiber.New()
	app.Post("/commands", h.Execute)

	var out ports.SubmitOutput
	status := do(t, app, http.MethodPost, "/commands", `{"command":"Restart","level":"service","services":["hive"]}`, &out)

	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, uint(11), out.Job.JobID)
	assert.Equal(t, ports.CommandInput{
		Command:  domain.CommandRestart,
		Level:    domain.CommandLevelService,
		Services: []string{"hive"},
	}, svc.input)
}

func TestCommandHandler_Validation(t *testing.T) {
	svc := &fakeCommandService{err: services.ErrCommandInvalid}
	h := NewCommandHandler(svc, logger.NewNop())
	app := fiber.New()
	app.Post("/commands", h.Execute)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "unknown command", body: `{"command":"Add","level":"cluster"}`, want: fiber.StatusBadRequest},
		{name: "custom without name", body: `{"command":"Custom","level":"cluster"}`, want: fiber.StatusBadRequest},
		{name: "service level without services", body: `{"command":"Start","level":"service"}`, want: fiber.StatusBadRequest},
		{name: "host level without hosts", body: `{"command":"Stop","level":"host"}`, want: fiber.StatusBadRequest},
		{name: "rejected by service", body: `{"command":"Check","level":"cluster"}`, want: fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, app, http.MethodPost, "/commands", tt.body, nil))
		})
	}
}

func TestHostHandler_Check(t *testing.T) {
	svc := &fakeHostService{}
	h := NewHostHandler(svc, logger.NewNop())
	app := fiber.New()
	app.Post("/hosts/check", h.Check)

	var results []ports.HostProbeResult
	status := do(t, app, http.MethodPost, "/hosts/check", `{"hosts":["nn1","down"]}`, &results)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []ports.HostProbeResult{{Host: "nn1", Reachable: true}, {Host: "down"}}, results)

	assert.Equal(t, fiber.StatusBadRequest, do(t, app, http.MethodPost, "/hosts/check", `{"hosts":[]}`, nil))
	assert.Equal(t, fiber.StatusBadRequest, do(t, app, http.MethodPost, "/hosts/check", `{"hosts":[""]}`, nil))
}
