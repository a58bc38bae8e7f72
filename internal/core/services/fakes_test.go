package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
)

// scriptedJobAPI replays a list of states per job; the last state repeats.
type scriptedJobAPI struct {
	mu     sync.Mutex
	states map[uint][]domain.JobState
	errs   map[uint]error
	calls  map[uint]int
}

func newScriptedJobAPI() *scriptedJobAPI {
	return &scriptedJobAPI{
		states: make(map[uint][]domain.JobState),
		errs:   make(map[uint]error),
		calls:  make(map[uint]int),
	}
}

func (f *scriptedJobAPI) script(jobID uint, states ...domain.JobState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[jobID] = states
}

func (f *scriptedJobAPI) fail(jobID uint, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[jobID] = err
}

func (f *scriptedJobAPI) callCount(jobID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[jobID]
}

func (f *scriptedJobAPI) GetJobStatus(ctx context.Context, clusterID, jobID uint) (*domain.JobDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[jobID]++
	if err := f.errs[jobID]; err != nil {
		return nil, err
	}
	seq := f.states[jobID]
	if len(seq) == 0 {
		return nil, nil
	}
	state := seq[0]
	if len(seq) > 1 {
		f.states[jobID] = seq[1:]
	}
	return &domain.JobDetails{ID: jobID, Name: "job", State: state}, nil
}

// retryingJobAPI also implements ports.JobRetrier.
type retryingJobAPI struct {
	*scriptedJobAPI
	afterRetry []domain.JobState
	retries    int
	retryErr   error
}

func (f *retryingJobAPI) RetryJob(ctx context.Context, clusterID, jobID uint) (*domain.JobDetails, error) {
	f.mu.Lock()
	f.retries++
	err := f.retryErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	f.script(jobID, f.afterRetry...)
	return &domain.JobDetails{ID: jobID, State: domain.JobStatePending}, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	published []domain.JobProgressEntry
	closed    map[uint]time.Duration
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{closed: make(map[uint]time.Duration)}
}

func (n *recordingNotifier) Publish(entry domain.JobProgressEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, entry)
}

func (n *recordingNotifier) Close(jobID uint, delay time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed[jobID] = delay
}

func (n *recordingNotifier) percents(jobID uint) []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []int
	for _, e := range n.published {
		if e.JobID == jobID {
			out = append(out, e.Percent)
		}
	}
	return out
}

func (n *recordingNotifier) closedWith(jobID uint) (time.Duration, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d, ok := n.closed[jobID]
	return d, ok
}

type fakeCatalogAPI struct {
	catalog *domain.Catalog
	err     error
}

func (f *fakeCatalogAPI) GetCatalog(ctx context.Context, clusterID uint) (*domain.Catalog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.catalog, nil
}

type fakeCommandAPI struct {
	mu       sync.Mutex
	requests []*domain.CommandRequest
	nextID   uint
	err      error
}

func (f *fakeCommandAPI) SubmitCommand(ctx context.Context, req *domain.CommandRequest) (*domain.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	f.nextID++
	return &domain.CommandResult{JobID: f.nextID, Name: string(req.Command) + " " + string(req.CommandLevel)}, nil
}

// fakeTracker records tracked jobs and hands back their continuations.
type fakeTracker struct {
	mu            sync.Mutex
	tracked       []domain.CommandResult
	entries       map[uint]domain.JobProgressEntry
	continuations map[uint]func()
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		entries:       make(map[uint]domain.JobProgressEntry),
		continuations: make(map[uint]func()),
	}
}

func (f *fakeTracker) Track(clusterID uint, result domain.CommandResult, onSuccess func()) domain.JobProgressEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, result)
	f.continuations[result.JobID] = onSuccess
	entry := domain.JobProgressEntry{JobID: result.JobID, ClusterID: clusterID, Name: result.Name, Status: domain.JobStatusProcessing}
	f.entries[result.JobID] = entry
	return entry
}

func (f *fakeTracker) Retry(ctx context.Context, jobID uint) (domain.JobProgressEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[jobID]
	if !ok {
		return domain.JobProgressEntry{}, ErrJobNotFound
	}
	entry.Status = domain.JobStatusProcessing
	f.entries[jobID] = entry
	return entry, nil
}

func (f *fakeTracker) Get(jobID uint) (domain.JobProgressEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[jobID]
	return entry, ok
}

func (f *fakeTracker) List() []domain.JobProgressEntry { return nil }

func (f *fakeTracker) Remove(jobID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[jobID]
	delete(f.entries, jobID)
	return ok
}

func (f *fakeTracker) setStatus(jobID uint, status domain.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.entries[jobID]
	entry.Status = status
	f.entries[jobID] = entry
}

func (f *fakeTracker) succeed(jobID uint) {
	f.mu.Lock()
	fn := f.continuations[jobID]
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type memorySnapshotRepo struct {
	mu      sync.Mutex
	saved   map[string][]domain.ConfigSnapshot
	deleted []string
}

func newMemorySnapshotRepo() *memorySnapshotRepo {
	return &memorySnapshotRepo{saved: make(map[string][]domain.ConfigSnapshot)}
}

func (r *memorySnapshotRepo) Save(ctx context.Context, snapshot *domain.ConfigSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[snapshot.SessionID] = append(r.saved[snapshot.SessionID], *snapshot)
	return nil
}

func (r *memorySnapshotRepo) GetBySession(ctx context.Context, sessionID string) ([]domain.ConfigSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ConfigSnapshot(nil), r.saved[sessionID]...), nil
}

func (r *memorySnapshotRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, sessionID)
	r.deleted = append(r.deleted, sessionID)
	return nil
}

type memoryTimelineRepo struct {
	mu      sync.Mutex
	events  []domain.TimelineEvent
	cutoffs []time.Time
	deleted int64
}

func (r *memoryTimelineRepo) Create(ctx context.Context, event *domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *memoryTimelineRepo) GetByResource(ctx context.Context, resourceType string, resourceID string) ([]domain.TimelineEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TimelineEvent
	for _, e := range r.events {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryTimelineRepo) GetAll(ctx context.Context, limit int) ([]domain.TimelineEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TimelineEvent(nil), r.events...), nil
}

func (r *memoryTimelineRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return r.deleted, nil
}

func (r *memoryTimelineRepo) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type memoryJobRepo struct {
	mu      sync.Mutex
	records map[uint]domain.JobRecord
	cutoffs []time.Time
	deleted int64
	err     error
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{records: make(map[uint]domain.JobRecord)}
}

func (r *memoryJobRepo) Upsert(ctx context.Context, record *domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.JobID] = *record
	return nil
}

func (r *memoryJobRepo) GetByJobID(ctx context.Context, jobID uint) (*domain.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[jobID]
	if !ok {
		return nil, errors.New("not found")
	}
	return &rec, nil
}

func (r *memoryJobRepo) GetAll(ctx context.Context, limit int) ([]domain.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.JobRecord
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryJobRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return r.deleted, r.err
}

func (r *memoryJobRepo) record(jobID uint) (domain.JobRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[jobID]
	return rec, ok
}

// scriptedConfirmer answers from a fixed map and records the prompts it saw.
type scriptedConfirmer struct {
	answers map[string]bool
	asked   []ports.Prompt
	err     error
}

func (c *scriptedConfirmer) Confirm(ctx context.Context, prompt ports.Prompt) (bool, error) {
	c.asked = append(c.asked, prompt)
	if c.err != nil {
		return false, c.err
	}
	return c.answers[prompt.Service], nil
}

func (c *scriptedConfirmer) askedServices() []string {
	out := make([]string, 0, len(c.asked))
	for _, p := range c.asked {
		out = append(out, p.Service)
	}
	return out
}

// testCatalog: zookeeper <- hadoop <- hive, hive also needs mysql (infra).
func testCatalog(mysqlInstalled bool) *domain.Catalog {
	return &domain.Catalog{Stacks: []domain.Stack{
		{
			Name:    "bigtop",
			Version: "3.3.0",
			Services: []domain.ServiceDescriptor{
				{
					Name:        "zookeeper",
					DisplayName: "ZooKeeper",
					Components: []domain.ComponentDescriptor{
						{Name: "zookeeper_server", Cardinality: "1+"},
					},
					Configs: []domain.ConfigSection{
						{Name: "zoo.cfg", Properties: []domain.Property{{Name: "tickTime", Value: "2000"}}},
					},
				},
				{
					Name:             "hadoop",
					DisplayName:      "Hadoop",
					RequiredServices: []string{"zookeeper"},
					Components: []domain.ComponentDescriptor{
						{Name: "namenode", Cardinality: "1-2"},
						{Name: "datanode", Cardinality: "1+"},
					},
				},
				{
					Name:             "hive",
					DisplayName:      "Hive",
					RequiredServices: []string{"hadoop", "mysql"},
					Components: []domain.ComponentDescriptor{
						{Name: "hiveserver2", Cardinality: "1"},
					},
					Configs: []domain.ConfigSection{
						{Name: "hive-site", Properties: []domain.Property{
							{Name: "hive.metastore.port", Value: "9083"},
							{Name: "javax.jdo.option.ConnectionPassword", Value: "hive"},
						}},
					},
				},
			},
		},
		{
			Name:    domain.InfraStack,
			Version: "1.0.0",
			Services: []domain.ServiceDescriptor{
				{
					Name:      "mysql",
					Installed: mysqlInstalled,
					Components: []domain.ComponentDescriptor{
						{Name: "mysql_server", Cardinality: "1", Hosts: []string{"db1"}},
					},
				},
			},
		},
	}}
}
