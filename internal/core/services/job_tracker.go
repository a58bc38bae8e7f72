package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

const (
	DefaultPollInterval = time.Second
	DefaultDismissDelay = 10 * time.Second
	DefaultProgressStep = 2
	DefaultProgressCap  = 90
)

type JobTrackerConfig struct {
	JobAPI       ports.JobAPI
	Notifier     ports.Notifier
	Records      ports.JobRepository
	TimelineRepo ports.TimelineRepository
	Metrics      *Metrics
	Logger       *logger.Logger
	PollInterval time.Duration
	DismissDelay time.Duration
	Step         int
	Cap          int
}

// pollTask is the cancellable handle of one job's poll loop.
type pollTask struct {
	cancel context.CancelFunc
}

func (p *pollTask) stop() {
	p.cancel()
}

type trackedJob struct {
	entry          domain.JobProgressEntry
	onSuccess      func()
	completed      bool
	seenProcessing bool
	retries        int
	task           *pollTask
	dismiss        *time.Timer
}

// JobProgressTracker polls submitted jobs and maps their server state to
// progress entries: pending → processing → success | failed, with failed
// recoverable through Retry.
type JobProgressTracker struct {
	jobAPI       ports.JobAPI
	notifier     ports.Notifier
	records      ports.JobRepository
	timelineRepo ports.TimelineRepository
	metrics      *Metrics
	logger       *logger.Logger
	interval     time.Duration
	dismissDelay time.Duration
	step         int
	cap          int

	mu   sync.Mutex
	jobs map[uint]*trackedJob
	wg   sync.WaitGroup
}

func NewJobProgressTracker(cfg JobTrackerConfig) *JobProgressTracker {
	t := &JobProgressTracker{
		jobAPI:       cfg.JobAPI,
		notifier:     cfg.Notifier,
		records:      cfg.Records,
		timelineRepo: cfg.TimelineRepo,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		interval:     cfg.PollInterval,
		dismissDelay: cfg.DismissDelay,
		step:         cfg.Step,
		cap:          cfg.Cap,
		jobs:         make(map[uint]*trackedJob),
	}
	if t.logger == nil {
		t.logger = logger.NewNop()
	}
	if t.interval <= 0 {
		t.interval = DefaultPollInterval
	}
	if t.dismissDelay <= 0 {
		t.dismissDelay = DefaultDismissDelay
	}
	if t.step <= 0 {
		t.step = DefaultProgressStep
	}
	if t.cap <= 0 || t.cap >= 100 {
		t.cap = DefaultProgressCap
	}
	return t
}

// Track registers a submitted job in processing state and starts polling it.
// onSuccess runs at most once, when the job is first observed Successful.
func (t *JobProgressTracker) Track(clusterID uint, result domain.CommandResult, onSuccess func()) domain.JobProgressEntry {
	now := time.Now()
	job := &trackedJob{
		entry: domain.JobProgressEntry{
			JobID:     result.JobID,
			ClusterID: clusterID,
			Name:      result.Name,
			Percent:   0,
			Status:    domain.JobStatusProcessing,
			CreatedAt: now,
			UpdatedAt: now,
		},
		onSuccess: onSuccess,
	}

	t.mu.Lock()
	if old, ok := t.jobs[result.JobID]; ok {
		t.teardownLocked(old)
	}
	t.jobs[result.JobID] = job
	t.startLocked(job)
	entry := job.entry
	t.mu.Unlock()

	t.logger.Infow("job_tracking_started", "job_id", result.JobID, "cluster_id", clusterID, "name", result.Name)
	t.persist(entry, "", 0)
	t.publish(entry)
	return entry
}

// Retry re-enters processing for a failed job and restarts its poll loop.
func (t *JobProgressTracker) Retry(ctx context.Context, jobID uint) (domain.JobProgressEntry, error) {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return domain.JobProgressEntry{}, ErrJobNotFound
	}
	if job.entry.Status != domain.JobStatusFailed {
		t.mu.Unlock()
		return domain.JobProgressEntry{}, ErrJobNotFailed
	}
	clusterID := job.entry.ClusterID
	t.mu.Unlock()

	if retrier, ok := t.jobAPI.(ports.JobRetrier); ok {
		if _, err := retrier.RetryJob(ctx, clusterID, jobID); err != nil {
			t.logger.Errorw("job_retry_request_failed", "job_id", jobID, "error", err)
			return domain.JobProgressEntry{}, fmt.Errorf("retry job %d: %w", jobID, err)
		}
	}

	t.mu.Lock()
	job, ok = t.jobs[jobID]
	if !ok || job.entry.Status != domain.JobStatusFailed {
		t.mu.Unlock()
		return domain.JobProgressEntry{}, ErrJobNotFailed
	}
	if job.task != nil {
		job.task.stop()
		job.task = nil
	}
	job.entry.Status = domain.JobStatusProcessing
	job.entry.Percent = 0
	job.entry.Error = ""
	job.entry.UpdatedAt = time.Now()
	job.seenProcessing = false
	job.retries++
	t.startLocked(job)
	entry := job.entry
	retries := job.retries
	t.mu.Unlock()

	t.logger.Infow("job_retry_started", "job_id", jobID, "retries", retries)
	t.persist(entry, "", retries)
	t.publish(entry)
	t.recordEvent(entry, domain.EventTypeJobRetried, domain.EventStatusPending, "job retried")
	return entry, nil
}

func (t *JobProgressTracker) Get(jobID uint) (domain.JobProgressEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if !ok {
		return domain.JobProgressEntry{}, false
	}
	return job.entry, true
}

func (t *JobProgressTracker) List() []domain.JobProgressEntry {
	t.mu.Lock()
	out := make([]domain.JobProgressEntry, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, job.entry)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

// Remove stops the job's poll loop and drops its entry.
func (t *JobProgressTracker) Remove(jobID uint) bool {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if ok {
		t.teardownLocked(job)
		delete(t.jobs, jobID)
	}
	t.mu.Unlock()

	if ok && t.notifier != nil {
		t.notifier.Close(jobID, 0)
	}
	return ok
}

// Close stops every poll loop and waits for them to exit.
func (t *JobProgressTracker) Close() {
	t.mu.Lock()
	for _, job := range t.jobs {
		t.teardownLocked(job)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *JobProgressTracker) startLocked(job *trackedJob) {
	ctx, cancel := context.WithCancel(context.Background())
	task := &pollTask{cancel: cancel}
	job.task = task
	t.wg.Add(1)
	t.metrics.pollStarted()
	go t.poll(ctx, job.entry.JobID, task)
}

func (t *JobProgressTracker) teardownLocked(job *trackedJob) {
	if job.task != nil {
		job.task.stop()
		job.task = nil
	}
	if job.dismiss != nil {
		job.dismiss.Stop()
		job.dismiss = nil
	}
}

func (t *JobProgressTracker) poll(ctx context.Context, jobID uint, task *pollTask) {
	defer t.wg.Done()
	defer task.stop()
	defer t.metrics.pollStopped()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !t.tick(ctx, jobID, task) {
			return
		}
	}
}

// tick fetches the job once and applies the result. It reports whether polling should continue.
func (t *JobProgressTracker) tick(ctx context.Context, jobID uint, task *pollTask) bool {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok || job.task != task {
		t.mu.Unlock()
		return false
	}
	clusterID := job.entry.ClusterID
	t.mu.Unlock()

	details, err := t.jobAPI.GetJobStatus(ctx, clusterID, jobID)
	if ctx.Err() != nil {
		return false
	}

	t.mu.Lock()
	job, ok = t.jobs[jobID]
	if !ok || job.task != task {
		t.mu.Unlock()
		return false
	}

	var (
		fire      func()
		finished  bool
		prevState = job.entry.Status
	)
	switch {
	case err != nil || details == nil:
		if err == nil {
			err = fmt.Errorf("empty job status")
		}
		t.metrics.pollFailed()
		job.entry.Status = domain.JobStatusFailed
		job.entry.Percent = 100
		job.entry.Error = err.Error()
		finished = true

	case details.State == domain.JobStateSuccessful:
		job.entry.Payload = details
		job.entry.Status = domain.JobStatusSuccess
		job.entry.Percent = 100
		finished = true
		if !job.completed {
			job.completed = true
			fire = job.onSuccess
		}
		owner := job
		job.dismiss = time.AfterFunc(t.dismissDelay, func() { t.dismiss(jobID, owner) })

	case details.State == domain.JobStateFailed:
		job.entry.Payload = details
		job.entry.Status = domain.JobStatusFailed
		job.entry.Percent = 100
		finished = true

	case details.State == domain.JobStateProcessing:
		job.entry.Payload = details
		if job.seenProcessing && job.entry.Percent < t.cap {
			job.entry.Percent += t.step
			if job.entry.Percent > t.cap {
				job.entry.Percent = t.cap
			}
		}
		job.seenProcessing = true

	default:
		job.entry.Payload = details
	}

	job.entry.UpdatedAt = time.Now()
	if finished {
		job.task = nil
	}
	entry := job.entry
	retries := job.retries
	t.mu.Unlock()

	state := domain.JobState("")
	if details != nil {
		state = details.State
	}
	if finished || entry.Status != prevState {
		t.persist(entry, state, retries)
	}
	t.publish(entry)

	if !finished {
		return true
	}

	t.metrics.jobFinished(string(entry.Status))
	if entry.Status == domain.JobStatusSuccess {
		t.logger.Infow("job_succeeded", "job_id", jobID, "name", entry.Name)
		t.recordEvent(entry, domain.EventTypeJobFinished, domain.EventStatusSuccess, "job finished successfully")
		if t.notifier != nil {
			t.notifier.Close(jobID, t.dismissDelay)
		}
		if fire != nil {
			t.runContinuation(jobID, fire)
		}
	} else {
		t.logger.Warnw("job_failed", "job_id", jobID, "name", entry.Name, "error", entry.Error)
		t.recordEvent(entry, domain.EventTypeJobFinished, domain.EventStatusFailed, "job failed")
	}
	return false
}

// dismiss drops a successful entry once its notification display delay has passed.
func (t *JobProgressTracker) dismiss(jobID uint, owner *trackedJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if !ok || job != owner || job.entry.Status != domain.JobStatusSuccess {
		return
	}
	job.dismiss = nil
	delete(t.jobs, jobID)
	t.logger.Infow("job_dismissed", "job_id", jobID)
}

func (t *JobProgressTracker) runContinuation(jobID uint, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorw("job_continuation_panic", "job_id", jobID, "panic", r)
		}
	}()
	fn()
}

func (t *JobProgressTracker) publish(entry domain.JobProgressEntry) {
	if t.notifier != nil {
		t.notifier.Publish(entry)
	}
}

func (t *JobProgressTracker) persist(entry domain.JobProgressEntry, state domain.JobState, retries int) {
	if t.records == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := &domain.JobRecord{
		JobID:     entry.JobID,
		ClusterID: entry.ClusterID,
		Name:      entry.Name,
		Status:    entry.Status,
		Percent:   entry.Percent,
		State:     state,
		Error:     entry.Error,
		Retries:   retries,
	}
	if err := t.records.Upsert(ctx, record); err != nil {
		t.logger.Warnw("job_record_persist_failed", "job_id", entry.JobID, "error", err)
	}
}

func (t *JobProgressTracker) recordEvent(entry domain.JobProgressEntry, eventType string, status domain.EventStatus, msg string) {
	if t.timelineRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	event := &domain.TimelineEvent{
		Type:         eventType,
		Status:       status,
		Message:      msg,
		ResourceType: domain.ResourceTypeJob,
		ResourceID:   fmt.Sprintf("%d", entry.JobID),
		Meta: domain.JSONB{
			"cluster_id": entry.ClusterID,
			"name":       entry.Name,
			"error":      entry.Error,
		},
	}
	if err := t.timelineRepo.Create(ctx, event); err != nil {
		t.logger.Warnw("job_timeline_event_failed", "job_id", entry.JobID, "error", err)
	}
}
