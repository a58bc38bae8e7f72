package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

type WizardServiceConfig struct {
	Catalog      ports.CatalogAPI
	Commands     ports.CommandAPI
	Tracker      ports.JobTracker
	Snapshots    ports.SnapshotRepository
	TimelineRepo ports.TimelineRepository
	Builder      *CommandBuilder
	Metrics      *Metrics
	Logger       *logger.Logger
	ClusterID    uint
	Mode         domain.CreationMode
	EnableLocks  bool
}

type wizardSession struct {
	state    *domain.WizardSession
	resolver *DependencyResolver
	// jobID is the last job submitted from the session; zero before the first submit.
	jobID uint
}

type wizardService struct {
	catalog      ports.CatalogAPI
	commands     ports.CommandAPI
	tracker      ports.JobTracker
	snapshots    ports.SnapshotRepository
	timelineRepo ports.TimelineRepository
	builder      *CommandBuilder
	metrics      *Metrics
	logger       *logger.Logger
	clusterID    uint
	mode         domain.CreationMode

	enableLocks bool
	mu          sync.Mutex
	locks       map[string]*sync.Mutex

	sessMu   sync.RWMutex
	sessions map[string]*wizardSession
}

func NewWizardService(cfg WizardServiceConfig) ports.WizardService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	builder := cfg.Builder
	if builder == nil {
		builder = NewCommandBuilder()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = domain.CreationModeInternal
	}
	return &wizardService{
		catalog:      cfg.Catalog,
		commands:     cfg.Commands,
		tracker:      cfg.Tracker,
		snapshots:    cfg.Snapshots,
		timelineRepo: cfg.TimelineRepo,
		builder:      builder,
		metrics:      cfg.Metrics,
		logger:       log.Named("wizard"),
		clusterID:    cfg.ClusterID,
		mode:         mode,
		enableLocks:  cfg.EnableLocks,
		locks:        make(map[string]*sync.Mutex),
		sessions:     make(map[string]*wizardSession),
	}
}

// lockKeys acquires per-key mutexes in a stable order and returns the release func.
func (s *wizardService) lockKeys(keys ...string) func() {
	if !s.enableLocks || len(keys) == 0 {
		return func() {}
	}
	sort.Strings(keys)
	s.mu.Lock()
	acquired := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := s.locks[k]
		if m == nil {
			m = &sync.Mutex{}
			s.locks[k] = m
		}
		acquired = append(acquired, m)
	}
	s.mu.Unlock()
	for _, m := range acquired {
		m.Lock()
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

func sessionKey(id string) string {
	return "wizard:" + id
}

func (s *wizardService) Start(ctx context.Context) (*domain.WizardSession, error) {
	catalog, err := s.catalog.GetCatalog(ctx, s.clusterID)
	if err != nil {
		s.logger.Errorw("wizard_catalog_load_failed", "cluster_id", s.clusterID, "error", err)
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if catalog == nil {
		catalog = &domain.Catalog{}
	}

	state := domain.NewWizardSession(uuid.New().String(), s.clusterID, s.mode, catalog)
	for _, svc := range state.Selection.Services() {
		state.Snapshots[svc.Name] = domain.CloneSections(svc.Configs)
	}
	sess := &wizardSession{
		state: state,
		resolver: NewDependencyResolver(DependencyResolverConfig{
			Catalog: catalog,
			Mode:    s.mode,
			Logger:  s.logger.Named("resolver"),
		}),
	}

	s.sessMu.Lock()
	s.sessions[state.ID] = sess
	s.sessMu.Unlock()

	s.logger.Infow("wizard_started", "session_id", state.ID, "cluster_id", s.clusterID, "mode", s.mode, "installed", state.Selection.Len())
	s.recordEvent(state.ID, domain.EventTypeWizardStarted, domain.EventStatusSuccess, "wizard session started", domain.JSONB{
		"cluster_id": s.clusterID,
		"mode":       string(s.mode),
	})
	return state.Clone(), nil
}

func (s *wizardService) Get(sessionID string) (*domain.WizardSession, error) {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.state.Clone(), nil
}

func (s *wizardService) Reset(ctx context.Context, sessionID string) error {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	if _, err := s.session(sessionID); err != nil {
		return err
	}
	s.sessMu.Lock()
	delete(s.sessions, sessionID)
	s.sessMu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.DeleteBySession(ctx, sessionID); err != nil {
			s.logger.Warnw("wizard_snapshot_delete_failed", "session_id", sessionID, "error", err)
		}
	}
	s.logger.Infow("wizard_reset", "session_id", sessionID)
	return nil
}

func (s *wizardService) ResolveService(ctx context.Context, input ports.ResolveInput) (*ports.ResolveOutput, error) {
	unlock := s.lockKeys(sessionKey(input.SessionID))
	defer unlock()

	sess, err := s.editable(input.SessionID)
	if err != nil {
		return nil, err
	}
	state := sess.state
	action := string(input.Action)

	switch input.Action {
	case domain.ResolveActionAdd:
		if state.Selection.Has(input.Service) {
			return s.resolveOutput(state, nil, nil), nil
		}
		target, ok := state.Catalog.Lookup(input.Service)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrServiceUnknown, input.Service)
		}
		confirmer := NewPresetConfirmer(input.Approvals, input.ApproveAll)
		added, err := sess.resolver.WithConfirmer(confirmer).Resolve(ctx, input.Action, target, state.Selection)
		if err != nil {
			if ce, ok := AsConflict(err); ok {
				s.metrics.resolved(action, "conflict")
				s.recordEvent(state.ID, domain.EventTypeServiceConflict, domain.EventStatusFailed, ce.Error(), domain.JSONB{
					"service": ce.Service,
					"missing": ce.Missing,
				})
				return nil, err
			}
			s.metrics.resolved(action, "error")
			return nil, err
		}
		if len(added) == 0 {
			s.metrics.resolved(action, "declined")
			s.logger.Infow("wizard_resolve_declined", "session_id", state.ID, "action", action, "target", target.Name, "prompts", len(confirmer.Asked()))
			return s.resolveOutput(state, nil, confirmer.Rejected()), nil
		}

		names := make([]string, 0, len(added))
		for _, svc := range added {
			state.Selection.Add(svc.Clone())
			if _, ok := state.Snapshots[svc.Name]; !ok {
				state.Snapshots[svc.Name] = domain.CloneSections(svc.Configs)
			}
			names = append(names, svc.Name)
		}
		state.UpdatedAt = time.Now()
		s.metrics.resolved(action, "changed")
		s.logger.Infow("wizard_services_added", "session_id", state.ID, "target", target.Name, "services", names, "prompts", len(confirmer.Asked()))
		s.recordEvent(state.ID, domain.EventTypeServiceAdded, domain.EventStatusSuccess,
			fmt.Sprintf("added %s", target.Name), domain.JSONB{"services": names})
		return s.resolveOutput(state, names, nil), nil

	case domain.ResolveActionRemove:
		target, ok := state.Selection.Get(input.Service)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrServiceNotSelected, input.Service)
		}
		if target.Installed {
			return nil, fmt.Errorf("%w: %s", ErrInstalledUnremovable, input.Service)
		}
		confirmer := NewPresetConfirmer(input.Approvals, input.ApproveAll)
		removed, err := sess.resolver.WithConfirmer(confirmer).Resolve(ctx, input.Action, target, state.Selection)
		if err != nil {
			s.metrics.resolved(action, "error")
			return nil, err
		}
		if len(removed) == 0 {
			s.metrics.resolved(action, "declined")
			s.logger.Infow("wizard_resolve_declined", "session_id", state.ID, "action", action, "target", target.Name, "prompts", len(confirmer.Asked()))
			return s.resolveOutput(state, nil, confirmer.Rejected()), nil
		}

		names := make([]string, 0, len(removed))
		for _, svc := range removed {
			names = append(names, svc.Name)
			delete(state.Snapshots, svc.Name)
			for comp := range state.HostsFor(svc.Name) {
				delete(state.ComponentHosts, domain.ComponentKey(svc.Name, comp))
			}
		}
		state.Selection.Remove(names...)
		state.UpdatedAt = time.Now()
		s.metrics.resolved(action, "changed")
		s.logger.Infow("wizard_services_removed", "session_id", state.ID, "target", target.Name, "services", names, "prompts", len(confirmer.Asked()))
		s.recordEvent(state.ID, domain.EventTypeServiceRemoved, domain.EventStatusSuccess,
			fmt.Sprintf("removed %s", target.Name), domain.JSONB{"services": names})
		return s.resolveOutput(state, names, nil), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidAction, input.Action)
}

func (s *wizardService) AssignHosts(ctx context.Context, sessionID string, assignments map[string][]string) error {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	sess, err := s.editable(sessionID)
	if err != nil {
		return err
	}
	state := sess.state

	validated := make(map[string][]string, len(assignments))
	for key, hosts := range assignments {
		service, component := domain.SplitComponentKey(key)
		svc, ok := state.Selection.Get(service)
		if !ok {
			return fmt.Errorf("%w: %s: service %q is not selected", ErrInvalidAssignment, key, service)
		}
		comp, ok := findComponent(svc, component)
		if !ok {
			return fmt.Errorf("%w: %s: unknown component", ErrInvalidAssignment, key)
		}
		unique := dedupeHosts(hosts)
		if len(unique) > 0 && !comp.Cardinality.Allows(len(unique)) {
			return fmt.Errorf("%w: %s needs %s hosts, got %d", ErrInvalidAssignment, key, comp.Cardinality, len(unique))
		}
		validated[key] = unique
	}

	for key, hosts := range validated {
		if len(hosts) == 0 {
			delete(state.ComponentHosts, key)
			continue
		}
		state.ComponentHosts[key] = hosts
	}
	state.UpdatedAt = time.Now()
	s.logger.Infow("wizard_hosts_assigned", "session_id", sessionID, "components", len(validated))
	return nil
}

func (s *wizardService) CaptureSnapshot(ctx context.Context, sessionID string) error {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	sess, err := s.editable(sessionID)
	if err != nil {
		return err
	}
	state := sess.state

	for _, svc := range state.PendingServices() {
		sections := domain.CloneSections(svc.Configs)
		state.Snapshots[svc.Name] = sections
		if s.snapshots == nil {
			continue
		}
		if err := s.snapshots.Save(ctx, &domain.ConfigSnapshot{
			SessionID:   sessionID,
			ServiceName: svc.Name,
			Sections:    domain.CloneSections(sections),
		}); err != nil {
			s.logger.Errorw("wizard_snapshot_save_failed", "session_id", sessionID, "service", svc.Name, "error", err)
			return fmt.Errorf("save snapshot of %s: %w", svc.Name, err)
		}
	}
	now := time.Now()
	state.SnapshotAt = &now
	state.UpdatedAt = now
	s.logger.Infow("wizard_snapshot_captured", "session_id", sessionID, "services", len(state.Snapshots))
	return nil
}

func (s *wizardService) Snapshots(ctx context.Context, sessionID string) ([]domain.ConfigSnapshot, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}
	if s.snapshots == nil {
		return []domain.ConfigSnapshot{}, nil
	}
	return s.snapshots.GetBySession(ctx, sessionID)
}

func (s *wizardService) UpdateConfigs(ctx context.Context, sessionID, service string, sections []domain.ConfigSection) error {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	sess, err := s.editable(sessionID)
	if err != nil {
		return err
	}
	svc, ok := sess.state.Selection.Get(service)
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotSelected, service)
	}
	if svc.Installed {
		return fmt.Errorf("%w: %s", ErrServiceInstalled, service)
	}
	svc.Configs = domain.CloneSections(sections)
	sess.state.Selection.Update(svc)
	sess.state.UpdatedAt = time.Now()
	return nil
}

func (s *wizardService) PreviewDiff(ctx context.Context, sessionID string) (map[string][]domain.ConfigSection, error) {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.ConfigSection)
	for _, svc := range sess.state.PendingServices() {
		if diff := DiffConfigs(svc.Configs, sess.state.Snapshots[svc.Name]); len(diff) > 0 {
			out[svc.Name] = diff
		}
	}
	return out, nil
}

// Submit sends the service-creation command for the session and tracks the job.
// The session is discarded once the job succeeds.
func (s *wizardService) Submit(ctx context.Context, sessionID string) (*ports.SubmitOutput, error) {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	sess, err := s.editable(sessionID)
	if err != nil {
		return nil, err
	}
	state := sess.state
	if len(state.PendingServices()) == 0 {
		return nil, ErrNothingToSubmit
	}
	if err := validateCardinality(state); err != nil {
		return nil, err
	}

	req := s.builder.BuildServiceCommand(state.Selection.Services(), state.ComponentHosts, state.Snapshots)
	req.ClusterID = state.ClusterID
	return s.submit(ctx, sess, req)
}

// SubmitComponents sends the component-attachment command built from the session's host assignments.
func (s *wizardService) SubmitComponents(ctx context.Context, sessionID string) (*ports.SubmitOutput, error) {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	sess, err := s.editable(sessionID)
	if err != nil {
		return nil, err
	}
	state := sess.state

	req := s.builder.BuildComponentCommand(state.ComponentHosts)
	if len(req.ComponentCommands) == 0 {
		return nil, ErrNothingToSubmit
	}
	req.ClusterID = state.ClusterID
	return s.submit(ctx, sess, req)
}

func (s *wizardService) submit(ctx context.Context, sess *wizardSession, req *domain.CommandRequest) (*ports.SubmitOutput, error) {
	state := sess.state
	level := string(req.CommandLevel)
	result, err := s.commands.SubmitCommand(ctx, req)
	if err != nil {
		s.metrics.submitted(level, "failed")
		s.logger.Errorw("wizard_submit_failed", "session_id", state.ID, "level", level, "error", err)
		return nil, fmt.Errorf("submit %s command: %w", level, err)
	}
	if result == nil {
		s.metrics.submitted(level, "failed")
		return nil, fmt.Errorf("submit %s command: manager returned no job", level)
	}
	s.metrics.submitted(level, "accepted")

	sessionID := state.ID
	sess.jobID = result.JobID
	entry := s.tracker.Track(state.ClusterID, *result, func() {
		s.discard(sessionID)
	})

	s.logger.Infow("wizard_submitted", "session_id", sessionID, "level", level, "job_id", result.JobID)
	s.recordEvent(sessionID, domain.EventTypeCommandSubmit, domain.EventStatusPending,
		fmt.Sprintf("%s command submitted", level), domain.JSONB{
			"job_id": result.JobID,
			"level":  level,
		})
	return &ports.SubmitOutput{Job: *result, Progress: entry}, nil
}

// discard drops a session after its job succeeded.
func (s *wizardService) discard(sessionID string) {
	unlock := s.lockKeys(sessionKey(sessionID))
	defer unlock()

	s.sessMu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.sessMu.Unlock()
	if !ok {
		return
	}

	if s.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.snapshots.DeleteBySession(ctx, sessionID); err != nil {
			s.logger.Warnw("wizard_snapshot_delete_failed", "session_id", sessionID, "error", err)
		}
	}
	s.logger.Infow("wizard_discarded", "session_id", sessionID)
}

func (s *wizardService) session(id string) (*wizardSession, error) {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// editable returns the session unless its last submitted job is still tracked and has not failed.
// A failed job frees the session; retrying that job locks it again.
func (s *wizardService) editable(id string) (*wizardSession, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	if sess.jobID == 0 || s.tracker == nil {
		return sess, nil
	}
	if entry, ok := s.tracker.Get(sess.jobID); ok && entry.Status != domain.JobStatusFailed {
		return nil, fmt.Errorf("%w: job %d is %s", ErrSessionSubmitted, sess.jobID, entry.Status)
	}
	return sess, nil
}

func (s *wizardService) resolveOutput(state *domain.WizardSession, changed []string, rejected *ports.Prompt) *ports.ResolveOutput {
	if changed == nil {
		changed = []string{}
	}
	return &ports.ResolveOutput{
		Changed:   changed,
		Selection: state.Selection.Names(),
		Rejected:  rejected,
	}
}

func (s *wizardService) recordEvent(sessionID, eventType string, status domain.EventStatus, msg string, meta domain.JSONB) {
	if s.timelineRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	event := &domain.TimelineEvent{
		Type:         eventType,
		Status:       status,
		Message:      msg,
		Meta:         meta,
		ResourceID:   sessionID,
		ResourceType: domain.ResourceTypeWizard,
	}
	if err := s.timelineRepo.Create(ctx, event); err != nil {
		s.logger.Warnw("timeline_event_failed", "type", eventType, "session_id", sessionID, "error", err)
	}
}

// validateCardinality checks every component of the pending services against its host count.
func validateCardinality(state *domain.WizardSession) error {
	for _, svc := range state.PendingServices() {
		for _, comp := range svc.Components {
			hosts, ok := state.ComponentHosts[domain.ComponentKey(svc.Name, comp.Name)]
			if !ok {
				hosts = comp.Hosts
			}
			if !comp.Cardinality.Allows(len(hosts)) {
				return fmt.Errorf("%w: %s needs %s hosts, got %d",
					ErrInvalidAssignment, domain.ComponentKey(svc.Name, comp.Name), comp.Cardinality, len(hosts))
			}
		}
	}
	return nil
}

func findComponent(svc domain.ServiceDescriptor, name string) (domain.ComponentDescriptor, bool) {
	for _, comp := range svc.Components {
		if comp.Name == name {
			return comp, true
		}
	}
	return domain.ComponentDescriptor{}, false
}

func dedupeHosts(hosts []string) []string {
	seen := make(map[string]struct{}, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
