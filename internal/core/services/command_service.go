package services

import (
	"context"
	"fmt"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

type CommandServiceConfig struct {
	Commands     ports.CommandAPI
	Tracker      ports.JobTracker
	TimelineRepo ports.TimelineRepository
	Builder      *CommandBuilder
	Metrics      *Metrics
	Logger       *logger.Logger
	ClusterID    uint
}

// commandService runs ad hoc service, host and cluster commands outside the wizard.
type commandService struct {
	commands     ports.CommandAPI
	tracker      ports.JobTracker
	timelineRepo ports.TimelineRepository
	builder      *CommandBuilder
	metrics      *Metrics
	logger       *logger.Logger
	clusterID    uint
}

func NewCommandService(cfg CommandServiceConfig) ports.CommandService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	builder := cfg.Builder
	if builder == nil {
		builder = NewCommandBuilder()
	}
	return &commandService{
		commands:     cfg.Commands,
		tracker:      cfg.Tracker,
		timelineRepo: cfg.TimelineRepo,
		builder:      builder,
		metrics:      cfg.Metrics,
		logger:       log.Named("commands"),
		clusterID:    cfg.ClusterID,
	}
}

func (s *commandService) Execute(ctx context.Context, input ports.CommandInput) (*ports.SubmitOutput, error) {
	var (
		req *domain.CommandRequest
		err error
	)
	switch input.Level {
	case domain.CommandLevelService:
		req, err = s.builder.BuildServiceLevelCommand(input.Command, input.Services)
	case domain.CommandLevelHost:
		req, err = s.builder.BuildHostCommand(input.Command, input.Hosts)
	case domain.CommandLevelCluster:
		req, err = s.builder.BuildClusterCommand(input.Command)
	default:
		err = fmt.Errorf("%w: unsupported level %q", ErrCommandInvalid, input.Level)
	}
	if err != nil {
		return nil, err
	}
	if input.Command == domain.CommandCustom {
		if input.CustomCommand == "" {
			return nil, fmt.Errorf("%w: custom command name required", ErrCommandInvalid)
		}
		req.CustomCommand = input.CustomCommand
	}
	req.ClusterID = s.clusterID

	level := string(req.CommandLevel)
	result, err := s.commands.SubmitCommand(ctx, req)
	if err != nil {
		s.metrics.submitted(level, "failed")
		s.logger.Errorw("command_submit_failed", "command", input.Command, "level", level, "error", err)
		return nil, fmt.Errorf("submit %s command: %w", level, err)
	}
	if result == nil {
		s.metrics.submitted(level, "failed")
		return nil, fmt.Errorf("submit %s command: manager returned no job", level)
	}
	s.metrics.submitted(level, "accepted")

	entry := s.tracker.Track(s.clusterID, *result, nil)
	s.logger.Infow("command_submitted", "command", input.Command, "level", level, "job_id", result.JobID)

	if s.timelineRepo != nil {
		event := &domain.TimelineEvent{
			Type:         domain.EventTypeCommandSubmit,
			Status:       domain.EventStatusPending,
			Message:      fmt.Sprintf("%s %s command submitted", input.Command, level),
			Meta:         domain.JSONB{"job_id": result.JobID, "level": level, "command": string(input.Command)},
			ResourceID:   fmt.Sprintf("%d", result.JobID),
			ResourceType: domain.ResourceTypeJob,
		}
		if err := s.timelineRepo.Create(ctx, event); err != nil {
			s.logger.Warnw("timeline_event_failed", "type", event.Type, "job_id", result.JobID, "error", err)
		}
	}
	return &ports.SubmitOutput{Job: *result, Progress: entry}, nil
}
