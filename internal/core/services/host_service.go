package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

const defaultProbeParallelism = 8

type HostServiceConfig struct {
	Prober      ports.HostProber
	Logger      *logger.Logger
	Parallelism int
}

type hostService struct {
	prober      ports.HostProber
	logger      *logger.Logger
	parallelism int
}

func NewHostService(cfg HostServiceConfig) ports.HostService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultProbeParallelism
	}
	return &hostService{prober: cfg.Prober, logger: log.Named("hosts"), parallelism: parallelism}
}

// Check probes every host concurrently. Unreachable hosts are reported in the
// results, not as an error; the error is set only when the context ends.
func (s *hostService) Check(ctx context.Context, hosts []string) ([]ports.HostProbeResult, error) {
	hosts = dedupeHosts(hosts)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: no hosts given", ErrCommandInvalid)
	}

	results := make([]ports.HostProbeResult, len(hosts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			res := ports.HostProbeResult{Host: host, Reachable: true}
			if err := s.prober.Probe(gctx, host); err != nil {
				res.Reachable = false
				res.Error = fmt.Errorf("%w: %v", ErrHostUnreachable, err).Error()
				s.logger.Warnw("host_probe_failed", "host", host, "error", err)
			}
			results[i] = res
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reachable := 0
	for _, r := range results {
		if r.Reachable {
			reachable++
		}
	}
	s.logger.Infow("host_probe_finished", "hosts", len(hosts), "reachable", reachable)
	return results, nil
}
