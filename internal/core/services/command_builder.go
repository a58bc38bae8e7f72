package services

import (
	"fmt"
	"sort"

	"github.com/apache/bigtop-manager-sub000/internal/domain"
)

// CommandBuilder shapes command request payloads. It never talks to the
// manager; cluster id attachment and submission happen at the call site.
type CommandBuilder struct{}

func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{}
}

// BuildServiceCommand builds the service-creation request for the selection.
// Every selected service carries its component hosts; config diffs against
// the snapshot are attached only to services that are not installed yet.
func (b *CommandBuilder) BuildServiceCommand(selection []domain.ServiceDescriptor, componentHosts map[string][]string, snapshots map[string][]domain.ConfigSection) *domain.CommandRequest {
	req := &domain.CommandRequest{
		Command:      domain.CommandAdd,
		CommandLevel: domain.CommandLevelService,
	}
	for _, svc := range selection {
		cmd := domain.ServiceCommand{
			ServiceName:    svc.Name,
			Installed:      svc.Installed,
			ComponentHosts: serviceComponentHosts(svc, componentHosts),
			Configs:        []domain.ConfigSection{},
		}
		if !svc.Installed {
			if diff := DiffConfigs(svc.Configs, snapshots[svc.Name]); diff != nil {
				cmd.Configs = diff
			}
		}
		req.ServiceCommands = append(req.ServiceCommands, cmd)
	}
	return req
}

// BuildComponentCommand flattens the service-qualified component map into a
// component-attachment request. Entries without hosts are skipped.
func (b *CommandBuilder) BuildComponentCommand(componentHosts map[string][]string) *domain.CommandRequest {
	req := &domain.CommandRequest{
		Command:      domain.CommandAdd,
		CommandLevel: domain.CommandLevelComponent,
	}
	for _, key := range domain.SortedComponentKeys(componentHosts) {
		hosts := componentHosts[key]
		if len(hosts) == 0 {
			continue
		}
		_, comp := domain.SplitComponentKey(key)
		req.ComponentCommands = append(req.ComponentCommands, domain.ComponentHost{
			ComponentName: comp,
			Hostnames:     append([]string(nil), hosts...),
		})
	}
	return req
}

// BuildServiceLevelCommand targets whole services, e.g. Start or Restart.
func (b *CommandBuilder) BuildServiceLevelCommand(command domain.Command, services []string) (*domain.CommandRequest, error) {
	if !command.Valid() || len(services) == 0 {
		return nil, fmt.Errorf("%w: service command needs a command and at least one service", ErrCommandInvalid)
	}
	req := &domain.CommandRequest{Command: command, CommandLevel: domain.CommandLevelService}
	for _, name := range services {
		req.ServiceCommands = append(req.ServiceCommands, domain.ServiceCommand{
			ServiceName:    name,
			Installed:      true,
			ComponentHosts: []domain.ComponentHost{},
			Configs:        []domain.ConfigSection{},
		})
	}
	return req, nil
}

// BuildHostCommand targets every component on the given hosts.
func (b *CommandBuilder) BuildHostCommand(command domain.Command, hostnames []string) (*domain.CommandRequest, error) {
	if !command.Valid() || len(hostnames) == 0 {
		return nil, fmt.Errorf("%w: host command needs a command and at least one host", ErrCommandInvalid)
	}
	req := &domain.CommandRequest{Command: command, CommandLevel: domain.CommandLevelHost}
	for _, h := range hostnames {
		req.HostCommands = append(req.HostCommands, domain.HostCommand{Hostname: h})
	}
	return req, nil
}

// BuildClusterCommand targets the whole cluster.
func (b *CommandBuilder) BuildClusterCommand(command domain.Command) (*domain.CommandRequest, error) {
	if !command.Valid() {
		return nil, fmt.Errorf("%w: unknown command %q", ErrCommandInvalid, command)
	}
	return &domain.CommandRequest{Command: command, CommandLevel: domain.CommandLevelCluster}, nil
}

// serviceComponentHosts lists the service's components in catalog order,
// followed by any assigned components the catalog does not describe.
func serviceComponentHosts(svc domain.ServiceDescriptor, componentHosts map[string][]string) []domain.ComponentHost {
	out := []domain.ComponentHost{}
	seen := make(map[string]struct{})
	for _, comp := range svc.Components {
		hosts, ok := componentHosts[domain.ComponentKey(svc.Name, comp.Name)]
		if !ok {
			hosts = comp.Hosts
		}
		seen[comp.Name] = struct{}{}
		if len(hosts) == 0 {
			continue
		}
		out = append(out, domain.ComponentHost{ComponentName: comp.Name, Hostnames: append([]string(nil), hosts...)})
	}

	var extra []string
	for key := range componentHosts {
		s, comp := domain.SplitComponentKey(key)
		if _, ok := seen[comp]; s == svc.Name && !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		if hosts := componentHosts[key]; len(hosts) > 0 {
			_, comp := domain.SplitComponentKey(key)
			out = append(out, domain.ComponentHost{ComponentName: comp, Hostnames: append([]string(nil), hosts...)})
		}
	}
	return out
}
