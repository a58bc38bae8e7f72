package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

type DependencyResolverConfig struct {
	Catalog   *domain.Catalog
	Confirmer ports.Confirmer
	Mode      domain.CreationMode
	Logger    *logger.Logger
}

// DependencyResolver walks the required-services graph of the catalog for one
// wizard session. It remembers which services were already handled so that a
// service is never prompted for twice and cycles terminate.
//
// A resolver is not safe for concurrent use; the wizard serializes calls per session.
type DependencyResolver struct {
	catalog   *domain.Catalog
	confirmer ports.Confirmer
	mode      domain.CreationMode
	logger    *logger.Logger
	processed map[string]struct{}
}

func NewDependencyResolver(cfg DependencyResolverConfig) *DependencyResolver {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = &domain.Catalog{}
	}
	return &DependencyResolver{
		catalog:   catalog,
		confirmer: cfg.Confirmer,
		mode:      cfg.Mode,
		logger:    log,
		processed: make(map[string]struct{}),
	}
}

// WithConfirmer returns a resolver sharing r's processed set but asking a different confirmer.
func (r *DependencyResolver) WithConfirmer(c ports.Confirmer) *DependencyResolver {
	cp := *r
	cp.confirmer = c
	return &cp
}

func (r *DependencyResolver) Processed() []string {
	out := make([]string, 0, len(r.processed))
	for name := range r.processed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *DependencyResolver) IsProcessed(name string) bool {
	_, ok := r.processed[name]
	return ok
}

// Resolve computes the services to add or remove together with target.
//
// The result lists dependencies before the service that needs them. An empty
// result with a nil error means the user declined a prompt; nothing was
// changed in that case. An infra conflict is returned as *ConflictError.
// The caller commits the returned list to its selection.
func (r *DependencyResolver) Resolve(ctx context.Context, action domain.ResolveAction, target domain.ServiceDescriptor, selection *domain.SelectionSet) ([]domain.ServiceDescriptor, error) {
	if selection == nil {
		selection = domain.NewSelectionSet()
	}
	switch action {
	case domain.ResolveActionAdd:
		var journal []string
		r.mark(target.Name, &journal)
		out, err := r.resolveAdd(ctx, target, selection, &journal)
		if err != nil || len(out) == 0 {
			r.rollback(journal)
			if ce, ok := AsConflict(err); ok {
				r.logger.Warnw("resolver_conflict", "service", ce.Service, "missing", ce.Missing)
			}
			return nil, err
		}
		r.logger.Infow("resolver_add_resolved", "target", target.Name, "count", len(out))
		return out, nil

	case domain.ResolveActionRemove:
		visited := map[string]struct{}{target.Name: {}}
		out, err := r.resolveRemove(ctx, target, selection, visited)
		if err != nil || len(out) == 0 {
			return nil, err
		}
		for _, svc := range out {
			delete(r.processed, svc.Name)
		}
		r.logger.Infow("resolver_remove_resolved", "target", target.Name, "count", len(out))
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
}

func (r *DependencyResolver) resolveAdd(ctx context.Context, svc domain.ServiceDescriptor, selection *domain.SelectionSet, journal *[]string) ([]domain.ServiceDescriptor, error) {
	if len(svc.RequiredServices) == 0 {
		return []domain.ServiceDescriptor{svc}, nil
	}
	if err := r.checkInfra(svc); err != nil {
		return nil, err
	}

	var deps []domain.ServiceDescriptor
	for _, name := range svc.RequiredServices {
		if r.IsProcessed(name) || selection.Has(name) {
			continue
		}
		dep, ok := r.catalog.Lookup(name)
		if !ok {
			r.logger.Warnw("resolver_dependency_unknown", "service", svc.Name, "dependency", name)
			continue
		}
		if dep.Installed {
			continue
		}

		approved, err := r.confirm(ctx, ports.Prompt{
			Action:  domain.ResolveActionAdd,
			Service: name,
			Target:  svc.Name,
			Message: fmt.Sprintf("%s requires %s. Add %s as well?", displayName(svc), displayName(dep), displayName(dep)),
		})
		if err != nil || !approved {
			return nil, err
		}

		r.mark(name, journal)
		sub, err := r.resolveAdd(ctx, dep, selection, journal)
		if err != nil || len(sub) == 0 {
			delete(r.processed, name)
			return nil, err
		}
		deps = append(deps, sub...)
	}
	return append(deps, svc), nil
}

func (r *DependencyResolver) resolveRemove(ctx context.Context, svc domain.ServiceDescriptor, selection *domain.SelectionSet, visited map[string]struct{}) ([]domain.ServiceDescriptor, error) {
	var dependents []domain.ServiceDescriptor
	for _, cand := range selection.Services() {
		if _, seen := visited[cand.Name]; seen || cand.Installed || !requires(cand, svc.Name) {
			continue
		}

		approved, err := r.confirm(ctx, ports.Prompt{
			Action:  domain.ResolveActionRemove,
			Service: cand.Name,
			Target:  svc.Name,
			Message: fmt.Sprintf("%s depends on %s. Remove %s as well?", displayName(cand), displayName(svc), displayName(cand)),
		})
		if err != nil || !approved {
			return nil, err
		}

		visited[cand.Name] = struct{}{}
		sub, err := r.resolveRemove(ctx, cand, selection, visited)
		if err != nil || len(sub) == 0 {
			delete(visited, cand.Name)
			return nil, err
		}
		dependents = append(dependents, sub...)
	}
	return append(dependents, svc), nil
}

// checkInfra rejects services needing infra that is not installed, in internal mode only.
func (r *DependencyResolver) checkInfra(svc domain.ServiceDescriptor) error {
	if r.mode != domain.CreationModeInternal {
		return nil
	}
	missingInfra := r.catalog.MissingInfra()
	var missing []string
	for _, name := range svc.RequiredServices {
		if _, ok := missingInfra[name]; ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ConflictError{Service: svc.Name, Missing: missing}
	}
	return nil
}

func (r *DependencyResolver) confirm(ctx context.Context, prompt ports.Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if r.confirmer == nil {
		return false, nil
	}
	approved, err := r.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("confirm %s of %s: %w", prompt.Action, prompt.Service, err)
	}
	if !approved {
		r.logger.Infow("resolver_prompt_declined", "action", prompt.Action, "service", prompt.Service, "target", prompt.Target)
	}
	return approved, nil
}

func (r *DependencyResolver) mark(name string, journal *[]string) {
	if _, ok := r.processed[name]; ok {
		return
	}
	r.processed[name] = struct{}{}
	*journal = append(*journal, name)
}

func (r *DependencyResolver) rollback(journal []string) {
	for _, name := range journal {
		delete(r.processed, name)
	}
}

func requires(svc domain.ServiceDescriptor, name string) bool {
	for _, req := range svc.RequiredServices {
		if req == name {
			return true
		}
	}
	return false
}

func displayName(svc domain.ServiceDescriptor) string {
	if svc.DisplayName != "" {
		return svc.DisplayName
	}
	return svc.Name
}
