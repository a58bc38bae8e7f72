package domain

import (
	"sort"
	"strings"
	"time"
)

// ComponentKey qualifies a component name with its service: "hdfs/datanode".
func ComponentKey(service, component string) string {
	return service + "/" + component
}

// SplitComponentKey is the inverse of ComponentKey. Unqualified keys return an empty service.
func SplitComponentKey(key string) (service, component string) {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

// WizardSession is the state of one create-service wizard run.
type WizardSession struct {
	ID        string       `json:"id"`
	ClusterID uint         `json:"cluster_id"`
	Mode      CreationMode `json:"creation_mode"`

	Catalog   *Catalog      `json:"-"`
	Selection *SelectionSet `json:"-"`
	// ComponentHosts maps service-qualified component keys to host names.
	ComponentHosts map[string][]string `json:"component_hosts"`
	// Snapshots holds the captured config baseline per service.
	Snapshots  map[string][]ConfigSection `json:"-"`
	SnapshotAt *time.Time                 `json:"snapshot_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewWizardSession(id string, clusterID uint, mode CreationMode, catalog *Catalog) *WizardSession {
	now := time.Now()
	var installed []ServiceDescriptor
	for _, svc := range catalog.Services() {
		if svc.Installed {
			installed = append(installed, svc.Clone())
		}
	}
	return &WizardSession{
		ID:             id,
		ClusterID:      clusterID,
		Mode:           mode,
		Catalog:        catalog,
		Selection:      NewSelectionSet(installed...),
		ComponentHosts: make(map[string][]string),
		Snapshots:      make(map[string][]ConfigSection),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone copies the mutable parts of the session; the catalog is shared read-only.
func (w *WizardSession) Clone() *WizardSession {
	out := *w
	out.Selection = NewSelectionSet(w.Selection.Services()...)
	out.ComponentHosts = make(map[string][]string, len(w.ComponentHosts))
	for k, v := range w.ComponentHosts {
		out.ComponentHosts[k] = append([]string(nil), v...)
	}
	out.Snapshots = make(map[string][]ConfigSection, len(w.Snapshots))
	for k, v := range w.Snapshots {
		out.Snapshots[k] = CloneSections(v)
	}
	return &out
}

// PendingServices returns the selected services that are not installed yet, in selection order.
func (w *WizardSession) PendingServices() []ServiceDescriptor {
	var out []ServiceDescriptor
	for _, svc := range w.Selection.Services() {
		if !svc.Installed {
			out = append(out, svc)
		}
	}
	return out
}

// HostsFor returns the component → hosts mapping of one service, keyed by bare component name.
func (w *WizardSession) HostsFor(service string) map[string][]string {
	out := make(map[string][]string)
	for key, hosts := range w.ComponentHosts {
		svc, comp := SplitComponentKey(key)
		if svc == service {
			out[comp] = hosts
		}
	}
	return out
}

// SortedComponentKeys returns the keys of a component host map in a stable order.
func SortedComponentKeys(componentHosts map[string][]string) []string {
	keys := make([]string, 0, len(componentHosts))
	for k := range componentHosts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
