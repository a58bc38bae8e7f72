package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== ENUMS ====================

type CreationMode string

const (
	// CreationModeInternal creates services inside an existing cluster; infra must already exist.
	CreationModeInternal CreationMode = "internal"
	// CreationModePublic installs infra-level services cluster-wide.
	CreationModePublic CreationMode = "public"
)

type PropertyAction string

const (
	PropertyActionAdd    PropertyAction = "add"
	PropertyActionUpdate PropertyAction = "update"
	PropertyActionDelete PropertyAction = "delete"
)

type ResolveAction string

const (
	ResolveActionAdd    ResolveAction = "add"
	ResolveActionRemove ResolveAction = "remove"
)

// InfraStack is the stack whose services are shared platform dependencies.
const InfraStack = "infra"

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return errors.New("failed to scan JSONB: invalid type")
}

// ==================== CATALOG ====================

type Property struct {
	Name   string         `json:"name" yaml:"name"`
	Value  string         `json:"value" yaml:"value"`
	Action PropertyAction `json:"action,omitempty" yaml:"action,omitempty"`
	// Manual marks properties entered by hand rather than shipped with the stack.
	Manual bool `json:"manual,omitempty" yaml:"manual,omitempty"`
}

type ConfigSection struct {
	Name       string     `json:"name" yaml:"name"`
	Properties []Property `json:"properties" yaml:"properties"`
}

// Sections is a list of config sections persisted as a JSON column.
type Sections []ConfigSection

func (s Sections) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *Sections) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return errors.New("failed to scan Sections: invalid type")
}

// CloneSections deep-copies sections so a snapshot never aliases the live copy.
func CloneSections(in []ConfigSection) []ConfigSection {
	if in == nil {
		return nil
	}
	out := make([]ConfigSection, len(in))
	for i, sec := range in {
		out[i] = ConfigSection{Name: sec.Name}
		if sec.Properties != nil {
			out[i].Properties = append([]Property(nil), sec.Properties...)
		}
	}
	return out
}

type ComponentDescriptor struct {
	Name        string      `json:"name" yaml:"name"`
	DisplayName string      `json:"display_name" yaml:"display_name"`
	Cardinality Cardinality `json:"cardinality" yaml:"cardinality"`
	Hosts       []string    `json:"hosts,omitempty" yaml:"hosts,omitempty"`
}

type ServiceDescriptor struct {
	Name             string                `json:"name" yaml:"name"`
	DisplayName      string                `json:"display_name" yaml:"display_name"`
	Stack            string                `json:"stack" yaml:"stack"`
	Version          string                `json:"version,omitempty" yaml:"version,omitempty"`
	Components       []ComponentDescriptor `json:"components" yaml:"components"`
	RequiredServices []string              `json:"required_services" yaml:"required_services"`
	Configs          []ConfigSection       `json:"configs" yaml:"configs"`
	Installed        bool                  `json:"installed" yaml:"installed"`
}

func (s ServiceDescriptor) IsInfra() bool {
	return s.Stack == InfraStack
}

// Clone returns a copy that shares no slices with s.
func (s ServiceDescriptor) Clone() ServiceDescriptor {
	out := s
	out.RequiredServices = append([]string(nil), s.RequiredServices...)
	out.Configs = CloneSections(s.Configs)
	if s.Components != nil {
		out.Components = make([]ComponentDescriptor, len(s.Components))
		for i, c := range s.Components {
			c.Hosts = append([]string(nil), c.Hosts...)
			out.Components[i] = c
		}
	}
	return out
}

type Stack struct {
	Name     string              `json:"name" yaml:"name"`
	Version  string              `json:"version" yaml:"version"`
	Services []ServiceDescriptor `json:"services" yaml:"services"`
}

// Catalog is the read-only service catalog loaded once per session.
type Catalog struct {
	Stacks []Stack `json:"stacks" yaml:"stacks"`
}

func (c *Catalog) Lookup(name string) (ServiceDescriptor, bool) {
	for _, st := range c.Stacks {
		for _, svc := range st.Services {
			if svc.Name == name {
				if svc.Stack == "" {
					svc.Stack = st.Name
				}
				return svc, true
			}
		}
	}
	return ServiceDescriptor{}, false
}

// Services flattens all stacks, filling in the stack name where missing.
func (c *Catalog) Services() []ServiceDescriptor {
	var out []ServiceDescriptor
	for _, st := range c.Stacks {
		for _, svc := range st.Services {
			if svc.Stack == "" {
				svc.Stack = st.Name
			}
			out = append(out, svc)
		}
	}
	return out
}

// MissingInfra returns the names of infra services that are not installed yet.
func (c *Catalog) MissingInfra() map[string]struct{} {
	missing := make(map[string]struct{})
	for _, svc := range c.Services() {
		if svc.IsInfra() && !svc.Installed {
			missing[svc.Name] = struct{}{}
		}
	}
	return missing
}

// ==================== PERSISTED ENTITIES ====================

// ConfigSnapshot is an immutable baseline of a service configuration.
type ConfigSnapshot struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SessionID   string   `gorm:"size:64;not null;index" json:"session_id"`
	ServiceName string   `gorm:"size:255;not null" json:"service_name"`
	Sections    Sections `gorm:"type:jsonb" json:"sections"`
}
