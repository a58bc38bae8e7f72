package dto

import (
	"time"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
)

type ResolveServiceRequest struct {
	Action     string   `json:"action" validate:"required,oneof=add remove"`
	Service    string   `json:"service" validate:"required"`
	Approvals  []string `json:"approvals" validate:"dive,required"`
	ApproveAll bool     `json:"approve_all"`
}

type AssignHostsRequest struct {
	Assignments map[string][]string `json:"assignments" validate:"required,min=1,dive,keys,component_key,endkeys,dive,required"`
}

type UpdateConfigsRequest struct {
	Sections []domain.ConfigSection `json:"sections" validate:"required"`
}

// ConfirmationResponse is returned with 409 when a dependency prompt was not pre-approved.
type ConfirmationResponse struct {
	Error  string       `json:"error"`
	Prompt ports.Prompt `json:"prompt"`
}

type ConflictResponse struct {
	Error   string   `json:"error"`
	Service string   `json:"service"`
	Missing []string `json:"missing"`
}

type ServiceSummary struct {
	Name             string                       `json:"name"`
	DisplayName      string                       `json:"display_name"`
	Stack            string                       `json:"stack"`
	Version          string                       `json:"version,omitempty"`
	Installed        bool                         `json:"installed"`
	RequiredServices []string                     `json:"required_services"`
	Components       []domain.ComponentDescriptor `json:"components"`
}

type WizardResponse struct {
	ID             string              `json:"id"`
	ClusterID      uint                `json:"cluster_id"`
	Mode           domain.CreationMode `json:"creation_mode"`
	Selection      []ServiceSummary    `json:"selection"`
	Pending        []string            `json:"pending"`
	ComponentHosts map[string][]string `json:"component_hosts"`
	SnapshotAt     *time.Time          `json:"snapshot_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func ToServiceSummary(svc domain.ServiceDescriptor) ServiceSummary {
	required := svc.RequiredServices
	if required == nil {
		required = []string{}
	}
	components := svc.Components
	if components == nil {
		components = []domain.ComponentDescriptor{}
	}
	return ServiceSummary{
		Name:             svc.Name,
		DisplayName:      svc.DisplayName,
		Stack:            svc.Stack,
		Version:          svc.Version,
		Installed:        svc.Installed,
		RequiredServices: required,
		Components:       components,
	}
}

func WizardToResponse(w *domain.WizardSession) WizardResponse {
	selection := make([]ServiceSummary, 0, w.Selection.Len())
	for _, svc := range w.Selection.Services() {
		selection = append(selection, ToServiceSummary(svc))
	}
	pending := []string{}
	for _, svc := range w.PendingServices() {
		pending = append(pending, svc.Name)
	}
	return WizardResponse{
		ID:             w.ID,
		ClusterID:      w.ClusterID,
		Mode:           w.Mode,
		Selection:      selection,
		Pending:        pending,
		ComponentHosts: w.ComponentHosts,
		SnapshotAt:     w.SnapshotAt,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}
