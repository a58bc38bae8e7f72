package dto

import (
	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
)

type CommandRequest struct {
	Command       string   `json:"command" validate:"required,oneof=Start Stop Restart Check Configure Custom"`
	CustomCommand string   `json:"custom_command" validate:"required_if=Command Custom"`
	Level         string   `json:"level" validate:"required,oneof=service host cluster"`
	Services      []string `json:"services" validate:"required_if=Level service,dive,required"`
	Hosts         []string `json:"hosts" validate:"required_if=Level host,dive,required"`
}

func (r *CommandRequest) ToInput() ports.CommandInput {
	return ports.CommandInput{
		Command:       domain.Command(r.Command),
		CustomCommand: r.CustomCommand,
		Level:         domain.CommandLevel(r.Level),
		Services:      r.Services,
		Hosts:         r.Hosts,
	}
}

type HostCheckRequest struct {
	Hosts []string `json:"hosts" validate:"required,min=1,max=256,dive,required"`
}
