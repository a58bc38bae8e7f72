package services

import (
	"context"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
)

// PresetConfirmer answers resolver prompts from approvals given up front with
// the request. The first prompt it cannot approve is kept so the caller can
// ask the user and resubmit.
type PresetConfirmer struct {
	approvals  map[string]struct{}
	approveAll bool

	asked    []ports.Prompt
	rejected *ports.Prompt
}

func NewPresetConfirmer(approvals []string, approveAll bool) *PresetConfirmer {
	set := make(map[string]struct{}, len(approvals))
	for _, name := range approvals {
		set[name] = struct{}{}
	}
	return &PresetConfirmer{approvals: set, approveAll: approveAll}
}

func (c *PresetConfirmer) Confirm(ctx context.Context, prompt ports.Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.asked = append(c.asked, prompt)
	if _, ok := c.approvals[prompt.Service]; ok || c.approveAll {
		return true, nil
	}
	if c.rejected == nil {
		p := prompt
		c.rejected = &p
	}
	return false, nil
}

// Asked returns every prompt raised so far, in order.
func (c *PresetConfirmer) Asked() []ports.Prompt {
	return append([]ports.Prompt(nil), c.asked...)
}

func (c *PresetConfirmer) Rejected() *ports.Prompt {
	return c.rejected
}
