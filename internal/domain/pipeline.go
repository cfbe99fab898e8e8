package domain

import (
	"github.com/google/uuid"
)

// Pipeline is a schedulable entity as seen by the compensation loop.
// Pipelines are owned by the snapshot cache; this package never mutates them.
type Pipeline struct {
	ID          uuid.UUID
	Name        string
	Application string
	Disabled    bool

	Triggers []Trigger
}

// ActiveCronTriggers returns the pipeline's enabled cron triggers.
// Returns nil for disabled pipelines.
func (p Pipeline) ActiveCronTriggers() []Trigger {
	if p.Disabled {
		return nil
	}
	var result []Trigger
	for _, t := range p.Triggers {
		if t.Enabled && t.Type == TriggerTypeCron {
			result = append(result, t)
		}
	}
	return result
}
