package domain

import (
	"time"

	"github.com/google/uuid"
)

// CompensationEvent records one dispatched compensation for analytics.
type CompensationEvent struct {
	PipelineID  uuid.UUID
	TriggerID   uuid.UUID
	Application string

	ValidTriggerTime time.Time
	DetectedAt       time.Time
}
