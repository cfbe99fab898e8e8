package domain

import (
	"github.com/google/uuid"
)

type TriggerType string

const (
	TriggerTypeCron    TriggerType = "cron"
	TriggerTypeWebhook TriggerType = "webhook"
	TriggerTypeManual  TriggerType = "manual"
)

// Trigger belongs to exactly one Pipeline.
// CronExpression is assumed valid whenever Enabled is true and Type is cron;
// syntax validation happens at pipeline save time, not here.
type Trigger struct {
	ID      uuid.UUID
	Type    TriggerType
	Enabled bool

	CronExpression string
}
