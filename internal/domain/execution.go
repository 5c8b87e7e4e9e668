package domain

import (
	"time"

	"github.com/google/uuid"
)

type TriggerExecutionStatus string

const (
	ExecutionStatusSuccess TriggerExecutionStatus = "success"
	ExecutionStatusFailure TriggerExecutionStatus = "failure"
)

// TriggerExecution records one firing attempt. Rows are append-only: they
// are never mutated and only removed by cascade with their trigger.
type TriggerExecution struct {
	ID        uuid.UUID
	TriggerID uuid.UUID

	FiredAt time.Time
	Status  TriggerExecutionStatus
	Result  map[string]any

	CreatedAt time.Time
}
