package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/misfire-guard/internal/domain"
)

// Store implements snapshot.Store using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a PostgreSQL store. Each operation runs under opTimeout.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Store{db: db, opTimeout: opTimeout}
}

// GetPipelines returns all pipelines with their triggers.
// Disabled pipelines are included; filtering is the pass's concern, and the
// snapshot has to reflect what actually exists.
func (s *Store) GetPipelines(ctx context.Context) ([]domain.Pipeline, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryGetPipelines)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Pipeline
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		var p domain.Pipeline
		var triggerID uuid.NullUUID
		var triggerType, cronExpression sql.NullString
		var triggerEnabled sql.NullBool

		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Application,
			&p.Disabled,
			&triggerID,
			&triggerType,
			&triggerEnabled,
			&cronExpression,
		)
		if err != nil {
			return nil, err
		}

		i, ok := index[p.ID]
		if !ok {
			i = len(result)
			index[p.ID] = i
			result = append(result, p)
		}

		if triggerID.Valid {
			result[i].Triggers = append(result[i].Triggers, domain.Trigger{
				ID:             triggerID.UUID,
				Type:           domain.TriggerType(triggerType.String),
				Enabled:        triggerEnabled.Bool,
				CronExpression: cronExpression.String,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
