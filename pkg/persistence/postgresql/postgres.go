// Package postgresql provides the PostgreSQL persistence implementation for
// the automation core.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/harvestcrm/automata/pkg/persistence"
	"github.com/harvestcrm/automata/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	contacts        *ContactRepository
	graphs          *GraphRepository
	enrollments     *EnrollmentRepository
	rules           *RuleRepository
	tasks           *TaskRepository
	batches         *BatchRepository
	recommendations *RecommendationRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:              database,
		logger:          logger,
		contacts:        &ContactRepository{db: database},
		graphs:          &GraphRepository{db: database, logger: logger},
		enrollments:     &EnrollmentRepository{db: database, logger: logger},
		rules:           &RuleRepository{db: database, logger: logger},
		tasks:           &TaskRepository{db: database, logger: logger},
		batches:         &BatchRepository{db: database, logger: logger},
		recommendations: &RecommendationRepository{db: database},
	}, nil
}

func (p *Persistence) Contacts() persistence.ContactRepository {
	return p.contacts
}

func (p *Persistence) Graphs() persistence.GraphRepository {
	return p.graphs
}

func (p *Persistence) Enrollments() persistence.EnrollmentRepository {
	return p.enrollments
}

func (p *Persistence) Rules() persistence.RuleRepository {
	return p.rules
}

func (p *Persistence) Tasks() persistence.TaskRepository {
	return p.tasks
}

func (p *Persistence) Batches() persistence.BatchRepository {
	return p.batches
}

func (p *Persistence) Recommendations() persistence.RecommendationRepository {
	return p.recommendations
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
