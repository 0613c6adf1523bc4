package postgres

import (
	"context"
	"fmt"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/results"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/logger"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/uniqueid"
)

// Store is a results.Sink backed by PostgreSQL.
type Store struct {
	db     *DB
	logger *logger.Logger
}

var _ results.Sink = (*Store)(nil)

// NewStore wraps an open database.
func NewStore(db *DB) *Store {
	return &Store{
		db:     db,
		logger: logger.NewLogger("RunStore"),
	}
}

// OpenStore connects to the database, creates the schema if needed and
// returns a Store that owns the connection.
func OpenStore(ctx context.Context, config *Config) (*Store, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db), nil
}

// DB returns the underlying database.
func (s *Store) DB() *DB {
	return s.db
}

// SaveRun implements results.Sink. A run without an ID gets a fresh one.
func (s *Store) SaveRun(ctx context.Context, run *results.Run) error {
	if run.ID == "" {
		run.ID = uniqueid.RunID(run.Policy)
	}
	if err := s.db.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	s.logger.Infof("Saved run %s (%s): %d ticks", run.ID, run.Policy, len(run.Series))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
