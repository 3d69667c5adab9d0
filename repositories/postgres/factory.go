package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/config"
	"github.com/upb/pipebridge/repositories"
)

// RepositoryFactory creates the repositories served by a direct database
// connection. Profiles and organizations stay on the data API.
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the pool described by cfg
func NewRepositoryFactory(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// NewRepositoryFactoryWithDB builds a factory over an existing pool
func NewRepositoryFactoryWithDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// Apply replaces the event and pipe mapping repositories in repos
func (f *RepositoryFactory) Apply(repos *repositories.Repositories) {
	repos.Events = NewEventRepository(f.db, f.logger)
	repos.PipeMappings = NewPipeMappingRepository(f.db, f.logger)
}

// InitSchema creates the tables this factory's repositories use
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
