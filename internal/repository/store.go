package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/entity"
)

// DocumentStore persists documents per owner. Reads and writes for one owner
// never see another owner's documents; a foreign id behaves as not found.
type DocumentStore interface {
	// Save assigns an ID and timestamps when they are unset and stores doc.
	Save(ctx context.Context, doc *entity.Document) (string, error)
	Get(ctx context.Context, ownerID, id string) (*entity.Document, error)
	// List returns the owner's documents, newest first.
	List(ctx context.Context, ownerID string) ([]*entity.Document, error)
	Update(ctx context.Context, ownerID, id string, patch entity.DocumentPatch) (*entity.Document, error)
	Delete(ctx context.Context, ownerID, id string) error
	// FindByContentHash returns the owner's document saved from a file with this hash.
	FindByContentHash(ctx context.Context, ownerID, hash string) (*entity.Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// OpenStore opens the backend selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (DocumentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case common.BackendSQLite:
		drv, err := OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, common.WrapError(err, "open sqlite store")
		}
		return NewSQLStore(ctx, drv, nil, logger)
	case common.BackendPostgres:
		drv, pool, err := Open(ctx, Config{
			DSN:              cfg.DSN,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
			MaxConnIdleTime:  cfg.MaxConnIdleTime,
			DialTimeout:      cfg.DialTimeout,
			StatementTimeout: cfg.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, common.WrapError(err, "open postgres store")
		}
		return NewSQLStore(ctx, drv, pool, logger)
	case common.BackendFirestore:
		return NewFirestoreStore(ctx, cfg.FirestoreProject, cfg.FirestoreCollection, logger)
	}
	return nil, fmt.Errorf("%w: unknown store backend %q", common.ErrInvalidInput, cfg.Backend)
}
