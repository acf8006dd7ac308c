package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"go.uber.org/zap"
)

// SurrealStore mirrors documents into SurrealDB, one table per collection and
// one record per aggregate id. The connection is opened lazily so an
// unreachable mirror never blocks service start-up.
type SurrealStore struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu sync.Mutex
	db *surrealdb.DB
}

// NewSurrealStore constructs a store for cfg. No connection is made yet.
func NewSurrealStore(cfg Config, logger *zap.SugaredLogger) *SurrealStore {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SurrealStore{cfg: cfg, logger: logger}
}

// upsertQuery replaces the record unless it already holds a newer lock_version.
const upsertQuery = `UPSERT $rid CONTENT $doc WHERE lock_version IS NONE OR lock_version <= $version`

// Upsert writes doc as the full content of record collection:id.
func (s *SurrealStore) Upsert(ctx context.Context, collection string, id, version int64, doc Document) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	content := make(map[string]any, len(doc))
	for k, v := range doc {
		if t, ok := v.(time.Time); ok {
			v = models.CustomDateTime{Time: t}
		}
		content[k] = v
	}
	content["lock_version"] = version
	vars := map[string]any{
		"rid":     models.NewRecordID(collection, id),
		"doc":     content,
		"version": version,
	}
	if _, err := surrealdb.Query[[]map[string]any](ctx, db, upsertQuery, vars); err != nil {
		if ctx.Err() != nil {
			// drop the connection so the next call reconnects instead of reusing a stuck socket
			s.reset(ctx)
			return fmt.Errorf("upsert %s:%d: %w", collection, id, ctx.Err())
		}
		return &DriverError{Op: fmt.Sprintf("upsert %s:%d", collection, id), Err: err}
	}
	return nil
}

// Close closes the underlying connection, if any.
func (s *SurrealStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close(ctx)
	s.db = nil
	return err
}

func (s *SurrealStore) conn(ctx context.Context) (*surrealdb.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	db, err := surrealdb.FromEndpointURLString(ctx, s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, s.cfg.URL, err)
	}
	if s.cfg.User != "" {
		if _, err := db.SignIn(ctx, surrealdb.Auth{Username: s.cfg.User, Password: s.cfg.Password}); err != nil {
			_ = db.Close(ctx)
			return nil, &DriverError{Op: "signin", Err: err}
		}
	}
	if err := db.Use(ctx, s.cfg.Namespace, s.cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, &DriverError{Op: "use", Err: err}
	}
	s.logger.Infow("secondary store connected", "url", s.cfg.URL, "namespace", s.cfg.Namespace, "database", s.cfg.Database)
	s.db = db
	return db, nil
}

func (s *SurrealStore) reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.db.Close(closeCtx); err != nil {
		s.logger.Debugw("secondary store close failed", "err", err)
	}
	s.db = nil
}
