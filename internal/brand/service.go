// Package brand is the application entry point for brand lifecycle
// operations. In-process callers go through Service rather than the
// repository: it owns status transitions and name uniqueness.
package brand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/brand/entity"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/brand/repo"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/query"
)

// sentinel errors for common failure modes
var (
	ErrNotFound          = errors.New("not found")
	ErrVersionConflict   = repo.ErrOptimisticLockConflict
	ErrNameTaken         = errors.New("name already in use")
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Repository is the persistence contract the service depends on.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*entity.Brand, error)
	FindByName(ctx context.Context, name string) (*entity.Brand, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, c query.Criteria) (query.Result[*entity.Brand], error)
	Insert(ctx context.Context, b *entity.Brand, actor audit.Actor) (*entity.Brand, error)
	Update(ctx context.Context, b *entity.Brand, actor audit.Actor) (*entity.Brand, error)
	Delete(ctx context.Context, b *entity.Brand, actor audit.Actor) (*entity.Brand, error)
	Restore(ctx context.Context, id int64, actor audit.Actor) (*entity.Brand, error)
}

var _ Repository = (*repo.Repo)(nil)

// Changes holds the business fields to overwrite; nil fields are left as stored.
type Changes struct {
	Name        *string
	Description *string
	Website     *string
	SortOrder   *int
}

// Service encapsulates brand lifecycle rules on top of the repository.
type Service struct {
	repo   Repository
	logger *zap.SugaredLogger
}

// NewService constructs a Service with the provided repository.
func NewService(r Repository, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, logger: logger}
}

// Get returns a live brand by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Brand, error) {
	return found(s.repo.FindByID(ctx, id))
}

// GetByName returns a live brand by name.
func (s *Service) GetByName(ctx context.Context, name string) (*entity.Brand, error) {
	return found(s.repo.FindByName(ctx, strings.TrimSpace(name)))
}

// List returns one page of live brands.
func (s *Service) List(ctx context.Context, c query.Criteria) (query.Result[*entity.Brand], error) {
	return s.repo.List(ctx, c)
}

// Create inserts a new Draft brand. Names are unique among live brands.
func (s *Service) Create(ctx context.Context, name, description, website string, sortOrder int, actor audit.Actor) (*entity.Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if err := s.ensureNameFree(ctx, name); err != nil {
		return nil, err
	}
	return s.repo.Insert(ctx, entity.NewBrand(name, description, website, sortOrder), actor)
}

// Update applies ch to the brand identified by id, provided it is still at lockVersion.
func (s *Service) Update(ctx context.Context, id, lockVersion int64, ch Changes, actor audit.Actor) (*entity.Brand, error) {
	b, err := s.load(ctx, id, lockVersion)
	if err != nil {
		return nil, err
	}
	if ch.Name != nil {
		name := strings.TrimSpace(*ch.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		if name != b.Name {
			if err := s.ensureNameFree(ctx, name); err != nil {
				return nil, err
			}
			b.Name = name
		}
	}
	if ch.Description != nil {
		b.Description = *ch.Description
	}
	if ch.Website != nil {
		b.Website = *ch.Website
	}
	if ch.SortOrder != nil {
		b.SortOrder = *ch.SortOrder
	}
	return s.repo.Update(ctx, b, actor)
}

// ChangeStatus moves the brand to next if the lifecycle allows it.
// Moving to Deleted is a soft delete.
func (s *Service) ChangeStatus(ctx context.Context, id, lockVersion int64, next entity.Status, actor audit.Actor) (*entity.Brand, error) {
	b, err := s.load(ctx, id, lockVersion)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, next)
	}
	if next == entity.StatusDeleted {
		return s.repo.Delete(ctx, b, actor)
	}
	b.Status = next
	return s.repo.Update(ctx, b, actor)
}

// Delete soft-deletes the brand.
func (s *Service) Delete(ctx context.Context, id, lockVersion int64, actor audit.Actor) (*entity.Brand, error) {
	return s.ChangeStatus(ctx, id, lockVersion, entity.StatusDeleted, actor)
}

// Restore returns a soft-deleted brand to Draft. If a live brand took the
// name in the meantime the write fails on uq_brands_name_live.
func (s *Service) Restore(ctx context.Context, id int64, actor audit.Actor) (*entity.Brand, error) {
	b, err := s.repo.Restore(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	return b, nil
}

// load fetches a live brand and checks the caller's lock version before any
// write is attempted. The repository CAS still decides races after this point.
func (s *Service) load(ctx context.Context, id, lockVersion int64) (*entity.Brand, error) {
	b, err := found(s.repo.FindByID(ctx, id))
	if err != nil {
		return nil, err
	}
	if b.LockVersion != lockVersion {
		s.logger.Debugw("stale lock version", "id", id, "expected", lockVersion, "stored", b.LockVersion)
		return nil, fmt.Errorf("%w: brand %d at lock_version %d, caller has %d", ErrVersionConflict, id, b.LockVersion, lockVersion)
	}
	return b, nil
}

func (s *Service) ensureNameFree(ctx context.Context, name string) error {
	taken, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	return nil
}

func found(b *entity.Brand, err error) (*entity.Brand, error) {
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	return b, nil
}
