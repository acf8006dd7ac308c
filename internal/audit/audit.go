package audit

import (
	"time"

	"go.uber.org/zap"
)

// Actor is the already-resolved identity performing a mutation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// System is used by background jobs that act on their own behalf.
var System = Actor{ID: "system", Name: "system"}

// Label is the value stamped into change_log *_by fields.
func (a Actor) Label() string {
	if a.ID == "" {
		return System.ID
	}
	return a.ID
}

// ChangeLog is provenance metadata kept inside detail_info.
type ChangeLog struct {
	CreatedAt *time.Time `json:"created_at,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
}

// Action names used for audit entries.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionRestore = "restore"
)

// Service stamps change logs and writes audit entries.
type Service struct {
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewService constructs a Service. A nil logger disables audit output.
func NewService(logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of the service using now as its time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.now = now
	return &c
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time { return s.now() }

// Stamp updates cl for action performed by actor and returns the timestamp used.
func (s *Service) Stamp(cl *ChangeLog, action string, actor Actor) time.Time {
	ts := s.now()
	by := actor.Label()
	switch action {
	case ActionCreate:
		cl.CreatedAt, cl.CreatedBy = &ts, by
		cl.UpdatedAt, cl.UpdatedBy = &ts, by
	case ActionDelete:
		cl.DeletedAt, cl.DeletedBy = &ts, by
		cl.UpdatedAt, cl.UpdatedBy = &ts, by
	case ActionRestore:
		cl.DeletedAt, cl.DeletedBy = nil, ""
		cl.UpdatedAt, cl.UpdatedBy = &ts, by
	default:
		cl.UpdatedAt, cl.UpdatedBy = &ts, by
	}
	return ts
}

// Record writes an audit entry for a committed mutation.
func (s *Service) Record(resource string, id int64, action string, actor Actor, lockVersion int64) {
	s.logger.Infow("audit",
		"resource", resource,
		"id", id,
		"action", action,
		"actor", actor.Label(),
		"lock_version", lockVersion,
	)
}
