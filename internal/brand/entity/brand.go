package entity

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state stored in brands.status (SMALLINT).
type Status int16

const (
	StatusDraft       Status = 0
	StatusInactive    Status = 1
	StatusActive      Status = 2
	StatusCompleted   Status = 3
	StatusApproved    Status = 4
	StatusRejected    Status = 5
	StatusMaintenance Status = 6
	StatusDeleted     Status = 9
)

var statusNames = map[Status]string{
	StatusDraft:       "draft",
	StatusInactive:    "inactive",
	StatusActive:      "active",
	StatusCompleted:   "completed",
	StatusApproved:    "approved",
	StatusRejected:    "rejected",
	StatusMaintenance: "maintenance",
	StatusDeleted:     "deleted",
}

// transitions lists the legal next states. States absent here are terminal.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusInactive, StatusActive, StatusDeleted, StatusMaintenance},
	StatusActive:      {StatusCompleted, StatusApproved, StatusRejected},
	StatusInactive:    {StatusActive, StatusDraft, StatusDeleted},
	StatusMaintenance: {StatusInactive, StatusActive, StatusDraft, StatusDeleted},
	StatusApproved:    {StatusCompleted, StatusRejected},
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int16(s))
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ParseStatus accepts a status name (case-insensitive).
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// SyncFlagDirty marks a row whose last mirror write failed.
const SyncFlagDirty int16 = 1

// Brand is the persisted aggregate backing the brands table.
type Brand struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Website     string     `db:"website" json:"website"`
	SortOrder   int        `db:"sort_order" json:"sort_order"`
	Status      Status     `db:"status" json:"status"`
	DetailInfo  DetailInfo `db:"detail_info" json:"detail_info"`
	SyncFlag    *int16     `db:"sync_flag" json:"sync_flag"`
	LockVersion int64      `db:"lock_version" json:"lock_version"`
}

// NewBrand returns an unsaved Draft brand.
func NewBrand(name, description, website string, sortOrder int) *Brand {
	return &Brand{
		Name:        name,
		Description: description,
		Website:     website,
		SortOrder:   sortOrder,
		Status:      StatusDraft,
	}
}

// Clone returns a deep copy.
func (b *Brand) Clone() *Brand {
	c := *b
	c.DetailInfo = b.DetailInfo.Clone()
	if b.SyncFlag != nil {
		f := *b.SyncFlag
		c.SyncFlag = &f
	}
	return &c
}

// IsDeleted reports whether the brand is soft-deleted.
func (b *Brand) IsDeleted() bool { return b.Status == StatusDeleted }

// MirrorID is the document key in the secondary store.
func (b *Brand) MirrorID() int64 { return b.ID }

// MirrorVersion orders mirror writes; older versions never overwrite newer ones.
func (b *Brand) MirrorVersion() int64 { return b.LockVersion }

// MirrorDocument is the denormalized projection written to the secondary store.
func (b *Brand) MirrorDocument() map[string]any {
	return map[string]any{
		"id":           b.ID,
		"name":         b.Name,
		"description":  b.Description,
		"website":      b.Website,
		"sort_order":   b.SortOrder,
		"status":       int16(b.Status),
		"detail_info":  b.DetailInfo.Map(),
		"lock_version": b.LockVersion,
	}
}

// SyncDirty reports whether a mirror write is pending.
func (b *Brand) SyncDirty() bool { return b.SyncFlag != nil }

// SetSyncDirty sets or clears the sync flag in memory.
func (b *Brand) SetSyncDirty(dirty bool) {
	if !dirty {
		b.SyncFlag = nil
		return
	}
	f := SyncFlagDirty
	b.SyncFlag = &f
}
