package domain

import (
	"fmt"
	"time"
)

// EntryRecord is one check-in, and once closed its check-out, at a gym.
type EntryRecord struct {
	ID          string
	IdentityID  string
	TenantKey   TenantKey
	EntryTime   time.Time
	ExitTime    *time.Time
	DurationMin *int
}

// Open reports whether the record still counts towards occupancy.
func (e *EntryRecord) Open() bool {
	return e.ExitTime == nil
}

// Close stamps the exit time and the whole-minute stay duration.
func (e *EntryRecord) Close(exitTime time.Time) error {
	if !e.Open() {
		return fmt.Errorf("%w: entry %s already closed at %s", ErrInvalidState, e.ID, e.ExitTime.Format(time.RFC3339))
	}
	exitTime = exitTime.UTC()
	if exitTime.Before(e.EntryTime) {
		return fmt.Errorf("%w: exit_time precedes entry_time", ErrValidation)
	}
	minutes := int(exitTime.Sub(e.EntryTime) / time.Minute)
	e.ExitTime = &exitTime
	e.DurationMin = &minutes
	return nil
}

// EntryFilter narrows ledger listings. An empty IdentityID lists the whole tenant.
type EntryFilter struct {
	IdentityID string
	OpenOnly   bool
}
