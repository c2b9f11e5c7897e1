package stmtcache

import (
	"time"

	"github.com/roach88/webstorage/internal/ir"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// ExpirableView is a read-only Lookup that misses on every call once its
// deadline has passed, whatever the delegate still holds.
//
// The view holds no mutable state; IsExpired is a pure function of
// clock.Now() and the deadline. A nil delegate is legal and always misses.
type ExpirableView struct {
	delegate  Lookup
	expiresAt time.Time
	clock     Clock
}

// NewExpirableView wraps delegate until expiresAt. A nil clock means
// SystemClock.
func NewExpirableView(delegate Lookup, expiresAt time.Time, clock Clock) *ExpirableView {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ExpirableView{delegate: delegate, expiresAt: expiresAt, clock: clock}
}

// IsExpired reports whether now is after the deadline.
func (v *ExpirableView) IsExpired() bool {
	return v.clock.Now().After(v.expiresAt)
}

// ExpiresAt returns the deadline.
func (v *ExpirableView) ExpiresAt() time.Time {
	return v.expiresAt
}

// Get implements Lookup.
func (v *ExpirableView) Get(desc ir.StatementDescriptor) (Holder, bool) {
	if v.delegate == nil || v.IsExpired() {
		return Holder{}, false
	}
	return v.delegate.Get(desc)
}

// GetByID implements Lookup.
func (v *ExpirableView) GetByID(id ir.SharedStateID) (ir.StatementDescriptor, bool) {
	if v.delegate == nil || v.IsExpired() {
		return ir.StatementDescriptor{}, false
	}
	return v.delegate.GetByID(id)
}
