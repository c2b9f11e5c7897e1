package endpoint

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/roach88/webstorage/internal/cursor"
	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/querysql"
)

const (
	// DefaultCursorTimeout is how long an idle cursor is kept.
	DefaultCursorTimeout = 3 * time.Minute

	// DefaultSweepInterval is how often idle cursors are expired.
	DefaultSweepInterval = 3 * time.Minute
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// openQuery is the paging state of a query with more batches.
//
// mu guards offset and done across concurrent get-more calls for the
// same cursor id.
type openQuery struct {
	statementID ir.SharedStateID
	query       querysql.Select
	// limit is the statement's own LIMIT, 0 for none.
	limit int

	mu sync.Mutex
	// offset is the number of records already returned.
	offset int
	// done is set once the last batch was handed out or a read failed.
	done bool
}

type cursorHolder struct {
	query       *openQuery
	lastUpdated time.Time
}

func (h *cursorHolder) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(h.lastUpdated) > timeout
}

// CursorManager tracks open query results between get-more calls.
//
// Cursor ids count up from 0 and roll over to 0 before reaching
// math.MaxInt32, skipping ids still in use. Every Get refreshes the
// cursor's timestamp; Expire drops cursors idle for longer than the
// timeout.
//
// Thread-safety: All methods are safe for concurrent use.
type CursorManager struct {
	mu      sync.Mutex
	cursors map[int32]*cursorHolder
	nextID  int32
	timeout time.Duration
	clock   Clock
	logger  *slog.Logger
}

// NewCursorManager creates an empty manager.
func NewCursorManager(timeout time.Duration, clock Clock, logger *slog.Logger) *CursorManager {
	return newCursorManagerAt(0, timeout, clock, logger)
}

func newCursorManagerAt(start int32, timeout time.Duration, clock Clock, logger *slog.Logger) *CursorManager {
	if timeout <= 0 {
		timeout = DefaultCursorTimeout
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CursorManager{
		cursors: make(map[int32]*cursorHolder),
		nextID:  start,
		timeout: timeout,
		clock:   clock,
		logger:  logger,
	}
}

// Put stores q and returns its cursor id. A nil q has nothing left to
// page through and is not stored: Put returns cursor.NotStored.
func (m *CursorManager) Put(q *openQuery) int32 {
	if q == nil {
		return cursor.NotStored
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		id := m.nextID
		if m.nextID == math.MaxInt32-1 {
			m.nextID = 0
		} else {
			m.nextID++
		}
		if _, taken := m.cursors[id]; !taken {
			m.cursors[id] = &cursorHolder{query: q, lastUpdated: m.clock.Now()}
			return id
		}
	}
}

// Get returns the query stored under id and refreshes its timestamp.
func (m *CursorManager) Get(id int32) (*openQuery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.cursors[id]
	if !ok {
		return nil, false
	}
	h.lastUpdated = m.clock.Now()
	return h.query, true
}

// Remove forgets the cursor with id.
func (m *CursorManager) Remove(id int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cursors, id)
}

// Len returns the number of open cursors.
func (m *CursorManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cursors)
}

// Expire removes every cursor idle for longer than the timeout and
// returns how many were removed.
func (m *CursorManager) Expire() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for id, h := range m.cursors {
		if h.expired(now, m.timeout) {
			delete(m.cursors, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("expired idle cursors", "count", removed, "open", len(m.cursors))
	}
	return removed
}

// RunSweeper expires idle cursors every interval until ctx is cancelled.
// The first sweep runs immediately.
func (m *CursorManager) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("cursor sweeper starting", "interval", interval.String(), "cursor_timeout", m.timeout.String())
	for {
		m.Expire()
		select {
		case <-ctx.Done():
			m.logger.Info("cursor sweeper stopping: context cancelled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
