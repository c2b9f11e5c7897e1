package cursor

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/roach88/webstorage/internal/ir"
)

// DefaultBatchSize is the number of records requested per get-more call
// unless SetBatchSize says otherwise.
const DefaultBatchSize = 100

// NotStored is the cursor id of a result the endpoint did not keep, because
// the first batch already held every record.
const NotStored int32 = -1

// Page is one get-more reply.
type Page[T any] struct {
	Code    ir.ResponseCode
	Items   []T
	HasMore bool
}

// Fetcher issues get-more calls. A returned error is a transport failure;
// endpoint failures are reported through Page.Code.
type Fetcher[T any] interface {
	GetMore(ctx context.Context, cursorID int32, batchSize int) (Page[T], error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T any] func(ctx context.Context, cursorID int32, batchSize int) (Page[T], error)

// GetMore implements Fetcher.
func (f FetcherFunc[T]) GetMore(ctx context.Context, cursorID int32, batchSize int) (Page[T], error) {
	return f(ctx, cursorID, batchSize)
}

// State is the position of a cursor in its lifecycle.
type State int

const (
	// HasLocalData means the current batch still has unread items.
	HasLocalData State = iota
	// NeedsFetch means the current batch is consumed but the endpoint
	// holds more.
	NeedsFetch
	// Exhausted means every record was returned.
	Exhausted
	// Failed means a get-more call failed. The cursor cannot recover.
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case HasLocalData:
		return "has-local-data"
	case NeedsFetch:
		return "needs-fetch"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Cursor iterates over the records of one query execution.
type Cursor[T any] struct {
	id        int32
	fetcher   Fetcher[T]
	batch     []T
	index     int
	hasMore   bool
	batchSize int
	err       error
	logger    *slog.Logger
}

// Option configures a Cursor.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for get-more diagnostics.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a cursor over first. When hasMore is true, fetcher is called
// with id once first is consumed.
func New[T any](id int32, first []T, hasMore bool, fetcher Fetcher[T], opts ...Option) *Cursor[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cursor[T]{
		id:        id,
		fetcher:   fetcher,
		batch:     first,
		hasMore:   hasMore,
		batchSize: DefaultBatchSize,
		logger:    o.logger,
	}
}

// ID returns the endpoint's cursor id, or NotStored.
func (c *Cursor[T]) ID() int32 {
	return c.id
}

// State returns the current lifecycle state.
func (c *Cursor[T]) State() State {
	switch {
	case c.err != nil:
		return Failed
	case c.index < len(c.batch):
		return HasLocalData
	case c.hasMore:
		return NeedsFetch
	default:
		return Exhausted
	}
}

// HasNext reports whether Next may return another record. It never talks
// to the endpoint: an empty batch with more batches pending answers true.
func (c *Cursor[T]) HasNext() bool {
	s := c.State()
	return s == HasLocalData || s == NeedsFetch
}

// Err returns the failure that moved the cursor to Failed, or nil.
func (c *Cursor[T]) Err() error {
	return c.err
}

// BatchSize returns the size requested by the next get-more call.
func (c *Cursor[T]) BatchSize() int {
	return c.batchSize
}

// SetBatchSize changes the size requested by subsequent get-more calls.
// Batches already fetched are unaffected.
func (c *Cursor[T]) SetBatchSize(n int) error {
	if n <= 0 {
		return &InvalidArgumentError{Message: "Batch size must be > 0"}
	}
	c.batchSize = n
	return nil
}

// Next returns the next record, fetching a new batch when the local one is
// consumed. It returns ErrNoSuchElement once the cursor is exhausted. After
// a failed fetch every call returns the same error.
func (c *Cursor[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		switch c.State() {
		case Failed:
			return zero, c.err
		case HasLocalData:
			item := c.batch[c.index]
			c.index++
			return item, nil
		case Exhausted:
			return zero, ErrNoSuchElement
		case NeedsFetch:
			if err := c.fetch(ctx); err != nil {
				return zero, err
			}
		}
	}
}

func (c *Cursor[T]) fetch(ctx context.Context) error {
	page, err := c.fetcher.GetMore(ctx, c.id, c.batchSize)
	if err != nil {
		c.err = &FetchError{CursorID: c.id, Err: err}
		c.logger.Warn("get-more transport failure", "cursor_id", c.id, "error", err)
		return c.err
	}
	switch page.Code {
	case ir.QuerySuccess:
	case ir.GetMoreNullCursor:
		c.err = &ExpiredError{CursorID: c.id}
	default:
		c.err = &FetchError{CursorID: c.id, Code: page.Code}
	}
	if c.err != nil {
		c.logger.Warn("get-more failed", "cursor_id", c.id, "code", page.Code.String())
		return c.err
	}

	c.logger.Debug("get-more", "cursor_id", c.id, "batch_size", c.batchSize, "items", len(page.Items), "has_more", page.HasMore)
	c.batch = page.Items
	c.index = 0
	c.hasMore = page.HasMore
	return nil
}

// All returns an iterator over the remaining records. Iteration stops at
// the first error, which is yielded with a zero record.
func (c *Cursor[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for c.HasNext() {
			item, err := c.Next(ctx)
			if errors.Is(err, ErrNoSuchElement) {
				return
			}
			if !yield(item, err) || err != nil {
				return
			}
		}
		if c.err != nil {
			var zero T
			yield(zero, c.err)
		}
	}
}

// Collect drains the cursor into a slice.
func Collect[T any](ctx context.Context, c *Cursor[T]) ([]T, error) {
	var out []T
	for item, err := range c.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
