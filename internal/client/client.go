package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/stmtcache"
	"github.com/roach88/webstorage/internal/transport"
)

// DefaultCacheTTL is how long handles of a previous endpoint incarnation
// stay resolvable after the client notices the restart.
const DefaultCacheTTL = 10 * time.Minute

// Client prepares and executes statements through a Transport.
//
// Thread-safety: Client methods are safe for concurrent use. The
// PreparedStatement and cursor values it returns are single-owner.
type Client struct {
	transport transport.Transport
	cache     *stmtcache.Cache
	logger    *slog.Logger
	clock     stmtcache.Clock
	ttl       time.Duration
	batchSize int

	mu          sync.Mutex
	serverToken uuid.UUID
	categories  map[ir.Category]ir.SharedStateID
	stale       *stmtcache.ExpirableView
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used for the stale-handle view.
// Default: stmtcache.SystemClock
func WithClock(clock stmtcache.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithCacheTTL sets how long handles of a previous endpoint incarnation
// stay resolvable.
// Default: 10m (DefaultCacheTTL)
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithBatchSize sets the first-batch size requested for queries.
// Default: 0, the endpoint's default.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		c.batchSize = n
	}
}

// New creates a client talking to tr.
func New(tr transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport:  tr,
		cache:      stmtcache.New(),
		logger:     slog.Default(),
		clock:      stmtcache.SystemClock{},
		ttl:        DefaultCacheTTL,
		categories: make(map[ir.Category]ir.SharedStateID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServerToken returns the token of the endpoint incarnation the client
// currently talks to, or uuid.Nil before the first call.
func (c *Client) ServerToken() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverToken
}

// Cache returns the live prepared-statement cache.
func (c *Client) Cache() *stmtcache.Cache {
	return c.cache
}

// Prepare returns a statement handle for desc, preparing it on the
// endpoint unless a handle from the current incarnation is cached.
//
// Errors:
//   - *descriptor.IllegalDescriptorError if the endpoint does not trust desc
//   - *descriptor.ParseError if the endpoint cannot parse desc
//   - *PrepareError for any other refusal
func (c *Client) Prepare(ctx context.Context, desc ir.StatementDescriptor) (*PreparedStatement, error) {
	holder, err := c.prepare(ctx, desc)
	if err != nil {
		return nil, err
	}
	return newPreparedStatement(c, desc, holder), nil
}

func (c *Client) prepare(ctx context.Context, desc ir.StatementDescriptor) (stmtcache.Holder, error) {
	if h, ok := c.cache.Get(desc); ok && h.StatementID.SameIncarnation(c.ServerToken()) {
		return h, nil
	}

	// One retry: the endpoint may have lost the category between the
	// registration and the preparation.
	for attempt := 0; ; attempt++ {
		catID, err := c.categoryID(ctx, desc.Category)
		if err != nil {
			return stmtcache.Holder{}, err
		}
		resp, err := c.transport.PrepareStatement(ctx, transport.PrepareRequest{Descriptor: desc, CategoryID: catID})
		if err != nil {
			return stmtcache.Holder{}, fmt.Errorf("prepare %q: %w", desc.Text, err)
		}

		switch resp.Code {
		case ir.PrepareSuccess:
			c.observeToken(resp.StatementID.ServerToken)
			h := stmtcache.Holder{
				StatementID:      resp.StatementID,
				NumFreeVariables: resp.NumFreeVariables,
				CategoryID:       catID,
			}
			c.cache.Put(desc, h)
			c.logger.Debug("statement prepared", "statement_id", h.StatementID.String(), "descriptor", desc.Text)
			return h, nil

		case ir.CategoryOutOfSync:
			c.forgetCategory(desc.Category)
			if attempt == 0 {
				c.logger.Debug("category out of sync, registering again", "category", desc.Category.String())
				continue
			}

		case ir.IllegalStatement:
			digest, _ := ir.DescriptorDigest(desc)
			c.logger.Warn("endpoint rejected untrusted descriptor", "descriptor", desc.Text, "descriptor_digest", digest)
			return stmtcache.Holder{}, &descriptor.IllegalDescriptorError{Descriptor: desc.Text, Digest: digest}

		case ir.DescriptorParseFailed:
			return stmtcache.Holder{}, &descriptor.ParseError{Descriptor: desc.Text, Offset: -1, Message: resp.Message}
		}
		return stmtcache.Holder{}, &PrepareError{Descriptor: desc.Text, Code: resp.Code, Message: resp.Message}
	}
}

// categoryID returns the endpoint's id for cat, registering it if needed.
func (c *Client) categoryID(ctx context.Context, cat ir.Category) (ir.SharedStateID, error) {
	c.mu.Lock()
	id, ok := c.categories[cat]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	resp, err := c.transport.RegisterCategory(ctx, transport.CategoryRequest{Category: cat})
	if err != nil {
		return ir.SharedStateID{}, fmt.Errorf("register category %s: %w", cat, err)
	}
	c.observeToken(resp.CategoryID.ServerToken)

	c.mu.Lock()
	c.categories[cat] = resp.CategoryID
	c.mu.Unlock()
	return resp.CategoryID, nil
}

func (c *Client) forgetCategory(cat ir.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.categories, cat)
}

// observeToken records the token of a successful reply. A token different
// from the known one means the endpoint restarted.
func (c *Client) observeToken(token uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.serverToken {
	case token:
		return
	case uuid.Nil:
		c.serverToken = token
		return
	}
	c.rotateLocked("server token changed", token)
}

// invalidate retires the current incarnation after the endpoint rejected
// one of its statement ids. Rejections of ids from an already retired
// incarnation are ignored.
func (c *Client) invalidate(rejected ir.SharedStateID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serverToken == uuid.Nil || !rejected.SameIncarnation(c.serverToken) {
		return
	}
	c.rotateLocked("statement id rejected by endpoint", uuid.Nil)
}

// rotateLocked snapshots the cache into the stale view and starts afresh.
// Caller must hold c.mu.
func (c *Client) rotateLocked(reason string, next uuid.UUID) {
	snap := c.cache.Snapshot()
	c.stale = stmtcache.NewExpirableView(snap, c.clock.Now().Add(c.ttl), c.clock)
	c.cache.Clear()
	clear(c.categories)

	c.logger.Info(reason,
		"server_token", c.serverToken.String(),
		"new_server_token", next.String(),
		"stale_statements", snap.Len(),
	)
	c.serverToken = next
}

// DescriptorFor maps a statement id back to its descriptor, through the
// live cache first and then the view of the previous incarnation.
func (c *Client) DescriptorFor(id ir.SharedStateID) (ir.StatementDescriptor, bool) {
	if desc, ok := c.cache.GetByID(id); ok {
		return desc, true
	}
	c.mu.Lock()
	stale := c.stale
	c.mu.Unlock()
	if stale == nil {
		return ir.StatementDescriptor{}, false
	}
	return stale.GetByID(id)
}

// reprepare handles a PREP_STMT_BAD_STOKEN answer for holder: it resolves
// the descriptor the id was issued for, retires the incarnation and
// prepares the descriptor against the current one.
func (c *Client) reprepare(ctx context.Context, fallback ir.StatementDescriptor, holder stmtcache.Holder) (stmtcache.Holder, error) {
	desc, ok := c.DescriptorFor(holder.StatementID)
	if !ok {
		desc = fallback
	}
	c.invalidate(holder.StatementID)
	c.cache.Remove(holder.StatementID)
	c.logger.Debug("re-preparing statement", "statement_id", holder.StatementID.String(), "descriptor", desc.Text)
	return c.prepare(ctx, desc)
}
