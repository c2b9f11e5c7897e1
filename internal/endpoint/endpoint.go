package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/webstorage/internal/cursor"
	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/querysql"
	"github.com/roach88/webstorage/internal/store"
	"github.com/roach88/webstorage/internal/transport"
)

// DefaultBatchSize is the size of a first batch when the request leaves it
// unset.
const DefaultBatchSize = cursor.DefaultBatchSize

// TokenGenerator produces server tokens.
// Implemented by UUIDGenerator (production) and testutil.SequentialTokens
// (tests).
type TokenGenerator interface {
	Generate() uuid.UUID
}

// UUIDGenerator generates random (version 4) server tokens.
type UUIDGenerator struct{}

// Generate implements TokenGenerator.
func (UUIDGenerator) Generate() uuid.UUID { return uuid.New() }

// Endpoint serves the statement protocol over a record store.
//
// It implements transport.Transport, so a client can talk to it in
// process or through the HTTP binding.
type Endpoint struct {
	token      uuid.UUID
	store      *store.Store
	registry   *descriptor.Registry
	categories *CategoryManager
	statements *StatementManager
	cursors    *CursorManager
	logger     *slog.Logger

	tokens        TokenGenerator
	clock         Clock
	cursorTimeout time.Duration
	sweepInterval time.Duration
	batchSize     int
}

var _ transport.Transport = (*Endpoint)(nil)

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the logger.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

// WithTokenGenerator sets the source of the server token.
// Default: UUIDGenerator
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Endpoint) {
		e.tokens = g
	}
}

// WithClock sets the clock used for cursor expiry.
func WithClock(c Clock) Option {
	return func(e *Endpoint) {
		e.clock = c
	}
}

// WithCursorTimeout sets how long an idle cursor is kept.
// Default: 3m (DefaultCursorTimeout)
func WithCursorTimeout(d time.Duration) Option {
	return func(e *Endpoint) {
		e.cursorTimeout = d
	}
}

// WithSweepInterval sets how often RunSweeper expires idle cursors.
// Default: 3m (DefaultSweepInterval)
func WithSweepInterval(d time.Duration) Option {
	return func(e *Endpoint) {
		e.sweepInterval = d
	}
}

// WithBatchSize sets the first-batch size used when a request has none.
// Default: 100 (DefaultBatchSize)
func WithBatchSize(n int) Option {
	return func(e *Endpoint) {
		e.batchSize = n
	}
}

// New creates an endpoint serving records from st and preparing only
// descriptors trusted by registry.
func New(st *store.Store, registry *descriptor.Registry, opts ...Option) *Endpoint {
	e := &Endpoint{
		store:         st,
		registry:      registry,
		logger:        slog.Default(),
		tokens:        UUIDGenerator{},
		clock:         systemClock{},
		cursorTimeout: DefaultCursorTimeout,
		sweepInterval: DefaultSweepInterval,
		batchSize:     DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.token = e.tokens.Generate()
	e.categories = NewCategoryManager(e.token)
	e.statements = NewStatementManager(e.token)
	e.cursors = NewCursorManager(e.cursorTimeout, e.clock, e.logger)
	e.logger.Info("endpoint started", "server_token", e.token.String())
	return e
}

// ServerToken returns the token identifying this endpoint incarnation.
func (e *Endpoint) ServerToken() uuid.UUID {
	return e.token
}

// Cursors returns the cursor manager.
func (e *Endpoint) Cursors() *CursorManager {
	return e.cursors
}

// Statements returns the statement manager.
func (e *Endpoint) Statements() *StatementManager {
	return e.statements
}

// RunSweeper expires idle cursors until ctx is cancelled.
func (e *Endpoint) RunSweeper(ctx context.Context) error {
	return e.cursors.RunSweeper(ctx, e.sweepInterval)
}

// RegisterCategory implements transport.Transport.
func (e *Endpoint) RegisterCategory(_ context.Context, req transport.CategoryRequest) (transport.CategoryResponse, error) {
	if req.Category.Name == "" {
		return transport.CategoryResponse{}, fmt.Errorf("register category: empty category name")
	}
	id, err := e.categories.Register(req.Category)
	if err != nil {
		return transport.CategoryResponse{}, fmt.Errorf("register category: %w", err)
	}
	e.logger.Debug("category registered", "category", req.Category.String(), "category_id", id.String())
	return transport.CategoryResponse{CategoryID: id}, nil
}

// PrepareStatement implements transport.Transport.
//
// The category id must resolve under this endpoint's token and name the
// descriptor's category, otherwise the answer is CATEGORY_OUT_OF_SYNC and
// the client re-registers. Trust is checked before the text is parsed.
func (e *Endpoint) PrepareStatement(_ context.Context, req transport.PrepareRequest) (transport.PrepareResponse, error) {
	desc := req.Descriptor
	cat, ok := e.categories.Lookup(req.CategoryID)
	if !ok || cat != desc.Category {
		e.logger.Debug("category out of sync", "category_id", req.CategoryID.String(), "descriptor", desc.Text)
		return transport.PrepareResponse{
			Code:    ir.CategoryOutOfSync,
			Message: fmt.Sprintf("category %s is not registered under id %s", desc.Category, req.CategoryID),
		}, nil
	}

	stmt, err := e.registry.CheckAndParse(desc)
	switch {
	case descriptor.IsIllegalDescriptor(err):
		return transport.PrepareResponse{Code: ir.IllegalStatement, Message: err.Error()}, nil
	case descriptor.IsParseError(err):
		e.logger.Warn("trusted descriptor failed to parse", "descriptor", desc.Text, "error", err)
		return transport.PrepareResponse{Code: ir.DescriptorParseFailed, Message: err.Error()}, nil
	case err != nil:
		return transport.PrepareResponse{}, fmt.Errorf("prepare statement: %w", err)
	}

	p, err := e.statements.Add(stmt, req.CategoryID)
	if err != nil {
		return transport.PrepareResponse{}, fmt.Errorf("prepare statement: %w", err)
	}
	e.logger.Debug("statement prepared", "statement_id", p.ID.String(), "descriptor", desc.Text)
	return transport.PrepareResponse{
		Code:             ir.PrepareSuccess,
		StatementID:      p.ID,
		NumFreeVariables: stmt.NumFreeVariables(),
	}, nil
}

// Execute implements transport.Transport for write statements.
func (e *Endpoint) Execute(ctx context.Context, req transport.ExecuteRequest) (transport.WriteResponse, error) {
	p, ok := e.statements.Lookup(req.StatementID)
	if !ok {
		return transport.WriteResponse{Code: ir.PrepStmtBadStoken, Message: e.badToken(req.StatementID)}, nil
	}
	stmt := p.Statement
	if stmt.Verb.IsQuery() {
		return transport.WriteResponse{
			Code:    ir.WriteGenericFailure,
			Message: fmt.Sprintf("%s is not a write statement", stmt.Verb),
		}, nil
	}

	bound, err := stmt.Bind(req.Params)
	if err != nil {
		return transport.WriteResponse{Code: ir.IllegalPatch, Message: err.Error()}, nil
	}

	affected, err := e.write(ctx, bound)
	if err != nil {
		e.logger.Error("write failed",
			"statement_id", p.ID.String(),
			"descriptor", stmt.Descriptor.Text,
			"error", err,
		)
		return transport.WriteResponse{Code: ir.WriteGenericFailure, Message: err.Error()}, nil
	}
	return transport.WriteResponse{Code: ir.QuerySuccess, Affected: affected}, nil
}

func (e *Endpoint) write(ctx context.Context, b *descriptor.Bound) (int, error) {
	doc := assignments(b.Set)
	switch b.Verb {
	case descriptor.VerbAdd:
		if _, err := e.store.Add(ctx, b.Category, doc); err != nil {
			return 0, err
		}
		return 1, nil
	case descriptor.VerbReplace:
		return e.store.Replace(ctx, b.Category, b.Where, doc)
	case descriptor.VerbUpdate:
		return e.store.Update(ctx, b.Category, b.Where, doc)
	case descriptor.VerbRemove:
		return e.store.Remove(ctx, b.Category, b.Where)
	default:
		return 0, fmt.Errorf("unsupported write verb %s", b.Verb)
	}
}

func assignments(set []descriptor.Assignment) ir.Object {
	doc := make(ir.Object, len(set))
	for _, a := range set {
		doc[a.Key] = a.Value.Value
	}
	return doc
}

// ExecuteQuery implements transport.Transport for QUERY and QUERY-COUNT.
//
// The first batch is returned directly. If more records remain a cursor is
// stored and its id returned; otherwise the cursor id is cursor.NotStored.
// QUERY-COUNT answers a single {"count": n} record.
func (e *Endpoint) ExecuteQuery(ctx context.Context, req transport.ExecuteRequest) (transport.QueryResponse, error) {
	p, ok := e.statements.Lookup(req.StatementID)
	if !ok {
		return transport.QueryResponse{Code: ir.PrepStmtBadStoken, CursorID: cursor.NotStored, Message: e.badToken(req.StatementID)}, nil
	}
	stmt := p.Statement
	if !stmt.Verb.IsQuery() {
		return queryFailure(fmt.Sprintf("%s is not a query statement", stmt.Verb)), nil
	}

	bound, err := stmt.Bind(req.Params)
	if err != nil {
		return transport.QueryResponse{Code: ir.IllegalPatch, CursorID: cursor.NotStored, Message: err.Error()}, nil
	}

	if bound.Verb == descriptor.VerbQueryCount {
		n, err := e.store.Count(ctx, bound.Category, bound.Where)
		if err != nil {
			e.logQueryError(p, err)
			return queryFailure(err.Error()), nil
		}
		return transport.QueryResponse{
			Code:     ir.QuerySuccess,
			CursorID: cursor.NotStored,
			Records:  []ir.Object{{"count": ir.Int(n)}},
		}, nil
	}

	q := &openQuery{
		statementID: p.ID,
		query:       SelectFor(bound),
		limit:       bound.Limit,
	}
	records, hasMore, err := e.nextBatch(ctx, q, e.batchFor(req.BatchSize))
	if err != nil {
		e.logQueryError(p, err)
		return queryFailure(err.Error()), nil
	}

	id := cursor.NotStored
	if hasMore {
		id = e.cursors.Put(q)
	}
	return transport.QueryResponse{Code: ir.QuerySuccess, CursorID: id, Records: records, HasMore: hasMore}, nil
}

// GetMore implements transport.Transport.
func (e *Endpoint) GetMore(ctx context.Context, req transport.GetMoreRequest) (transport.QueryResponse, error) {
	if _, ok := e.statements.Lookup(req.StatementID); !ok {
		return transport.QueryResponse{Code: ir.PrepStmtBadStoken, CursorID: req.CursorID, Message: e.badToken(req.StatementID)}, nil
	}
	q, ok := e.cursors.Get(req.CursorID)
	if !ok || q.statementID != req.StatementID {
		e.logger.Debug("get-more for unknown cursor", "cursor_id", req.CursorID, "statement_id", req.StatementID.String())
		return transport.QueryResponse{Code: ir.GetMoreNullCursor, CursorID: req.CursorID}, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		// A concurrent get-more consumed the last batch.
		return transport.QueryResponse{Code: ir.GetMoreNullCursor, CursorID: req.CursorID}, nil
	}

	records, hasMore, err := e.nextBatch(ctx, q, e.batchFor(req.BatchSize))
	if err != nil {
		q.done = true
		e.cursors.Remove(req.CursorID)
		e.logger.Error("get-more failed", "cursor_id", req.CursorID, "error", err)
		resp := queryFailure(err.Error())
		resp.CursorID = req.CursorID
		return resp, nil
	}
	if !hasMore {
		q.done = true
		e.cursors.Remove(req.CursorID)
	}
	return transport.QueryResponse{Code: ir.QuerySuccess, CursorID: req.CursorID, Records: records, HasMore: hasMore}, nil
}

// nextBatch reads up to size records after q.offset, honouring the
// statement's own limit, and advances q. One extra record is read to learn
// whether more remain. The caller holds q.mu once q is shared.
func (e *Endpoint) nextBatch(ctx context.Context, q *openQuery, size int) ([]ir.Object, bool, error) {
	take := size
	if q.limit > 0 {
		remaining := q.limit - q.offset
		if remaining <= 0 {
			return []ir.Object{}, false, nil
		}
		take = min(take, remaining)
	}

	sel := q.query
	sel.Offset = q.offset
	sel.Limit = take + 1
	docs, err := e.store.Query(ctx, sel)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(docs) > take
	if hasMore {
		docs = docs[:take]
	}
	q.offset += len(docs)
	if q.limit > 0 && q.offset >= q.limit {
		hasMore = false
	}

	records := make([]ir.Object, len(docs))
	for i, d := range docs {
		records[i] = d.Doc
	}
	return records, hasMore, nil
}

func (e *Endpoint) batchFor(requested int) int {
	if requested > 0 {
		return requested
	}
	if e.batchSize > 0 {
		return e.batchSize
	}
	return DefaultBatchSize
}

func (e *Endpoint) badToken(id ir.SharedStateID) string {
	e.logger.Debug("statement id not issued by this endpoint",
		"statement_id", id.String(),
		"server_token", e.token.String(),
	)
	return fmt.Sprintf("statement %s was not prepared by endpoint %s", id, e.token)
}

func (e *Endpoint) logQueryError(p *Prepared, err error) {
	e.logger.Error("query failed",
		"statement_id", p.ID.String(),
		"descriptor", p.Statement.Descriptor.Text,
		"error", err,
	)
}

func queryFailure(msg string) transport.QueryResponse {
	return transport.QueryResponse{Code: ir.QueryFailure, CursorID: cursor.NotStored, Message: msg}
}

// SelectFor converts a bound query into the store's read, without limit
// or offset.
func SelectFor(b *descriptor.Bound) querysql.Select {
	sel := querysql.Select{Category: b.Category, Where: b.Where}
	for _, k := range b.Sort {
		sel.Sort = append(sel.Sort, querysql.Order{Key: k.Key, Descending: k.Descending})
	}
	return sel
}
