package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/webstorage/internal/cursor"
	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/queryir"
	"github.com/roach88/webstorage/internal/stmtcache"
	"github.com/roach88/webstorage/internal/transport"
)

// PreparedStatement is a prepared descriptor with its parameter slots.
// Every slot must be set before the statement is executed.
//
// A PreparedStatement is not safe for concurrent use.
type PreparedStatement struct {
	client *Client
	desc   ir.StatementDescriptor
	holder stmtcache.Holder
	params []queryir.LiteralExpression
	set    []bool
}

func newPreparedStatement(c *Client, desc ir.StatementDescriptor, holder stmtcache.Holder) *PreparedStatement {
	return &PreparedStatement{
		client: c,
		desc:   desc,
		holder: holder,
		params: make([]queryir.LiteralExpression, holder.NumFreeVariables),
		set:    make([]bool, holder.NumFreeVariables),
	}
}

// Descriptor returns the statement's descriptor.
func (ps *PreparedStatement) Descriptor() ir.StatementDescriptor {
	return ps.desc
}

// ID returns the endpoint's id for the statement.
func (ps *PreparedStatement) ID() ir.SharedStateID {
	return ps.holder.StatementID
}

// NumFreeVariables returns the number of parameter slots.
func (ps *PreparedStatement) NumFreeVariables() int {
	return ps.holder.NumFreeVariables
}

// SetString binds a ?s parameter.
func (ps *PreparedStatement) SetString(index int, v string) error {
	return ps.bind(index, queryir.StringLiteral(v))
}

// SetInt binds a ?i parameter.
func (ps *PreparedStatement) SetInt(index int, v int32) error {
	return ps.bind(index, queryir.IntLiteral(v))
}

// SetLong binds a ?l parameter.
func (ps *PreparedStatement) SetLong(index int, v int64) error {
	return ps.bind(index, queryir.LongLiteral(v))
}

// SetBoolean binds a ?b parameter.
func (ps *PreparedStatement) SetBoolean(index int, v bool) error {
	return ps.bind(index, queryir.BoolLiteral(v))
}

// SetStringList binds a ?s[ parameter.
func (ps *PreparedStatement) SetStringList(index int, v []string) error {
	return ps.bind(index, queryir.StringListLiteral(v...))
}

// SetParam binds an already built literal.
func (ps *PreparedStatement) SetParam(index int, lit queryir.LiteralExpression) error {
	return ps.bind(index, lit)
}

func (ps *PreparedStatement) bind(index int, lit queryir.LiteralExpression) error {
	if index < 0 || index >= len(ps.params) {
		return &descriptor.ParameterError{
			Index:  index,
			Reason: fmt.Sprintf("index out of range, statement has %d parameters", len(ps.params)),
		}
	}
	ps.params[index] = lit
	ps.set[index] = true
	return nil
}

func (ps *PreparedStatement) boundParams() (transport.Params, error) {
	for i, ok := range ps.set {
		if !ok {
			return nil, &descriptor.ParameterError{Index: i, Reason: "parameter not set"}
		}
	}
	return transport.Params(ps.params), nil
}

// Execute runs a write statement and returns the endpoint's response code.
// A non-success code is also returned as a *WriteError.
func (ps *PreparedStatement) Execute(ctx context.Context) (ir.ResponseCode, error) {
	params, err := ps.boundParams()
	if err != nil {
		return 0, err
	}

	resp, err := ps.client.transport.Execute(ctx, ps.request(params))
	if err != nil {
		return 0, fmt.Errorf("execute %q: %w", ps.desc.Text, err)
	}
	if resp.Code == ir.PrepStmtBadStoken {
		if err := ps.reprepare(ctx); err != nil {
			return 0, err
		}
		if resp, err = ps.client.transport.Execute(ctx, ps.request(params)); err != nil {
			return 0, fmt.Errorf("execute %q: %w", ps.desc.Text, err)
		}
	}

	if resp.Code != ir.QuerySuccess {
		return resp.Code, &WriteError{Descriptor: ps.desc.Text, Code: resp.Code, Message: resp.Message}
	}
	return resp.Code, nil
}

// ExecuteQuery runs a query and returns a cursor over its records.
func (ps *PreparedStatement) ExecuteQuery(ctx context.Context) (*cursor.Cursor[ir.Object], error) {
	return query(ctx, ps, func(o ir.Object) (ir.Object, error) { return o, nil })
}

// QueryAs runs a query and decodes each record into a T through its JSON
// form.
func QueryAs[T any](ctx context.Context, ps *PreparedStatement) (*cursor.Cursor[T], error) {
	return query(ctx, ps, decodeRecord[T])
}

func decodeRecord[T any](o ir.Object) (T, error) {
	var out T
	data, err := o.MarshalJSON()
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode record into %T: %w", out, err)
	}
	return out, nil
}

func query[T any](ctx context.Context, ps *PreparedStatement, decode func(ir.Object) (T, error)) (*cursor.Cursor[T], error) {
	params, err := ps.boundParams()
	if err != nil {
		return nil, err
	}

	req := ps.request(params)
	req.BatchSize = ps.client.batchSize
	resp, err := ps.client.transport.ExecuteQuery(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", ps.desc.Text, err)
	}
	if resp.Code == ir.PrepStmtBadStoken {
		if err := ps.reprepare(ctx); err != nil {
			return nil, err
		}
		req.StatementID = ps.holder.StatementID
		if resp, err = ps.client.transport.ExecuteQuery(ctx, req); err != nil {
			return nil, fmt.Errorf("query %q: %w", ps.desc.Text, err)
		}
	}
	if resp.Code != ir.QuerySuccess {
		return nil, &QueryError{Descriptor: ps.desc.Text, Code: resp.Code, Message: resp.Message}
	}

	first, err := decodeAll(resp.Records, decode)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", ps.desc.Text, err)
	}

	tr := ps.client.transport
	stmtID := ps.holder.StatementID
	fetch := cursor.FetcherFunc[T](func(ctx context.Context, cursorID int32, batchSize int) (cursor.Page[T], error) {
		more, err := tr.GetMore(ctx, transport.GetMoreRequest{StatementID: stmtID, CursorID: cursorID, BatchSize: batchSize})
		if err != nil {
			return cursor.Page[T]{}, err
		}
		items, err := decodeAll(more.Records, decode)
		if err != nil {
			return cursor.Page[T]{}, err
		}
		return cursor.Page[T]{Code: more.Code, Items: items, HasMore: more.HasMore}, nil
	})
	return cursor.New(resp.CursorID, first, resp.HasMore, cursor.Fetcher[T](fetch), cursor.WithLogger(ps.client.logger)), nil
}

func decodeAll[T any](records []ir.Object, decode func(ir.Object) (T, error)) ([]T, error) {
	out := make([]T, len(records))
	for i, r := range records {
		v, err := decode(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (ps *PreparedStatement) request(params transport.Params) transport.ExecuteRequest {
	return transport.ExecuteRequest{StatementID: ps.holder.StatementID, Params: params}
}

// reprepare swaps the handle for one issued by the current incarnation.
// The parameter count must not change.
func (ps *PreparedStatement) reprepare(ctx context.Context) error {
	h, err := ps.client.reprepare(ctx, ps.desc, ps.holder)
	if err != nil {
		return err
	}
	if h.NumFreeVariables != ps.holder.NumFreeVariables {
		return &PrepareError{
			Descriptor: ps.desc.Text,
			Code:       ir.DescriptorParseFailed,
			Message:    fmt.Sprintf("endpoint now reports %d parameters, expected %d", h.NumFreeVariables, ps.holder.NumFreeVariables),
		}
	}
	ps.holder = h
	return nil
}
