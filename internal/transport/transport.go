// Package transport defines the five calls between a storage client and
// its endpoint, independent of the wire binding that carries them.
//
// Every request and response is a plain JSON-serialisable value. Statement
// parameters travel as encoded literal expressions (see queryir).
// Endpoint outcomes are reported through response codes; a Go error
// returned by a Transport method always means the call itself failed.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/queryir"
)

// Transport is implemented by the HTTP client binding and by the
// in-process endpoint.
type Transport interface {
	RegisterCategory(ctx context.Context, req CategoryRequest) (CategoryResponse, error)
	PrepareStatement(ctx context.Context, req PrepareRequest) (PrepareResponse, error)
	Execute(ctx context.Context, req ExecuteRequest) (WriteResponse, error)
	ExecuteQuery(ctx context.Context, req ExecuteRequest) (QueryResponse, error)
	GetMore(ctx context.Context, req GetMoreRequest) (QueryResponse, error)
}

// CategoryRequest registers a category with the endpoint.
type CategoryRequest struct {
	Category ir.Category `json:"category"`
}

// CategoryResponse carries the endpoint's id for a registered category.
// Registering the same category twice yields the same id.
type CategoryResponse struct {
	CategoryID ir.SharedStateID `json:"category_id"`
}

// PrepareRequest asks the endpoint to prepare a descriptor. CategoryID
// must come from a RegisterCategory call against the same incarnation.
type PrepareRequest struct {
	Descriptor ir.StatementDescriptor `json:"descriptor"`
	CategoryID ir.SharedStateID       `json:"category_id"`
}

// PrepareResponse reports the outcome of a preparation.
type PrepareResponse struct {
	Code             ir.PrepareCode   `json:"code"`
	StatementID      ir.SharedStateID `json:"statement_id"`
	NumFreeVariables int              `json:"num_free_variables"`
	// Message is the endpoint's diagnostic for a failed preparation.
	Message string `json:"message,omitempty"`
}

// ExecuteRequest runs a prepared statement with bound parameters.
type ExecuteRequest struct {
	StatementID ir.SharedStateID `json:"statement_id"`
	Params      Params           `json:"params"`
	// BatchSize caps the first batch of a query. Zero means the endpoint
	// default.
	BatchSize int `json:"batch_size,omitempty"`
}

// WriteResponse reports the outcome of a write statement.
type WriteResponse struct {
	Code     ir.ResponseCode `json:"code"`
	Affected int             `json:"affected"`
	Message  string          `json:"message,omitempty"`
}

// QueryResponse carries one batch of query results. CursorID is
// cursor.NotStored when the batch holds every record.
type QueryResponse struct {
	Code     ir.ResponseCode `json:"code"`
	CursorID int32           `json:"cursor_id"`
	Records  []ir.Object     `json:"records"`
	HasMore  bool            `json:"has_more"`
	Message  string          `json:"message,omitempty"`
}

// GetMoreRequest fetches the next batch of an open cursor.
type GetMoreRequest struct {
	StatementID ir.SharedStateID `json:"statement_id"`
	CursorID    int32            `json:"cursor_id"`
	BatchSize   int              `json:"batch_size"`
}

// Params is a list of bound statement parameters. Each one is encoded as a
// literal expression node.
type Params []queryir.LiteralExpression

// MarshalJSON implements json.Marshaler.
func (p Params) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, len(p))
	for i, lit := range p {
		data, err := queryir.EncodeLiteral(lit)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		raws[i] = data
	}
	return json.Marshal(raws)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Params) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Params, len(raws))
	for i, raw := range raws {
		lit, err := queryir.DecodeLiteral(raw)
		if err != nil {
			return fmt.Errorf("param %d: %w", i, err)
		}
		out[i] = lit
	}
	*p = out
	return nil
}
