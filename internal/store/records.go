package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/queryir"
	"github.com/roach88/webstorage/internal/querysql"
)

// Document is one stored record.
type Document struct {
	ID     int64
	Doc    ir.Object
	Digest string
}

// row is the scan target for records.
type row struct {
	ID     int64  `db:"id"`
	Doc    string `db:"doc"`
	Digest string `db:"digest"`
}

func (r row) document() (Document, error) {
	doc, err := ir.UnmarshalObject([]byte(r.Doc))
	if err != nil {
		return Document{}, fmt.Errorf("decode record %d: %w", r.ID, err)
	}
	return Document{ID: r.ID, Doc: doc, Digest: r.Digest}, nil
}

// encode returns the canonical form and digest of doc.
func encode(category string, doc ir.Object) (string, string, error) {
	if doc == nil {
		doc = ir.Object{}
	}
	canonical, err := ir.MarshalCanonical(doc)
	if err != nil {
		return "", "", err
	}
	digest, err := ir.RecordDigest(category, doc)
	if err != nil {
		return "", "", err
	}
	return string(canonical), digest, nil
}

// Add inserts doc into category and returns its id.
func (s *Store) Add(ctx context.Context, category string, doc ir.Object) (int64, error) {
	canonical, digest, err := encode(category, doc)
	if err != nil {
		return 0, fmt.Errorf("add: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (category, doc, digest) VALUES (?, ?, ?)`,
		category, canonical, digest)
	if err != nil {
		return 0, fmt.Errorf("add: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add: %w", err)
	}
	s.logger.Debug("record added", "category", category, "record_id", id, "digest", digest)
	return id, nil
}

// Replace overwrites every record of category matching where with doc. If
// nothing matches, doc is inserted. It returns the number of records
// written.
func (s *Store) Replace(ctx context.Context, category string, where queryir.Expression, doc ir.Object) (int, error) {
	canonical, digest, err := encode(category, doc)
	if err != nil {
		return 0, fmt.Errorf("replace: %w", err)
	}

	var affected int
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		clause, params, err := s.compiler.CompileWhere(category, where)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET doc = ?, digest = ? WHERE %s", querysql.Table, clause),
			append([]any{canonical, digest}, params...)...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			affected = int(n)
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (category, doc, digest) VALUES (?, ?, ?)`,
			category, canonical, digest); err != nil {
			return err
		}
		affected = 1
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replace: %w", err)
	}
	return affected, nil
}

// Update sets the fields of patch on every record of category matching
// where, leaving other fields untouched. It returns the number of records
// updated.
func (s *Store) Update(ctx context.Context, category string, where queryir.Expression, patch ir.Object) (int, error) {
	var affected int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.selectTx(ctx, tx, querysql.Select{Category: category, Where: where})
		if err != nil {
			return err
		}
		for _, r := range rows {
			doc, err := r.document()
			if err != nil {
				return err
			}
			for k, v := range patch {
				doc.Doc[k] = v
			}
			canonical, digest, err := encode(category, doc.Doc)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE records SET doc = ?, digest = ? WHERE id = ?`,
				canonical, digest, r.ID); err != nil {
				return err
			}
		}
		affected = len(rows)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	return affected, nil
}

// Remove deletes every record of category matching where and returns the
// number deleted.
func (s *Store) Remove(ctx context.Context, category string, where queryir.Expression) (int, error) {
	clause, params, err := s.compiler.CompileWhere(category, where)
	if err != nil {
		return 0, fmt.Errorf("remove: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s", querysql.Table, clause), params...)
	if err != nil {
		return 0, fmt.Errorf("remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove: %w", err)
	}
	return int(n), nil
}

// Query returns the records selected by q in order.
func (s *Store) Query(ctx context.Context, q querysql.Select) ([]Document, error) {
	sqlText, params, err := s.compiler.CompileSelect(q)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, sqlText, params...); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	docs := make([]Document, len(rows))
	for i, r := range rows {
		if docs[i], err = r.document(); err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
	}
	return docs, nil
}

// Count returns the number of records of category matching where.
func (s *Store) Count(ctx context.Context, category string, where queryir.Expression) (int, error) {
	sqlText, params, err := s.compiler.CompileCount(category, where)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, sqlText, params...); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) selectTx(ctx context.Context, tx *sqlx.Tx, q querysql.Select) ([]row, error) {
	sqlText, params, err := s.compiler.CompileSelect(q)
	if err != nil {
		return nil, err
	}
	var rows []row
	if err := tx.SelectContext(ctx, &rows, sqlText, params...); err != nil {
		return nil, err
	}
	return rows, nil
}

// inTx runs fn in a transaction, committing if it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
