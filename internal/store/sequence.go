package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/onemodel/internal/model"
)

// Sequence names. Relation types draw from the entity sequence because they
// are entities.
const (
	seqEntity = "entity"
	seqClass  = "class"
	seqGroup  = "group"
)

func attributeSequence(form model.FormID) string {
	return "attribute:" + form.String()
}

func allSequences() []string {
	names := []string{seqEntity, seqClass, seqGroup}
	for _, f := range model.Forms {
		names = append(names, attributeSequence(f))
	}
	return names
}

// ensureSequences seeds missing sequences at MinID, so the first id drawn is
// MinID+1.
func ensureSequences(ctx context.Context, r runner) error {
	for _, name := range allSequences() {
		_, err := r.exec(ctx, `
			INSERT INTO id_sequence (name, value) VALUES (?, ?)
			ON CONFLICT (name) DO NOTHING
		`, name, model.MinID)
		if err != nil {
			return fmt.Errorf("seed sequence %s: %w", name, err)
		}
	}
	return nil
}

// nextID draws the next id from a sequence, skipping 0.
func nextID(ctx context.Context, r runner, name string) (int64, error) {
	for {
		var id int64
		err := r.queryRow(ctx, `
			UPDATE id_sequence SET value = value + 1
			WHERE name = ? AND value < ?
			RETURNING value
		`, name, model.MaxID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, newError(CodeAllocationExhausted, "next id", "sequence "+name+" is exhausted or missing")
		}
		if err != nil {
			return 0, fmt.Errorf("next id %s: %w", name, err)
		}
		if id != 0 {
			return id, nil
		}
	}
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func nullInt(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// expectOneRow turns an update or delete that touched no row into NOT_FOUND.
func expectOneRow(res sql.Result, op, what string, ids ...int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return notFound(op, what, ids...)
	}
	return nil
}
