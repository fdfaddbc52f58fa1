package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/onemodel/internal/model"
)

// JournalEntries lists entity additions and archivals dated within
// [from, to], oldest first. A limit of 0 means no limit.
func (s *Store) JournalEntries(ctx context.Context, from, to time.Time, limit int) ([]model.JournalEntry, error) {
	if to.Before(from) {
		return nil, newError(CodeInvalidInput, "journal", fmt.Sprintf("range end %s is before start %s", to, from))
	}
	query := `
		SELECT insertion_date AS d, 'Added: ' || name AS t, id FROM Entity
		WHERE insertion_date BETWEEN ? AND ?
		UNION ALL
		SELECT archived_date AS d, 'Archived: ' || name AS t, id FROM Entity
		WHERE archived AND archived_date BETWEEN ? AND ?
		ORDER BY 1 ASC, 3 ASC, 2 ASC` + s.dialect.page(0, limit)
	lo, hi := millis(from), millis(to)
	rows, err := s.reader().query(ctx, query, lo, hi, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	defer rows.Close()

	entries := make([]model.JournalEntry, 0)
	for rows.Next() {
		var (
			e    model.JournalEntry
			date int64
		)
		if err := rows.Scan(&date, &e.Text, &e.EntityID); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Date = fromMillis(date)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate: %w", err)
	}
	return entries, nil
}
