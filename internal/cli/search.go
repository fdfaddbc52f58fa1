package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
)

type searchResult struct {
	StartID  int64          `json:"start_id"`
	Text     string         `json:"text"`
	Depth    int            `json:"depth"`
	Entities []model.Entity `json:"entities"`
}

func (r searchResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%d match(es) for %q within %d level(s) of entity %d\n", len(r.Entities), r.Text, r.Depth, r.StartID)
	for _, e := range r.Entities {
		fmt.Fprint(w, "  ")
		writeEntity(w, e)
	}
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		depth    int
		firstHit bool
		archived bool
	)
	cmd := &cobra.Command{
		Use:   "search <start> <text>",
		Short: "Search the graph outward from an entity",
		Long: `Walk relations and related groups outward from <start>, reporting entities
whose name contains <text> (ignoring case) or that have a text attribute
matching <text> as a case-insensitive regular expression.

Examples:
  om search "Grocery list" milk
  om search Home "invoice 20[0-9]{2}" --depth 4
  om search Home passport --any`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				start, err := s.resolveEntity(ctx, args[0])
				if err != nil {
					return err
				}
				q := store.SearchQuery{
					Text:              args[1],
					Depth:             s.cfg.Search.Depth,
					StopAfterAnyFound: firstHit,
					IncludeArchived:   s.cfg.IncludeArchived,
				}
				if cmd.Flags().Changed("depth") {
					q.Depth = depth
				}
				if cmd.Flags().Changed("archived") {
					q.IncludeArchived = archived
				}

				ids, err := s.store.FindContainedLocalEntityIDs(ctx, start, q)
				if err != nil {
					return err
				}
				s.logger.Debug("search finished", "start", start, "depth", q.Depth, "found", len(ids))

				entities := make([]model.Entity, 0, len(ids))
				for _, id := range ids {
					e, err := s.store.GetEntity(ctx, id)
					if err != nil {
						return err
					}
					entities = append(entities, e)
				}
				return s.out.Success(searchResult{StartID: start, Text: q.Text, Depth: q.Depth, Entities: entities})
			})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", model.DefaultSearchDepth, "levels to follow (default from config)")
	cmd.Flags().BoolVar(&firstHit, "any", false, "stop as soon as one match is found")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived entities (default from config)")
	return cmd
}

type journalResult struct {
	From    time.Time            `json:"from"`
	To      time.Time            `json:"to"`
	Entries []model.JournalEntry `json:"entries"`
}

func (r journalResult) renderText(w io.Writer) {
	if len(r.Entries) == 0 {
		fmt.Fprintf(w, "No journal entries between %s and %s.\n", r.From.Format(time.DateTime), r.To.Format(time.DateTime))
		return
	}
	for _, e := range r.Entries {
		fmt.Fprintf(w, "%s\t%s\t(entity %d)\n", e.Date.Local().Format(time.DateTime), e.Text, e.EntityID)
	}
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		from  string
		to    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show entities added and archived in a date range",
		Long: `List entity additions and archivals, oldest first. Dates are YYYY-MM-DD
(local midnight) or RFC 3339. The range defaults to the last 7 days.

Examples:
  om journal
  om journal --from 2024-01-01 --to 2024-02-01 --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			fromT, toT := now.AddDate(0, 0, -7), now
			var err error
			if from != "" {
				if fromT, err = parseDate(from); err != nil {
					return WrapExitError(ExitCommandError, "invalid --from", err)
				}
			}
			if to != "" {
				if toT, err = parseDate(to); err != nil {
					return WrapExitError(ExitCommandError, "invalid --to", err)
				}
			}
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				entries, err := s.store.JournalEntries(ctx, fromT, toT, limit)
				if err != nil {
					return err
				}
				return s.out.Success(journalResult{From: fromT, To: toT, Entries: entries})
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start")
	cmd.Flags().StringVar(&to, "to", "", "range end")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (0 = all)")
	return cmd
}

// parseDate accepts RFC 3339 or a local calendar date.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.Local)
}
