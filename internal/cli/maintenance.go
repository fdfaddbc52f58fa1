package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/onemodel/internal/store"
)

type initResult struct {
	Database string        `json:"database"`
	Dialect  store.Dialect `json:"dialect"`
	Base     store.BaseIDs `json:"base"`
	Entities int64         `json:"entities"`
}

func (r initResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s database ready: %s\n", r.Dialect, r.Database)
	fmt.Fprintf(w, "  system entity:      %d\n", r.Base.SystemEntityID)
	fmt.Fprintf(w, "  'has' relation:     %d\n", r.Base.HasRelTypeID)
	fmt.Fprintf(w, "  class group:        %d\n", r.Base.ClassGroupID)
	fmt.Fprintf(w, "  preferences entity: %d\n", r.Base.PreferencesEntityID)
	fmt.Fprintf(w, "  local instance:     %s\n", r.Base.LocalInstanceID)
	fmt.Fprintf(w, "  entities:           %d\n", r.Entities)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the database",
		Long: `Create the schema and base data if missing, or migrate an older schema.
Running init on a ready database changes nothing.

Examples:
  om init
  om init --db ./notes.db
  ONEMODEL_DB_DRIVER=postgres ONEMODEL_POSTGRES_DSN=postgres://localhost/om om init`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				n, err := s.store.EntityCount(ctx, true)
				if err != nil {
					return err
				}
				return s.out.Success(initResult{
					Database: s.dsn,
					Dialect:  s.store.Dialect(),
					Base:     s.store.Base(),
					Entities: n,
				})
			})
		},
	}
}

// NewRenumberCommand creates the renumber command.
func NewRenumberCommand(rootOpts *RootOptions) *cobra.Command {
	var entity, group string
	cmd := &cobra.Command{
		Use:   "renumber",
		Short: "Spread sorting indices of an entity's attributes or a group's members evenly",
		Long: `Renumber the sorting indices of one scope, keeping its order. Useful when
repeated reordering has used up the gaps between neighbors.

Examples:
  om renumber --entity "Grocery list"
  om renumber --group Team`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (entity == "") == (group == "") {
				return NewExitError(ExitCommandError, "exactly one of --entity or --group is required")
			}
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				if entity != "" {
					id, err := s.resolveEntity(ctx, entity)
					if err != nil {
						return err
					}
					if err := s.store.RenumberAttributeSorting(ctx, store.Standalone(), id); err != nil {
						return err
					}
					return s.out.Success(idResult{Action: "Renumbered attributes of", Kind: "entity", ID: id})
				}
				id, err := s.resolveGroup(ctx, group)
				if err != nil {
					return err
				}
				if err := s.store.RenumberGroupSorting(ctx, store.Standalone(), id); err != nil {
					return err
				}
				return s.out.Success(idResult{Action: "Renumbered members of", Kind: "group", ID: id})
			})
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "", "entity whose attributes to renumber")
	cmd.Flags().StringVar(&group, "group", "", "group whose members to renumber")
	return cmd
}
