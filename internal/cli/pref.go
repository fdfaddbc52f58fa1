package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
)

type prefResult struct {
	Name     string `json:"name"`
	Set      bool   `json:"set"`
	Boolean  *bool  `json:"boolean,omitempty"`
	EntityID *int64 `json:"entity_id,omitempty"`
}

func (r prefResult) renderText(w io.Writer) {
	switch {
	case !r.Set:
		fmt.Fprintf(w, "%s: (not set)\n", r.Name)
	case r.Boolean != nil:
		fmt.Fprintf(w, "%s: %t\n", r.Name, *r.Boolean)
	case r.EntityID != nil:
		fmt.Fprintf(w, "%s: entity %d\n", r.Name, *r.EntityID)
	}
}

type defaultEntityResult struct {
	Entity *model.Entity `json:"entity"`
}

func (r defaultEntityResult) renderText(w io.Writer) {
	if r.Entity == nil {
		fmt.Fprintln(w, "No default entity.")
		return
	}
	fmt.Fprint(w, "Default entity: ")
	writeEntity(w, *r.Entity)
}

// NewPrefCommand creates the pref command group.
func NewPrefCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pref",
		Short: "Read and write user preferences",
		Long: `Preferences are boolean or entity-valued settings kept in the graph under
the "User preferences" entity.`,
	}

	var getEntity bool
	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				res := prefResult{Name: args[0]}
				if getEntity {
					id, err := s.store.GetPreferenceEntityID(ctx, args[0])
					if err != nil {
						return err
					}
					res.EntityID, res.Set = id, id != nil
				} else {
					v, err := s.store.GetPreferenceBoolean(ctx, args[0])
					if err != nil {
						return err
					}
					res.Boolean, res.Set = v, v != nil
				}
				return s.out.Success(res)
			})
		},
	}
	get.Flags().BoolVar(&getEntity, "entity", false, "read an entity-valued preference")
	cmd.AddCommand(get)

	var setEntity bool
	set := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Set a preference",
		Long: `Set a boolean preference, or with --entity an entity-valued one.

Examples:
  om pref set "show archived" true
  om pref set "first display entity" Home --entity`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var b bool
			if !setEntity {
				var err error
				if b, err = strconv.ParseBool(args[1]); err != nil {
					return WrapExitError(ExitCommandError, "value must be true or false", err)
				}
			}
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				res := prefResult{Name: args[0], Set: true}
				if setEntity {
					id, err := s.resolveEntity(ctx, args[1])
					if err != nil {
						return err
					}
					if err := s.store.SetPreferenceEntityID(ctx, store.Standalone(), args[0], id); err != nil {
						return err
					}
					res.EntityID = &id
				} else {
					if err := s.store.SetPreferenceBoolean(ctx, store.Standalone(), args[0], b); err != nil {
						return err
					}
					res.Boolean = &b
				}
				return s.out.Success(res)
			})
		},
	}
	set.Flags().BoolVar(&setEntity, "entity", false, "value is an entity id or name")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "default [entity]",
		Short: "Show or set the entity to display first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				if len(args) == 1 {
					id, err := s.resolveEntity(ctx, args[0])
					if err != nil {
						return err
					}
					if err := s.store.SetPreferenceEntityID(ctx, store.Standalone(), store.PrefFirstDisplayEntity, id); err != nil {
						return err
					}
				}
				e, err := s.store.DefaultEntity(ctx)
				if err != nil {
					return err
				}
				return s.out.Success(defaultEntityResult{Entity: e})
			})
		},
	})

	return cmd
}
