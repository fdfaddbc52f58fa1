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

// entityList is the output of listing commands.
type entityList []model.Entity

func (l entityList) renderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No entities.")
		return
	}
	for _, e := range l {
		writeEntity(w, e)
	}
}

func writeEntity(w io.Writer, e model.Entity) {
	fmt.Fprintf(w, "%d\t%s", e.ID, e.Name)
	if e.ClassID != nil {
		fmt.Fprintf(w, "\t(class %d)", *e.ClassID)
	}
	if e.Archived {
		fmt.Fprint(w, "\t[archived]")
	}
	fmt.Fprintln(w)
}

// entityResult is the output of commands that create or change one entity.
type entityResult struct {
	Action string       `json:"action"`
	Entity model.Entity `json:"entity"`
}

func (r entityResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s entity ", r.Action)
	writeEntity(w, r.Entity)
}

// idResult reports an action on an object that no longer exists or has no
// richer view.
type idResult struct {
	Action string `json:"action"`
	Kind   string `json:"kind"`
	ID     int64  `json:"id"`
}

func (r idResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s %s %d\n", r.Action, r.Kind, r.ID)
}

// NewEntityCommand creates the entity command group.
func NewEntityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Create, list and change entities",
	}
	cmd.AddCommand(newEntityAddCommand(rootOpts))
	cmd.AddCommand(newEntityListCommand(rootOpts))
	cmd.AddCommand(newEntityArchiveCommand(rootOpts, true))
	cmd.AddCommand(newEntityArchiveCommand(rootOpts, false))
	cmd.AddCommand(newEntityDeleteCommand(rootOpts))
	cmd.AddCommand(newEntityRenameCommand(rootOpts))
	return cmd
}

func newEntityAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		class          string
		public         bool
		under          string
		rel            string
		allowDuplicate bool
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an entity",
		Long: `Create an entity, optionally of a class and related from an existing entity.

Examples:
  om entity add "Grocery list"
  om entity add Alice --class person
  om entity add Milk --under "Grocery list" --rel has`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				var classID *int64
				if class != "" {
					id, err := s.resolveClass(ctx, class)
					if err != nil {
						return err
					}
					classID = &id
				}
				var pub *bool
				if cmd.Flags().Changed("public") {
					pub = &public
				}
				if !allowDuplicate {
					if err := s.refuseDuplicateEntityName(ctx, "entity add", args[0], nil); err != nil {
						return err
					}
				}

				var from, relType int64
				if under != "" {
					var err error
					if from, err = s.resolveEntity(ctx, under); err != nil {
						return err
					}
					if relType, err = s.resolveRelType(ctx, rel); err != nil {
						return err
					}
				}

				tx, err := s.store.Begin(ctx)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				in := store.Within(tx)

				var id int64
				if under != "" {
					id, _, err = s.store.CreateEntityAndRelationToLocalEntity(ctx, in, from, relType, args[0], pub, nil, time.Time{}, nil)
					if err == nil && classID != nil {
						err = s.store.UpdateEntityClass(ctx, in, id, classID)
					}
				} else {
					id, err = s.store.CreateEntity(ctx, in, args[0], classID, pub)
				}
				if err != nil {
					return err
				}
				e, err := s.store.In(tx).GetEntity(ctx, id)
				if err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				s.logger.Debug("entity created", "id", id)
				return s.out.Success(entityResult{Action: "Created", Entity: e})
			})
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "class id or name")
	cmd.Flags().BoolVar(&public, "public", false, "mark the entity public (or --public=false for private)")
	cmd.Flags().StringVar(&under, "under", "", "entity id or name to relate the new entity from")
	cmd.Flags().StringVar(&rel, "rel", store.HasRelationTypeName, "relation type id or name used with --under")
	cmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "allow a name another entity already has")
	return cmd
}

// refuseDuplicateEntityName fails with DUPLICATE_NAME when another
// unarchived entity than ignoreID is already called name.
func (s *session) refuseDuplicateEntityName(ctx context.Context, op, name string, ignoreID *int64) error {
	dup, err := s.store.IsDuplicateEntityName(ctx, name, ignoreID, false)
	if err != nil {
		return err
	}
	if dup {
		return &store.Error{
			Code:    store.CodeDuplicateName,
			Op:      op,
			Message: fmt.Sprintf("name %q is already in use (use --allow-duplicate)", name),
		}
	}
	return nil
}

func newEntityListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		class    string
		offset   int
		limit    int
		archived bool
		match    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities by id",
		Long: `List plain entities (not relation types) in id order.

With --match, list entities whose name or a text attribute matches a
case-insensitive regular expression.

Examples:
  om entity list
  om entity list --class person --archived
  om entity list --match "^gro" --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				includeArchived := s.cfg.IncludeArchived
				if cmd.Flags().Changed("archived") {
					includeArchived = archived
				}

				if match != "" {
					entities, err := s.store.MatchingEntities(ctx, match, offset, limit, includeArchived)
					if err != nil {
						return err
					}
					return s.out.Success(entityList(entities))
				}

				q := store.EntityQuery{Offset: offset, Limit: limit, IncludeArchived: includeArchived}
				if class != "" {
					id, err := s.resolveClass(ctx, class)
					if err != nil {
						return err
					}
					q.ClassID = &id
				}
				entities, err := s.store.ListEntities(ctx, q)
				if err != nil {
					return err
				}
				return s.out.Success(entityList(entities))
			})
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "only entities of this class")
	cmd.Flags().IntVar(&offset, "offset", 0, "entities to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entities to list (0 = all)")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived entities (default from config)")
	cmd.Flags().StringVar(&match, "match", "", "case-insensitive pattern on names and text attributes")
	return cmd
}

func newEntityArchiveCommand(rootOpts *RootOptions, archive bool) *cobra.Command {
	use, short, action := "archive <entity>", "Archive an entity", "Archived"
	if !archive {
		use, short, action = "unarchive <entity>", "Restore an archived entity", "Unarchived"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveEntity(ctx, args[0])
				if err != nil {
					return err
				}
				if archive {
					err = s.store.ArchiveEntity(ctx, store.Standalone(), id)
				} else {
					err = s.store.UnarchiveEntity(ctx, store.Standalone(), id)
				}
				if err != nil {
					return err
				}
				e, err := s.store.GetEntity(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(entityResult{Action: action, Entity: e})
			})
		},
	}
}

func newEntityDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity>",
		Short: "Delete an entity with its attributes, relations and memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveEntity(ctx, args[0])
				if err != nil {
					return err
				}
				if err := s.store.DeleteEntity(ctx, store.Standalone(), id); err != nil {
					return err
				}
				return s.out.Success(idResult{Action: "Deleted", Kind: "entity", ID: id})
			})
		},
	}
}

func newEntityRenameCommand(rootOpts *RootOptions) *cobra.Command {
	var allowDuplicate bool
	cmd := &cobra.Command{
		Use:   "rename <entity> <new-name>",
		Short: "Rename an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveEntity(ctx, args[0])
				if err != nil {
					return err
				}
				if !allowDuplicate {
					if err := s.refuseDuplicateEntityName(ctx, "entity rename", args[1], &id); err != nil {
						return err
					}
				}
				if err := s.store.RenameEntity(ctx, store.Standalone(), id, args[1]); err != nil {
					return err
				}
				e, err := s.store.GetEntity(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(entityResult{Action: "Renamed", Entity: e})
			})
		},
	}
	cmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "allow a name another entity already has")
	return cmd
}
