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

type groupSummary struct {
	model.Group
	Size int64 `json:"size"`
}

type groupList []groupSummary

func (l groupList) renderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No groups.")
		return
	}
	for _, g := range l {
		mixed := ""
		if g.AllowMixedClasses {
			mixed = "\t(mixed classes)"
		}
		fmt.Fprintf(w, "%d\t%s\t%d member(s)%s\n", g.ID, g.Name, g.Size, mixed)
	}
}

type groupEntries struct {
	Group   model.Group         `json:"group"`
	Members []store.GroupMember `json:"members"`
}

func (g groupEntries) renderText(w io.Writer) {
	fmt.Fprintf(w, "Group %d: %s\n", g.Group.ID, g.Group.Name)
	if len(g.Members) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for _, m := range g.Members {
		fmt.Fprint(w, "  ")
		writeEntity(w, m.Entity)
	}
}

type groupResult struct {
	Action string      `json:"action"`
	Group  model.Group `json:"group"`
}

func (r groupResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s group %d\t%s\n", r.Action, r.Group.ID, r.Group.Name)
}

type membershipResult struct {
	Action   string `json:"action"`
	GroupID  int64  `json:"group_id"`
	EntityID int64  `json:"entity_id"`
}

func (r membershipResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s entity %d in group %d\n", r.Action, r.EntityID, r.GroupID)
}

// NewGroupCommand creates the group command group.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups and their members",
	}
	cmd.AddCommand(newGroupAddCommand(rootOpts))
	cmd.AddCommand(newGroupMemberCommand(rootOpts))
	cmd.AddCommand(newGroupListCommand(rootOpts))
	cmd.AddCommand(newGroupDeleteCommand(rootOpts))
	return cmd
}

func newGroupAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		mixed bool
		from  string
		rel   string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a group",
		Long: `Create a group. Unless --mixed is given, all members must share one class.

Examples:
  om group add Team
  om group add Tags --mixed --from "Grocery list"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				var (
					id  int64
					err error
				)
				if from != "" {
					entityID, err := s.resolveEntity(ctx, from)
					if err != nil {
						return err
					}
					relType, err := s.resolveRelType(ctx, rel)
					if err != nil {
						return err
					}
					id, _, err = s.store.CreateGroupAndRelationToGroup(ctx, store.Standalone(), entityID, relType, args[0], mixed, nil, time.Time{}, nil)
					if err != nil {
						return err
					}
				} else if id, err = s.store.CreateGroup(ctx, store.Standalone(), args[0], mixed); err != nil {
					return err
				}
				g, err := s.store.GetGroup(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(groupResult{Action: "Created", Group: g})
			})
		},
	}
	cmd.Flags().BoolVar(&mixed, "mixed", false, "allow members of different classes")
	cmd.Flags().StringVar(&from, "from", "", "entity id or name to relate the group from")
	cmd.Flags().StringVar(&rel, "rel", store.HasRelationTypeName, "relation type used with --from")
	return cmd
}

func newGroupMemberCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		remove bool
		moveTo string
		after  string
	)
	cmd := &cobra.Command{
		Use:   "member <group> <entity>",
		Short: "Add, remove, reorder or move a group member",
		Long: `Add an entity to a group. With --remove, take it out; with --move-to, move
it into another group; with --after, place it right after another member
("" for the top).

Examples:
  om group member Team Alice
  om group member Team Alice --after Bob
  om group member Team Alice --move-to Alumni
  om group member Team Alice --remove`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				groupID, err := s.resolveGroup(ctx, args[0])
				if err != nil {
					return err
				}
				entityID, err := s.resolveEntity(ctx, args[1])
				if err != nil {
					return err
				}

				sc := store.Standalone()
				switch {
				case remove:
					if err := s.store.RemoveEntityFromGroup(ctx, sc, groupID, entityID); err != nil {
						return err
					}
					return s.out.Success(membershipResult{Action: "Removed", GroupID: groupID, EntityID: entityID})
				case moveTo != "":
					toID, err := s.resolveGroup(ctx, moveTo)
					if err != nil {
						return err
					}
					if err := s.store.MoveEntityFromGroupToGroup(ctx, sc, groupID, toID, entityID, nil); err != nil {
						return err
					}
					return s.out.Success(membershipResult{Action: "Moved", GroupID: toID, EntityID: entityID})
				case cmd.Flags().Changed("after"):
					var afterID *int64
					if after != "" {
						id, err := s.resolveEntity(ctx, after)
						if err != nil {
							return err
						}
						afterID = &id
					}
					if err := s.store.MoveGroupEntryAfter(ctx, sc, groupID, entityID, afterID); err != nil {
						return err
					}
					return s.out.Success(membershipResult{Action: "Reordered", GroupID: groupID, EntityID: entityID})
				}
				if err := s.store.AddEntityToGroup(ctx, sc, groupID, entityID, nil); err != nil {
					return err
				}
				return s.out.Success(membershipResult{Action: "Added", GroupID: groupID, EntityID: entityID})
			})
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the entity from the group")
	cmd.Flags().StringVar(&moveTo, "move-to", "", "move the entity into this group")
	cmd.Flags().StringVar(&after, "after", "", "place the entity after this member")
	cmd.MarkFlagsMutuallyExclusive("remove", "move-to", "after")
	return cmd
}

func newGroupListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		offset   int
		limit    int
		archived bool
	)
	cmd := &cobra.Command{
		Use:   "list [group]",
		Short: "List groups, or the members of one group in order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				if len(args) == 0 {
					groups, err := s.store.ListGroups(ctx, offset, limit)
					if err != nil {
						return err
					}
					out := make(groupList, 0, len(groups))
					for _, g := range groups {
						n, err := s.store.GroupSize(ctx, g.ID, model.AllMembers)
						if err != nil {
							return err
						}
						out = append(out, groupSummary{Group: g, Size: n})
					}
					return s.out.Success(out)
				}

				groupID, err := s.resolveGroup(ctx, args[0])
				if err != nil {
					return err
				}
				g, err := s.store.GetGroup(ctx, groupID)
				if err != nil {
					return err
				}
				includeArchived := s.cfg.IncludeArchived
				if cmd.Flags().Changed("archived") {
					includeArchived = archived
				}
				members, err := s.store.GroupEntries(ctx, groupID, offset, limit, includeArchived)
				if err != nil {
					return err
				}
				return s.out.Success(groupEntries{Group: g, Members: members})
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived members (default from config)")
	return cmd
}

func newGroupDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var withEntries bool
	cmd := &cobra.Command{
		Use:   "delete <group>",
		Short: "Delete a group and the relations to it",
		Long: `Delete a group and every relation to it. With --with-entries, also
delete the member entities themselves.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveGroup(ctx, args[0])
				if err != nil {
					return err
				}
				if withEntries {
					err = s.store.DeleteGroupRelationsToItAndItsEntries(ctx, store.Standalone(), id)
				} else {
					err = s.store.DeleteGroupAndRelationsToIt(ctx, store.Standalone(), id)
				}
				if err != nil {
					return err
				}
				return s.out.Success(idResult{Action: "Deleted", Kind: "group", ID: id})
			})
		},
	}
	cmd.Flags().BoolVar(&withEntries, "with-entries", false, "also delete the member entities")
	return cmd
}
