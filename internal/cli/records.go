package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/internal/repository"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// withRepository attaches the shelf, opens entity's repository and runs fn.
func (a *app) withRepository(entity string, fn func(*repository.Repository) error) error {
	sh, err := a.openShelf()
	if err != nil {
		return err
	}
	defer a.closeShelf()

	repo, err := sh.Open(entity)
	if err != nil {
		return err
	}
	return fn(repo)
}

func (a *app) createCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "create <entity> [field=value...]",
		Short: "Create a record",
		Long: "Create a record in the entity's collection. Values are typed by the entity\n" +
			"schema; --data supplies a JSON object that field=value pairs override.",
		Example: "  shelf create project name=Alpha\n" +
			"  shelf create task project_id=1 title='Write docs' tags=docs,urgent",
		Args: cobraArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(args[0], func(repo *repository.Repository) error {
				fields, err := buildFields(repo.Schema(), data, args[1:], false)
				if err != nil {
					return err
				}
				rec, err := repo.Create(fields)
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "record fields as a JSON object")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity> <id>",
		Short: "Show one record",
		Args:  cobraArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.withRepository(args[0], func(repo *repository.Repository) error {
				rec, ok, err := repo.Get(id)
				if err != nil {
					return err
				}
				if !ok {
					return &types.NotFoundError{Entity: args[0], ID: id}
				}
				return a.render(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var (
		data     string
		keepNone bool
	)
	cmd := &cobra.Command{
		Use:   "update <entity> <id> [field=value...]",
		Short: "Update fields of a record",
		Long: "Merge the given fields into an existing record. A value of \"none\" means\n" +
			"\"leave unchanged\" unless --keep-none is set, in which case it is stored\n" +
			"as the literal string.",
		Example: "  shelf update task 3 status=completed\n" +
			"  shelf update task 3 --data '{\"priority\": 1}'",
		Args: cobraArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.withRepository(args[0], func(repo *repository.Repository) error {
				patch, err := buildFields(repo.Schema(), data, args[2:], !keepNone)
				if err != nil {
					return err
				}

				var rec types.Record
				if len(patch) == 0 {
					var ok bool
					rec, ok, err = repo.Get(id)
					if err == nil && !ok {
						err = &types.NotFoundError{Entity: args[0], ID: id}
					}
				} else {
					rec, err = repo.Update(id, patch)
				}
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "fields to change as a JSON object")
	cmd.Flags().BoolVar(&keepNone, "keep-none", false, `store "none" literally instead of skipping the field`)
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record",
		Args:  cobraArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.withRepository(args[0], func(repo *repository.Repository) error {
				removed, err := repo.Delete(id)
				if err != nil {
					return err
				}
				if !removed {
					return &types.NotFoundError{Entity: args[0], ID: id}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %d\n", args[0], id)
				return nil
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var count bool
	cmd := &cobra.Command{
		Use:   "list <entity> [field=value...]",
		Short: "List records, optionally filtered",
		Long: "List the records of an entity in storage order. Each field=value pair\n" +
			"narrows the result; a value matches a list field when the list contains it.",
		Example: "  shelf list task status=pending\n" +
			"  shelf list snippet tags=go --output yaml",
		Args: cobraArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(args[0], func(repo *repository.Repository) error {
				pairs, err := splitPairs(args[1:])
				if err != nil {
					return err
				}
				filter := types.Filter{}
				for _, p := range pairs {
					v, err := repo.Schema().ParseValue(p.field, p.raw)
					if err != nil {
						return err
					}
					filter[p.field] = v
				}

				records, err := repo.Find(filter)
				if err != nil {
					return err
				}
				if count {
					fmt.Fprintln(cmd.OutOrStdout(), len(records))
					return nil
				}
				if records == nil {
					records = []types.Record{}
				}
				return a.render(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().BoolVar(&count, "count", false, "print the number of matching records only")
	return cmd
}

func (a *app) compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact <entity>",
		Short: "Check and rewrite an entity's collection file",
		Long: "Load the whole collection, verify its ids and save it back. For the jsonl\n" +
			"backend this folds appended lines into one rewritten file.",
		Args: cobraArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(args[0], func(repo *repository.Repository) error {
				n, err := repo.Compact()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Compacted %d records in %s\n", n, repo.Path())
				return nil
			})
		},
	}
}
