package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// filterFlags selects documents by a JSON filter or a single identity
type filterFlags struct {
	filter string
	id     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.filter, "filter", "f", "", `JSON filter, e.g. '{"age": {"$gte": 18}}'`)
	cmd.Flags().StringVar(&f.id, "id", "", "match a single document by identity")
}

func (f *filterFlags) build() (engine.Filter, error) {
	filter := engine.Filter{}
	if f.filter != "" {
		if err := json.Unmarshal([]byte(f.filter), &filter); err != nil {
			return nil, fmt.Errorf("invalid --filter: %w", err)
		}
		if id, ok := filter[engine.IDField].(string); ok {
			filter[engine.IDField] = parseID(id)
		}
	}
	if f.id != "" {
		filter[engine.IDField] = parseID(f.id)
	}
	return filter, nil
}

// parseID turns a 24 digit hex string into an ObjectID. Any other string is
// used unchanged.
func parseID(s string) any {
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return s
}

func newCountCommand(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "count <class>",
		Short: "Count stored documents",
		Args:  classArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.build()
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}
				n, err := repo.Count(ctx, filter, nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	ff.register(cmd)
	return cmd
}

func newFindCommand(a *app) *cobra.Command {
	var (
		ff       filterFlags
		page     int64
		limit    int64
		sort     []string
		populate []string
		dump     bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "find <class>",
		Short: "List stored documents a page at a time",
		Long: `List stored documents a page at a time.

Examples:
  docmap find Person --filter '{"age": {"$gte": 18}}' --sort -age
  docmap find Person --id 64b7f0c2a1e4d3b2c1a09f8e --populate children
  docmap find Person --page 2 --limit 10 --dump`,
		Args: classArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.build()
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}

				result, err := repo.Paginate(ctx, filter, query.PageOptions{
					Page:     page,
					Limit:    limit,
					Sort:     parseSort(sort),
					Populate: populate,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case dump:
					for _, d := range result.Items {
						spew.Fdump(out, d.Record())
					}
				case asJSON:
					payload := struct {
						*query.Page
						Items []engine.Record `json:"items"`
					}{Page: result, Items: make([]engine.Record, 0, len(result.Items))}
					for _, d := range result.Items {
						payload.Items = append(payload.Items, d.Record())
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(payload)
				default:
					renderDocuments(out, repo.Class(), result.Items, a.noColor)
				}

				_, info, _ := a.palette()
				info.Fprintf(out, "page %d: %d of %d documents\n", result.Page, len(result.Items), result.Total)
				return nil
			})
		},
	}

	ff.register(cmd)
	cmd.Flags().Int64Var(&page, "page", 0, "zero-based page number")
	cmd.Flags().Int64Var(&limit, "limit", 20, "documents per page, 0 for all")
	cmd.Flags().StringSliceVar(&sort, "sort", nil, "sort fields, prefix with - for descending")
	cmd.Flags().StringSliceVarP(&populate, "populate", "p", nil, "reference paths to populate, e.g. children.parent")
	cmd.Flags().BoolVar(&dump, "dump", false, "dump raw records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the page as JSON")
	return cmd
}

func parseSort(fields []string) []engine.SortField {
	out := make([]engine.SortField, 0, len(fields))
	for _, f := range fields {
		name, desc := strings.CutPrefix(f, "-")
		out = append(out, engine.SortField{Field: name, Desc: desc})
	}
	return out
}

func renderDocuments(out io.Writer, class *schema.Class, docs []*document.Document, noColor bool) {
	fields := class.Metadata().Fields.Names()
	table := ui.NewTable(out, noColor, append([]string{engine.IDField}, fields...)...)
	for _, d := range docs {
		row := []string{engine.IDKey(d.ID())}
		for _, name := range fields {
			row = append(row, formatValue(d.Get(name)))
		}
		table.AddRow(row...)
	}
	table.Render()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case document.Ref:
		if val.IsAbsent() {
			return ""
		}
		return val.String()
	case []document.Ref:
		parts := make([]string, len(val))
		for i, r := range val {
			parts[i] = r.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	return fmt.Sprint(v)
}

func newInsertCommand(a *app) *cobra.Command {
	var skipValidation bool

	cmd := &cobra.Command{
		Use:   "insert <class> <json>",
		Short: "Create a document",
		Long: `Create a document from a JSON object. Reference fields take identities.

Example:
  docmap insert Person '{"name": "Ada", "age": 36, "parent": "64b7f0c2a1e4d3b2c1a09f8e"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var values map[string]any
			if err := json.Unmarshal([]byte(args[1]), &values); err != nil {
				return fmt.Errorf("invalid document: %w", err)
			}

			return a.run(cmd, func(ctx context.Context, s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}

				d := repo.New()
				for name, value := range values {
					if f, ok := repo.Class().Field(name); ok && f.IsRef() {
						value = refValue(value)
					}
					d.Set(name, value)
				}

				saved, err := d.Save(ctx, &document.SaveOptions{SkipValidation: skipValidation})
				if err != nil {
					return err
				}
				ui.Success(cmd.OutOrStdout(), a.noColor, "created %s %s", repo.Class().Name(), engine.IDKey(saved.ID()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "save without checking field constraints")
	return cmd
}

// refValue converts identities given as JSON strings
func refValue(v any) any {
	switch val := v.(type) {
	case string:
		return parseID(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = refValue(item)
		}
		return out
	}
	return v
}

func newDeleteCommand(a *app) *cobra.Command {
	var (
		ff  filterFlags
		yes bool
	)

	cmd := &cobra.Command{
		Use:   "delete <class>",
		Short: "Delete stored documents",
		Long: `Delete every document of a class matching the filter. Without a filter
every document of the class is deleted.`,
		Args: classArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.build()
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				success, info, _ := a.palette()

				n, err := repo.Count(ctx, filter, nil)
				if err != nil {
					return err
				}
				if n == 0 {
					info.Fprintln(out, "ℹ Nothing to delete")
					return nil
				}

				if !yes {
					confirmed := false
					prompt := &survey.Confirm{
						Message: fmt.Sprintf("Delete %d %s documents?", n, repo.Class().Name()),
						Default: false,
					}
					if err := survey.AskOne(prompt, &confirmed); err != nil {
						return err
					}
					if !confirmed {
						info.Fprintln(out, "ℹ Cancelled")
						return nil
					}
				}

				res, err := repo.DeleteMany(ctx, filter, nil)
				if err != nil {
					return err
				}
				success.Fprintf(out, "✓ deleted %d %s documents\n", res.DeletedCount, repo.Class().Name())
				return nil
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
