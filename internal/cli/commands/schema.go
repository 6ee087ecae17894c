package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

func newSchemaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [class]",
		Short: "Show the composed document classes",
		Long: `Show every declared document class with its inherited fields, indexes
and callbacks, followed by any reference cycles between classes.

Cycles are legal; they are listed because populating them fully never ends.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := a.load()
			if err != nil {
				return err
			}

			classes := reg.All()
			if len(args) == 1 {
				class, err := reg.Lookup(args[0])
				if err != nil {
					return err
				}
				classes = []*schema.Class{class}
			}

			out := cmd.OutOrStdout()
			if len(classes) == 0 {
				_, info, _ := a.palette()
				info.Fprintln(out, "ℹ No document classes declared")
				return nil
			}

			title := color.New(color.FgCyan, color.Bold)
			if a.noColor {
				title.DisableColor()
			}

			for i, class := range classes {
				if i > 0 {
					fmt.Fprintln(out)
				}
				title.Fprintln(out, class.Name())
				renderClass(out, class, a.noColor)
			}

			if len(args) == 0 {
				if cycles := reg.Graph().DetectCycles(); len(cycles) > 0 {
					_, _, warning := a.palette()
					fmt.Fprintln(out)
					warning.Fprintln(out, "Reference cycles:")
					fmt.Fprintln(out, schema.FormatCycles(cycles))
				}
			}
			return nil
		},
	}
}

func renderClass(out io.Writer, class *schema.Class, noColor bool) {
	meta := class.Metadata()

	kv := ui.NewKeyValueTable(out, noColor)
	collection := meta.Collection
	if collection == "" {
		collection = "(none)"
	}
	kv.AddRow("collection", collection)
	if parent := class.Parent(); parent != nil {
		kv.AddRow("extends", parent.Name())
	}
	for _, phase := range schema.Phases() {
		if names := meta.CallbacksFor(phase); len(names) > 0 {
			kv.AddRow(phase.String(), strings.Join(names, ", "))
		}
	}
	for _, idx := range meta.Indexes {
		label := idx.KeyName()
		if idx.Unique {
			label += " (unique)"
		}
		kv.AddRow("index", label)
	}
	kv.Render()

	if meta.Fields.Len() == 0 {
		return
	}
	fmt.Fprintln(out)
	table := ui.NewTable(out, noColor, "FIELD", "TYPE", "CONSTRAINTS")
	for _, f := range meta.Fields.All() {
		rules := make([]string, 0, len(f.Constraints))
		for _, c := range f.Constraints {
			rules = append(rules, c.Name())
		}
		table.AddRow(f.Name, f.TypeString(), strings.Join(rules, ", "))
	}
	table.Render()
}
