package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/model"
)

// windowFlags are the --from/--to flags shared by preview and import.
type windowFlags struct {
	from string
	to   string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first statement date to import (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last statement date to import (YYYY-MM-DD)")
}

func (f *windowFlags) window() (importer.DateRange, error) {
	var w importer.DateRange
	var err error
	if f.from != "" {
		if w.From, err = model.ParseDate(f.from); err != nil {
			return w, fmt.Errorf("--from: %w", err)
		}
	}
	if f.to != "" {
		if w.To, err = model.ParseDate(f.to); err != nil {
			return w, fmt.Errorf("--to: %w", err)
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return w, fmt.Errorf("--to %s is before --from %s", f.to, f.from)
	}
	return w, nil
}

// readStatement loads a statement file after checking a parser exists for
// its extension.
func readStatement(reg *importer.Registry, path string) (string, error) {
	if reg.ForFile(path) == nil {
		return "", fmt.Errorf("unsupported statement format %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading statement: %w", err)
	}
	return string(data), nil
}

func printSummary(out io.Writer, name string, m engine.MatchResult) {
	fmt.Fprintf(out, "%s: %d new, %d conflicts, %d outside window, %d unreadable\n",
		name, len(m.Clean), len(m.Conflicts), m.Ignored, m.ParseErrorCount())
}

func printMatch(out io.Writer, m engine.MatchResult) {
	if len(m.Clean) > 0 {
		fmt.Fprintln(out, "\nNew records:")
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tDIRECTION\tAMOUNT\tCATEGORY\tDESCRIPTION")
		for _, c := range m.Clean {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				c.Date.Format(model.DateFormat), c.Direction, c.Amount.StringFixed(2), c.Category, c.Description)
		}
		tw.Flush()
	}

	if len(m.Conflicts) > 0 {
		fmt.Fprintln(out, "\nConflicts (default keep_existing):")
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PAIR\tDATE\tDIRECTION\tAMOUNT\tEXISTING ID\tNEW DESCRIPTION\tEXISTING DESCRIPTION")
		for _, p := range m.Conflicts {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
				p.ID, p.Candidate.Date.Format(model.DateFormat), p.Candidate.Direction,
				p.Candidate.Amount.StringFixed(2), p.Existing.ID, p.Candidate.Description, p.Existing.Description)
		}
		tw.Flush()
	}

	for _, pe := range m.ParseErrors {
		fmt.Fprintf(out, "skipped %s\n", pe.Error())
	}
}
