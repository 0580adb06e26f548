package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/termfx/plotnik/internal/diag"
)

// PrintDiagnostics renders bag either as a JSON array or grouped by stage
// with a ✓/✗ severity marker per line, the way the teacher's output
// functions branch on JSON vs. human-readable mode.
func PrintDiagnostics(bag *diag.Bag, jsonOut bool) {
	all := bag.All()
	if jsonOut {
		b, _ := json.MarshalIndent(all, "", "  ")
		fmt.Println(string(b))
		return
	}
	stages := []diag.Stage{
		diag.StageParse, diag.StageResolve, diag.StageEscape,
		diag.StageType, diag.StageLink, diag.StageRuntime,
	}
	for _, stage := range stages {
		ds := bag.InStage(stage)
		if len(ds) == 0 {
			continue
		}
		fmt.Printf("-- %s --\n", stage)
		for _, d := range ds {
			mark := "✓"
			if d.Severity == diag.SeverityError {
				mark = "✗"
			}
			fmt.Printf("%s [%d:%d] %s\n", mark, d.Span.Start, d.Span.End, d.Message)
		}
	}
}

// PrintResult prints a materialized value either as indented JSON (the
// result value schema's own shape) or, in non-JSON mode, as a plain Go
// value dump.
func PrintResult(value any, jsonOut bool) error {
	if !jsonOut {
		fmt.Printf("%+v\n", value)
		return nil
	}
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// PrintFatal writes err to stderr.
func PrintFatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// RenderDiff unified-diffs two previously rendered JSON results, e.g. the
// same query run before and after a grammar upgrade, for --diff mode.
func RenderDiff(oldJSON, newJSON, label string) (string, error) {
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldJSON),
		B:        difflib.SplitLines(newJSON),
		FromFile: label + " (before)",
		ToFile:   label + " (after)",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(d)
}
