package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatNodesText formats CLINode results as aligned columns.
func formatNodesText(w io.Writer, nodes []CLINode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tKIND\tNAME\tREFS")
	for _, n := range nodes {
		refs := "-"
		if n.RefCount != nil {
			refs = fmt.Sprintf("%d", *n.RefCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.Type, n.IDKind, n.Name, refs)
	}
	tw.Flush()
}

// formatDetailText formats a CLINodeDetail as readable text.
func formatDetailText(w io.Writer, d CLINodeDetail) {
	fmt.Fprintf(w, "Node: %s\n", d.Node.ID)
	fmt.Fprintf(w, "Type: %s\n", d.Node.Type)
	fmt.Fprintf(w, "Kind: %s\n", d.Node.IDKind)
	fmt.Fprintf(w, "Digest: %s\n", d.Digest)
	fmt.Fprintln(w)

	if len(d.Properties) > 0 {
		fmt.Fprintln(w, "Properties:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, p := range d.Properties {
			values := make([]string, 0, len(p.Values))
			for _, v := range p.Values {
				values = append(values, formatValue(v))
			}
			joined := strings.Join(values, ", ")
			if p.Collection {
				joined = "[" + joined + "]"
			}
			fmt.Fprintf(tw, "  %s\t%s\n", p.Property, joined)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(d.Referrers) > 0 {
		fmt.Fprintln(w, "Referrers:")
		for _, r := range d.Referrers {
			fmt.Fprintf(w, "  %s\n", r)
		}
	}
}

// formatValue renders a cliValue result for text output.
func formatValue(v any) string {
	if m, ok := v.(map[string]string); ok {
		if id, ok := m["ref"]; ok {
			return "-> " + id
		}
		if uri, ok := m["individual"]; ok {
			return "<" + uri + ">"
		}
	}
	return fmt.Sprintf("%v", v)
}

// formatSummaryText formats a CLISummary as readable text.
func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Graph Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Nodes: %d\n", s.NodeCount)
	fmt.Fprintln(w)

	if len(s.Types) > 0 {
		fmt.Fprintln(w, "Types:")
		for _, tc := range s.Types {
			fmt.Fprintf(w, "  %s: %d\n", tc.Type, tc.Count)
		}
		fmt.Fprintln(w)
	}

	if len(s.TopReferenced) > 0 {
		fmt.Fprintln(w, "Top Referenced:")
		for _, n := range s.TopReferenced {
			refs := 0
			if n.RefCount != nil {
				refs = *n.RefCount
			}
			fmt.Fprintf(w, "  %s (%s) - %d refs\n", n.ID, n.Type, refs)
		}
	}
}

// formatRunText formats a CLIRunResult as readable text.
func formatRunText(w io.Writer, r CLIRunResult) {
	fmt.Fprintf(w, "Namespace: %s\n", r.Namespace)
	fmt.Fprintf(w, "Digest: %s\n", r.Digest)
	fmt.Fprintln(w)
	formatSummaryText(w, r.Summary)

	if len(r.Nodes) > 0 {
		fmt.Fprintln(w)
		formatNodesText(w, r.Nodes)
	}
	if len(r.Cycles) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Relationship Cycles:")
		for _, c := range r.Cycles {
			fmt.Fprintf(w, "  %s\n", strings.Join(c, " -> "))
		}
	}
	if r.Detail != nil {
		fmt.Fprintln(w)
		formatDetailText(w, *r.Detail)
	}
}

// formatImportText formats CLIImportStats as readable text.
func formatImportText(w io.Writer, s CLIImportStats) {
	fmt.Fprintf(w, "Imported %d licenses (version %s) into %s\n", s.Licenses, s.Version, s.Database)
	if s.Replaced > 0 {
		fmt.Fprintf(w, "Replaced %d existing entries\n", s.Replaced)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLINode:
		formatNodesText(w, v)
	case CLINode:
		formatNodesText(w, []CLINode{v})
	case *CLINodeDetail:
		formatDetailText(w, *v)
	case CLINodeDetail:
		formatDetailText(w, v)
	case *CLIRunResult:
		formatRunText(w, *v)
	case CLIRunResult:
		formatRunText(w, v)
	case CLIImportStats:
		formatImportText(w, v)
	case nil:
		// No output for nil results (e.g., show with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLINode:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
