/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gate

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Render writes a human-readable rendering of the decision.
func Render(w io.Writer, d Decision) error {
	fmt.Fprintf(w, "decision: %s\n", d.Outcome)
	if d.Report == nil {
		return nil
	}

	fmt.Fprintf(w, "terminal: %s\n", d.Report.Terminal)
	if d.Report.BudgetCause != "" {
		fmt.Fprintf(w, "budget cause: %s\n", d.Report.BudgetCause)
	}
	if d.Report.FatalClass != "" {
		fmt.Fprintf(w, "fatal class: %s\n", d.Report.FatalClass)
	}
	if len(d.Report.Groups) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header([]string{"CLASS", "COUNT", "CHECKS", "RECOMMENDED ACTION"})
	for _, g := range d.Report.Groups {
		table.Append([]string{
			string(g.Class),
			strconv.Itoa(g.Count),
			strings.Join(g.Checks, ","),
			g.Action,
		})
	}
	return table.Render()
}
