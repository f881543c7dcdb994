package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/engine"
)

var (
	success = color.New(color.FgGreen, color.Bold).SprintFunc()
	warn    = color.New(color.FgYellow, color.Bold).SprintFunc()
	fail    = color.New(color.FgRed, color.Bold).SprintFunc()
	label   = color.New(color.FgCyan).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

func statusColor(status core.ValidationStatus) string {
	switch status {
	case core.StatusValid:
		return success(string(status))
	case core.StatusCorrected:
		return warn(string(status))
	default:
		return fail(string(status))
	}
}

func printResult(w io.Writer, res *engine.Result, showContext bool) {
	a := res.Answer
	fmt.Fprintf(w, "%s %s (confidence %.2f)\n", label("Task:"), a.TaskType, a.Confidence)
	fmt.Fprintf(w, "%s %s", label("Status:"), statusColor(a.ValidationStatus))
	if a.Degraded {
		fmt.Fprintf(w, " %s", warn("degraded"))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, a.AnswerText)

	if len(a.CitedEntityIDs) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", label("Cited:"), strings.Join(a.CitedEntityIDs, ", "))
	}

	if len(res.Conditions) > 0 {
		fmt.Fprintf(w, "\n%s\n", label("Conditions:"))
		for _, c := range res.Conditions {
			fmt.Fprintf(w, "  - %s\n", faint(c.Error()))
		}
	}

	if !showContext {
		return
	}
	fmt.Fprintf(w, "\n%s %d of %d candidates", label("Context:"), len(res.Context.Entries), res.Context.Total)
	if res.Context.Truncated {
		fmt.Fprintf(w, " %s", warn("truncated"))
	}
	fmt.Fprintln(w)
	for _, entry := range res.Context.Entries {
		parts := make([]string, 0, len(entry.Fields))
		for _, f := range entry.Fields {
			parts = append(parts, f.Name+"="+f.Value.String())
		}
		fmt.Fprintf(w, "  %s %s\n", entry.ID, faint(strings.Join(parts, " ")))
	}
	for _, agg := range res.Context.Aggregates {
		fmt.Fprintf(w, "  %s %s n=%d mean=%.2f\n", agg.Group, agg.Field, agg.Count, agg.Mean)
	}
}
