package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/migrate"
)

// maxTableErrors caps the row errors printed in table format. JSON output
// carries every error the report kept.
const maxTableErrors = 20

func formatJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s\n", data)

	return err
}

func formatTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			width := 0
			if i < len(widths) {
				width = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", width, cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

func printReport(w io.Writer, r *migrate.Report, format string) error {
	if format == "json" {
		return formatJSON(w, r)
	}

	backend := r.Backend
	if r.DryRun && !strings.Contains(backend, "dry run") {
		backend += " (dry run)"
	}

	rows := [][]string{
		{"backend", backend},
		{"mode", string(r.Mode)},
		{"total records", strconv.Itoa(r.TotalRecords)},
		{"processed", strconv.Itoa(r.Processed)},
		{"inserted", strconv.Itoa(r.Inserted)},
		{"updated", strconv.Itoa(r.Updated)},
		{"failed", strconv.Itoa(r.Failed)},
	}
	if r.Resumed > 0 {
		rows = append(rows, []string{"resumed", strconv.Itoa(r.Resumed)})
	}
	rows = append(rows,
		[]string{"success rate", fmt.Sprintf("%.2f%%", r.SuccessRatePercent)},
		[]string{"duration", r.Duration.Round(time.Millisecond).String()},
		[]string{"records/sec", fmt.Sprintf("%.1f", r.RecordsPerSecond)},
	)

	kinds := make([]string, 0, len(r.Entities))
	for k := range r.Entities {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		rows = append(rows, []string{k + "s", strconv.Itoa(r.Entities[k])})
	}
	rows = append(rows,
		[]string{"audio features", strconv.Itoa(r.AudioFeatures)},
		[]string{"links", strconv.Itoa(r.Links)},
	)

	if r.Indexes != nil {
		rows = append(rows, []string{"indexes", fmt.Sprintf("%d created, %d failed", r.Indexes.Created, r.Indexes.Failed)})
	}
	if r.Canceled {
		rows = append(rows, []string{"canceled", "yes"})
	}
	if r.SourceError != "" {
		rows = append(rows, []string{"source error", r.SourceError})
	}

	formatTable(w, []string{"METRIC", "VALUE"}, rows)

	if len(r.Errors) == 0 {
		return nil
	}

	fmt.Fprintln(w)

	shown := r.Errors[:min(len(r.Errors), maxTableErrors)]
	errRows := make([][]string, 0, len(shown))
	for _, e := range shown {
		errRows = append(errRows, []string{strconv.Itoa(e.Line), e.Operation, e.Message})
	}
	formatTable(w, []string{"LINE", "OPERATION", "ERROR"}, errRows)

	if more := len(r.Errors) - len(shown) + r.ErrorsTruncated; more > 0 {
		fmt.Fprintf(w, "... and %d more errors\n", more)
	}

	return nil
}

func printIndexReport(w io.Writer, plan []indexes.Spec, r indexes.Report, format string) error {
	if format == "json" {
		return formatJSON(w, r)
	}

	rows := make([][]string, 0, len(plan))
	for _, s := range plan {
		rows = append(rows, []string{s.String()})
	}
	formatTable(w, []string{"INDEX"}, rows)

	fmt.Fprintf(w, "\n%d created, %d failed\n", r.Created, r.Failed)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}

	return nil
}
