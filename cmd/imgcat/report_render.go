package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"imgcat/internal/api"
	"imgcat/internal/reconcile"
)

// runSummary is the --json form of a run result.
type runSummary struct {
	Version  api.Version         `json:"version"`
	Complete bool                `json:"complete"`
	Levels   []levelSummary      `json:"levels"`
	Failures []reconcile.Failure `json:"failures,omitempty"`
}

type levelSummary struct {
	Level     string `json:"level"`
	New       int    `json:"new"`
	Revised   int    `json:"revised"`
	Retired   int    `json:"retired"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
}

func summarizeRun(result *reconcile.Result) runSummary {
	sum := runSummary{
		Version:  api.FromEntity(result.Version),
		Complete: result.Complete,
		Failures: result.Report.Failures(),
	}
	for _, lc := range result.Report.Levels() {
		sum.Levels = append(sum.Levels, levelSummary{
			Level:     string(lc.Level),
			New:       lc.New,
			Revised:   lc.Revised,
			Retired:   lc.Retired,
			Unchanged: lc.Unchanged,
			Failed:    lc.Failed,
		})
	}
	return sum
}

func renderRunReport(out io.Writer, sum runSummary) {
	rows := make([][]string, 0, len(sum.Levels))
	for _, l := range sum.Levels {
		rows = append(rows, []string{
			titleCase(l.Level),
			strconv.Itoa(l.New),
			strconv.Itoa(l.Revised),
			strconv.Itoa(l.Retired),
			strconv.Itoa(l.Unchanged),
			strconv.Itoa(l.Failed),
		})
	}
	title := fmt.Sprintf("Version %d (complete: %s)", sum.Version.Number, yesNo(sum.Complete))
	fmt.Fprintln(out, renderTable(out, title,
		[]string{"Level", "New", "Revised", "Retired", "Unchanged", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	if len(sum.Failures) == 0 {
		return
	}
	failRows := make([][]string, 0, len(sum.Failures))
	for _, f := range sum.Failures {
		failRows = append(failRows, []string{titleCase(string(f.Level)), strings.Join(f.Chain, "/"), f.Kind, f.Err})
	}
	fmt.Fprintln(out, renderTable(out, "Failed subtrees",
		[]string{"Level", "Chain", "Kind", "Error"}, failRows, nil))
}

func renderVersionSummary(out io.Writer, sum api.VersionSummary) {
	rows := make([][]string, 0, len(sum.Levels))
	for _, l := range sum.Levels {
		rows = append(rows, []string{titleCase(l.Level), strconv.Itoa(l.Live), strconv.Itoa(l.Done)})
	}
	title := fmt.Sprintf("Version %d (done: %s)", sum.Version.Number, yesNo(sum.Version.Done))
	fmt.Fprintln(out, renderTable(out, title,
		[]string{"Level", "Entities", "Done"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
	if sum.Version.Hash != "" {
		fmt.Fprintf(out, "Combined hash: %s\n", sum.Version.Hash)
	}
}

func renderVersionList(out io.Writer, versions []api.Version) {
	if len(versions) == 0 {
		fmt.Fprintln(out, "No versions recorded")
		return
	}
	rows := make([][]string, 0, len(versions))
	for _, v := range versions {
		rows = append(rows, []string{strconv.Itoa(v.Number), yesNo(v.Done), v.MaxTimestamp, shortHash(v.Hash)})
	}
	fmt.Fprintln(out, renderTable(out, "",
		[]string{"Version", "Done", "Updated", "Hash"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
