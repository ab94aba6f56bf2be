package visuals

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"sprint-history/internal/sprint"
)

// View selects which events the table shows.
type View string

const (
	// ViewDaily shows the changes made during the sprint only.
	ViewDaily View = "daily"
	// ViewComplete shows every change, before and after the sprint as well.
	ViewComplete View = "complete"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewDaily, "":
		return ViewDaily, nil
	case ViewComplete:
		return ViewComplete, nil
	}
	return "", fmt.Errorf("unknown view %q (want daily or complete)", s)
}

var (
	upColor     = color.New(color.FgGreen)
	downColor   = color.New(color.FgRed)
	reviewColor = color.New(color.FgYellow, color.Bold)
	markerColor = color.New(color.Bold)
)

// RenderSummary prints the headline numbers of a report.
func RenderSummary(w io.Writer, r sprint.Report) error {
	it := r.Iteration
	s := r.Summary

	bounds := "unscheduled"
	if !it.Start.IsZero() && !it.Finish.IsZero() {
		bounds = fmt.Sprintf("%s to %s", it.Start.UTC().Format(sprint.DateLayout), it.Finish.UTC().Format(sprint.DateLayout))
	}
	_, err := fmt.Fprintf(w, "%s (%s)\n%d items, %s points at start, %s at end (%s added, %s removed)\n",
		markerColor.Sprint(it.Name), bounds, s.ItemCount,
		formatPoints(s.StartTotal), formatPoints(s.EndTotal),
		upColor.Sprint("+"+formatPoints(s.TotalAdded)), downColor.Sprint("-"+formatPoints(s.TotalSubtracted)),
	)
	if err != nil {
		return err
	}
	if s.NeedsReview > 0 {
		_, err = fmt.Fprintln(w, reviewColor.Sprintf("%d change(s) need review", s.NeedsReview))
	}
	return err
}

// RenderEventTable prints the change events of a report with the sprint start
// and end marker rows.
func RenderEventTable(w io.Writer, r sprint.Report, view View, cal sprint.Calendar) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Date", "Work Item", "Change", "Added", "Removed", "Total"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	if err := table.Bulk(EventRows(r, view, cal)); err != nil {
		return err
	}
	return table.Render()
}

// EventRows builds the table rows of a report.
func EventRows(r sprint.Report, view View, cal sprint.Calendar) [][]string {
	it := r.Iteration
	scheduled := !it.Start.IsZero() && !it.Finish.IsZero()

	events := r.Events
	if view == ViewDaily {
		events = r.ChangesWithin(cal)
	}

	var rows [][]string
	startShown, endShown := !scheduled, !scheduled
	for _, d := range events {
		day := cal.Day(d.Event.Timestamp)
		if !startShown && !day.Before(cal.Boundary(it.Start)) {
			rows = append(rows, startRow(r, view))
			startShown = true
		}
		if !endShown && day.After(cal.Boundary(it.Finish)) {
			rows = append(rows, endRow(r, view))
			endShown = true
		}
		rows = append(rows, eventRow(d, cal))
	}

	if !startShown {
		rows = append(rows, startRow(r, view))
	}
	// The end row only appears once the sprint is over.
	if !endShown && !cal.Boundary(it.Finish).After(cal.Day(cal.Now())) {
		rows = append(rows, endRow(r, view))
	}
	return rows
}

func eventRow(d sprint.PointDelta, cal sprint.Calendar) []string {
	change := d.Event.Kind.String()
	if d.NeedsReview {
		change = reviewColor.Sprint(change + " (review)")
	}

	added, removed := "", ""
	if d.ShowAdded {
		added = "+" + formatPoints(d.Added)
	}
	if d.ShowSubtracted {
		removed = "-" + formatPoints(d.Subtracted)
	}

	total := formatPoints(d.RunningTotal)
	switch d.Direction {
	case sprint.Up:
		total = upColor.Sprint(total + " " + d.Direction.Arrow())
	case sprint.Down:
		total = downColor.Sprint(total + " " + d.Direction.Arrow())
	}

	return []string{
		cal.In(d.Event.Timestamp).Format(TimestampLayout),
		workItemLabel(d.Event.Revision),
		change,
		added,
		removed,
		total,
	}
}

func startRow(r sprint.Report, view View) []string {
	label := "Sprint Started"
	total := ""
	if view == ViewDaily && r.Summary.PreSprintChanges > 0 {
		label = fmt.Sprintf("%s (%d pre-sprint changes hidden)", label, r.Summary.PreSprintChanges)
		total = formatPoints(r.Summary.StartTotal)
	}
	return []string{r.Iteration.Start.UTC().Format(sprint.DateLayout), markerColor.Sprint(label), "", "", "", total}
}

func endRow(r sprint.Report, view View) []string {
	label := "Sprint Ended"
	if view == ViewDaily && r.Summary.PostSprintChanges > 0 {
		label = fmt.Sprintf("%s (%d post-sprint changes hidden)", label, r.Summary.PostSprintChanges)
	}
	return []string{r.Iteration.Finish.UTC().Format(sprint.DateLayout), markerColor.Sprint(label), "", "", "", ""}
}

func workItemLabel(rev sprint.Revision) string {
	label := "#" + strconv.Itoa(rev.ItemID)
	if rev.Title != "" {
		label += " " + truncate(rev.Title, 40)
	}
	return label
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
