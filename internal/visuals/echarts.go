package visuals

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"sprint-history/internal/sprint"
)

const (
	chartWidth  = "1100px"
	chartHeight = "420px"
	// ECharts treats "-" as a missing value and leaves a gap.
	missingValue = "-"
)

// TimestampLayout formats event times in tables and charts.
const TimestampLayout = "2006-01-02 15:04"

// BuildPage assembles the three history charts of a report: the sprint's
// daily totals, the daily totals over the full history and the running total
// after every change. Event times are shown in the calendar's location.
func BuildPage(r sprint.Report, cal sprint.Calendar) *components.Page {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Sprint History: %s", r.Iteration.Name)
	page.AddCharts(
		dailyChart("Daily During Sprint", r.Iteration, r.Daily, false),
		dailyChart("Daily Complete History", r.Iteration, r.DailyHistory, true),
		eventChart(r, cal),
	)
	return page
}

// RenderHTML writes the chart page of a report to w.
func RenderHTML(w io.Writer, r sprint.Report, cal sprint.Calendar) error {
	if err := BuildPage(r, cal).Render(w); err != nil {
		return fmt.Errorf("render chart page: %w", err)
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ChartFileName builds a file system safe HTML file name from its parts,
// e.g. the team and the iteration name.
func ChartFileName(parts ...string) string {
	name := unsafeFileChars.ReplaceAllString(strings.Join(parts, "-"), "_")
	return strings.Trim(name, "_") + ".html"
}

// WriteHTML renders the chart page into a file, creating its directory.
func WriteHTML(path string, r sprint.Report, cal sprint.Calendar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := RenderHTML(f, r, cal); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func dailyChart(title string, it sprint.Iteration, series sprint.DailySeries, markSprint bool) *charts.Line {
	line := baseLine(title, it.Name)
	line.SetXAxis(series.Labels())

	data := make([]opts.LineData, len(series))
	for i, p := range series {
		if p.Value == nil {
			data[i] = opts.LineData{Value: missingValue}
			continue
		}
		data[i] = opts.LineData{Value: *p.Value}
	}

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
	}
	if markSprint && !it.Start.IsZero() && !it.Finish.IsZero() {
		seriesOpts = append(seriesOpts, charts.WithMarkLineNameXAxisItemOpts(
			opts.MarkLineNameXAxisItem{Name: "Sprint Start", XAxis: it.Start.UTC().Format(sprint.DateLayout)},
			opts.MarkLineNameXAxisItem{Name: "Sprint End", XAxis: it.Finish.UTC().Format(sprint.DateLayout)},
		))
	}
	line.AddSeries("Story Points", data, seriesOpts...)
	return line
}

func eventChart(r sprint.Report, cal sprint.Calendar) *charts.Line {
	line := baseLine("Complete History", r.Iteration.Name)

	labels := make([]string, len(r.Events))
	data := make([]opts.LineData, len(r.Events))
	for i, d := range r.Events {
		labels[i] = cal.In(d.Event.Timestamp).Format(TimestampLayout)
		data[i] = opts.LineData{
			Value: d.RunningTotal,
			Name:  fmt.Sprintf("#%d %s", d.Event.ItemID, d.Event.Kind),
		}
	}
	line.SetXAxis(labels)
	line.AddSeries("Story Points", data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
	)
	return line
}

func baseLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Story Points"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date"}),
	)
	return line
}
