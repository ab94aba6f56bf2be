package visuals

import (
	"strings"
	"testing"

	"sprint-history/internal/sprint"
)

func TestGenerateDailyChart(t *testing.T) {
	r, _ := sampleReport(at(30, 0))

	chart := GenerateDailyChart("Sprint 1", r.Daily)
	if !strings.HasPrefix(chart, "```mermaid\nxychart-beta\n") {
		t.Fatalf("Unexpected chart header:\n%s", chart)
	}
	if !strings.Contains(chart, `x-axis ["Mar04", "Mar05", "Mar06", "Mar07", "Mar08"]`) {
		t.Errorf("Unexpected x-axis:\n%s", chart)
	}
	if !strings.Contains(chart, "line [3.0, 5.0, 7.0, 2.0, 2.0]") {
		t.Errorf("Unexpected line:\n%s", chart)
	}
	// 7 * 1.2 rounded up
	if !strings.Contains(chart, `y-axis "Story Points" 0 --> 9`) {
		t.Errorf("Unexpected y-axis:\n%s", chart)
	}
}

func TestGenerateDailyChart_FutureDaysEndLine(t *testing.T) {
	r, _ := sampleReport(at(7, 12))

	chart := GenerateDailyChart("Sprint 1", r.Daily)
	if !strings.Contains(chart, "line [3.0, 5.0, 7.0, 2.0]\n") {
		t.Errorf("Expected the line to stop at today:\n%s", chart)
	}
	if !strings.Contains(chart, `"Mar08"`) {
		t.Errorf("Expected the axis to span the whole sprint:\n%s", chart)
	}
}

func TestGenerateDailyChart_Empty(t *testing.T) {
	if chart := GenerateDailyChart("empty", nil); chart != "" {
		t.Errorf("Expected no chart, got %q", chart)
	}

	v := 1.0
	series := sprint.DailySeries{{Date: at(1, 0)}, {Date: at(2, 0), Value: &v}}
	if chart := GenerateDailyChart("gap first", series); chart != "" {
		t.Errorf("Expected no chart when the first day has no data, got %q", chart)
	}
}

func TestGenerateDailyChart_Subsamples(t *testing.T) {
	var series sprint.DailySeries
	for i := range 150 {
		v := float64(i)
		series = append(series, sprint.DailyPoint{Date: at(1, 0).AddDate(0, 0, i), Value: &v})
	}

	chart := GenerateDailyChart("long", series)
	var line string
	for _, l := range strings.Split(chart, "\n") {
		if strings.HasPrefix(strings.TrimSpace(l), "line [") {
			line = l
		}
	}
	points := strings.Count(line, ",") + 1
	if points > maxMermaidPoints+1 {
		t.Errorf("Expected at most %d points, got %d", maxMermaidPoints+1, points)
	}
	if !strings.HasSuffix(line, "149.0]") {
		t.Errorf("Expected the last day to be kept: %s", line)
	}
}

func TestGenerateChangeChart(t *testing.T) {
	r, _ := sampleReport(at(30, 0))

	chart := GenerateChangeChart(r.Events)
	if !strings.Contains(chart, "bar [") {
		t.Fatalf("Expected a bar chart:\n%s", chart)
	}
	if !strings.Contains(chart, `x-axis ["Added"`) {
		t.Errorf("Expected Added to come first:\n%s", chart)
	}
	if !strings.Contains(chart, "bar [5.0") {
		t.Errorf("Expected +5 for Added:\n%s", chart)
	}

	if GenerateChangeChart(nil) != "" {
		t.Error("Expected no chart without events")
	}
}
