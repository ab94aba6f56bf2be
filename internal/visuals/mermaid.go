package visuals

import (
	"fmt"
	"math"
	"strings"

	"sprint-history/internal/sprint"
)

// maxMermaidPoints is where xychart labels start to overlap.
const maxMermaidPoints = 60

// GenerateDailyChart creates a Mermaid xychart-beta line of the running story
// point total per day. Days without data (the future) end the line early.
func GenerateDailyChart(title string, series sprint.DailySeries) string {
	if len(series) == 0 {
		return ""
	}

	// Subsample points if the chart is too wide for Mermaid's layout engine
	subsampleRate := 1
	if len(series) > maxMermaidPoints {
		subsampleRate = int(math.Ceil(float64(len(series)) / maxMermaidPoints))
	}

	var labels []string
	var values []string
	maxY := 0.0
	ended := false
	for i, p := range series {
		if i%subsampleRate != 0 && i != len(series)-1 {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", p.Date.Format("Jan02")))
		if p.Value == nil {
			ended = true
			continue
		}
		if ended {
			// Mermaid cannot draw gaps; a series never resumes after a gap.
			continue
		}
		values = append(values, fmt.Sprintf("%.1f", *p.Value))
		maxY = max(maxY, *p.Value)
	}

	if len(values) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title %q\n", title))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Story Points\" 0 --> %d\n", int(math.Ceil(max(maxY*1.2, 1)))))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateChangeChart creates a Mermaid bar chart of the net point change per
// event kind, a quick view of where scope moved.
func GenerateChangeChart(events []sprint.PointDelta) string {
	if len(events) == 0 {
		return ""
	}

	order := []string{}
	totals := map[string]float64{}
	for _, d := range events {
		key := d.Event.Kind.String()
		if _, ok := totals[key]; !ok {
			order = append(order, key)
		}
		totals[key] += d.Net()
	}

	var labels []string
	var values []string
	lo, hi := 0.0, 0.0
	for _, key := range order {
		labels = append(labels, fmt.Sprintf("\"%s\"", key))
		values = append(values, fmt.Sprintf("%.1f", totals[key]))
		lo = min(lo, totals[key])
		hi = max(hi, totals[key])
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Net Story Point Change by Kind\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Story Points\" %d --> %d\n", int(math.Floor(lo)), int(math.Ceil(hi))+1))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}
