package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/openmri/mrc/internal/application"
	"github.com/openmri/mrc/internal/domain"
	"github.com/openmri/mrc/internal/postproc"
)

type RenderOptions struct {
	// BarWidth is the width of utilization bars in characters. Zero picks a
	// default of 24.
	BarWidth int
}

const defaultBarWidth = 24

func (o RenderOptions) barWidth() int {
	if o.BarWidth <= 0 {
		return defaultBarWidth
	}
	return o.BarWidth
}

func renderTimelineView(timeline domain.Timeline, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Unrolled Timeline"),
		s.header.Render(fmt.Sprintf("%d samples @ %s (%s)",
			timeline.NumSamples, formatHertz(timeline.SampleRate), formatSeconds(timeline.Duration()))),
	}

	if len(timeline.Outputs) == 0 && len(timeline.Receives) == 0 {
		lines = append(lines, s.empty.Render("Timeline is empty."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, output := range timeline.Outputs {
		lines = append(lines, s.section.Render(renderOutput(output, opts, s)))
	}
	for _, receive := range timeline.Receives {
		lines = append(lines, s.section.Render(renderReceive(receive, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderOutput(output domain.OutputTimeline, opts RenderOptions, s styles) string {
	utilization := outputUtilization(output.Samples)
	bar := renderUtilizationBar(utilization, opts.barWidth(), s)

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.channel.Render(fmt.Sprintf("out %d", output.Channel)),
		" ",
		bar,
		" ",
		s.detail.Render(fmt.Sprintf("%3.0f%% of full scale", utilization*100)),
	)

	if n := len(output.Triggers); n > 0 {
		suffix := "triggers"
		if n == 1 {
			suffix = "trigger"
		}
		line += " " + s.metaValue.Render(fmt.Sprintf("(%d %s %s)", n, output.Triggers[0].Signal, suffix))
	}

	return line
}

func renderReceive(receive domain.ReceiveTimeline, s styles) string {
	total := 0
	for _, window := range receive.Windows {
		total += window.NumSamples
	}

	suffix := "windows"
	if len(receive.Windows) == 1 {
		suffix = "window"
	}

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.channel.Render(fmt.Sprintf("rx %d", receive.Channel)),
		" ",
		s.detail.Render(fmt.Sprintf("%d %s, %d samples", len(receive.Windows), suffix, total)),
	)

	if len(receive.Windows) > 0 {
		spans := make([]string, 0, len(receive.Windows))
		for _, window := range receive.Windows {
			spans = append(spans, fmt.Sprintf("[%d, %d)", window.Start, window.End()))
		}
		line += " " + s.metaValue.Render(strings.Join(spans, " "))
	}

	return line
}

func renderRunView(result application.RunResult, summaries []postproc.ChannelSummary, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Acquisition Run"),
		s.header.Render(fmt.Sprintf("repetitions completed: %d  elapsed: %s",
			result.Completed, result.Elapsed().Round(time.Millisecond))),
	}

	if len(result.Records) == 0 {
		lines = append(lines, s.empty.Render("No repetitions captured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	if len(summaries) == 0 {
		lines = append(lines, s.empty.Render("No signal summary available."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, summary := range summaries {
		lines = append(lines, s.section.Render(renderSummary(summary, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSummary(summary postproc.ChannelSummary, opts RenderOptions, s styles) string {
	ratio := 0.0
	if summary.PeakMagnitude > 0 {
		ratio = summary.MeanMagnitude / summary.PeakMagnitude
	}
	bar := renderUtilizationBar(ratio, opts.barWidth(), s)

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.channel.Render(fmt.Sprintf("rx %d", summary.Channel)),
		" ",
		bar,
		" ",
		s.detail.Render(fmt.Sprintf("peak %.0f  mean %.0f", summary.PeakMagnitude, summary.MeanMagnitude)),
		" ",
		s.metaValue.Render(fmt.Sprintf("(noise sd %.1f, %d samples)", summary.NoiseSD, summary.Samples)),
	)

	if summary.NoiseSD > 0 && summary.PeakMagnitude/summary.NoiseSD < 3 {
		line += " " + s.warning.Render("[low snr]")
	}

	return line
}

// outputUtilization is the peak absolute sample relative to DAC full scale.
func outputUtilization(samples []int16) float64 {
	peak := 0.0
	for _, sample := range samples {
		if v := math.Abs(float64(sample)); v > peak {
			peak = v
		}
	}

	return peak / float64(math.MaxInt16)
}

func renderUtilizationBar(fraction float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	filled := int(math.Round(float64(width) * fraction))
	if filled > width {
		filled = width
	}

	empty := width - filled
	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", empty))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func formatHertz(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.6g MHz", v*1e-6)
	case v >= 1e3:
		return fmt.Sprintf("%.6g kHz", v*1e-3)
	default:
		return fmt.Sprintf("%.6g Hz", v)
	}
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(time.Microsecond).String()
}
