package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/connor-mcnaboe/state-propogator/internal/config"
	"github.com/connor-mcnaboe/state-propogator/internal/sim"
	"github.com/connor-mcnaboe/state-propogator/internal/trajectory"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

func field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func printSummary(w io.Writer, sc *config.Scenario, res *sim.Result, runErr error) {
	status := okStyle.Render("converged")
	if runErr != nil {
		status = errStyle.Render(runErr.Error())
	}

	lines := []string{
		headerStyle.Render(sc.Name),
		field("status", status),
		field("span", fmt.Sprintf("%g s -> %g s", sc.TStart, sc.TEnd)),
		field("tolerances", fmt.Sprintf("rtol %g  atol %g", sc.RTol, sc.ATol)),
		field("steps", fmt.Sprintf("%d accepted, %d rejected", res.Stats.Accepted, res.Stats.Rejected)),
		field("evaluations", fmt.Sprintf("%d", res.Stats.Evaluations)),
		field("elapsed", res.Elapsed.String()),
	}
	if res.Trajectory.Len() > 0 {
		last := res.Trajectory.Last()
		lines = append(lines,
			field("final t", fmt.Sprintf("%.6f", last.T)),
			field("final r", fmt.Sprintf("%.6f %.6f %.6f", last.State[0], last.State[1], last.State[2])),
			field("final v", fmt.Sprintf("%.9f %.9f %.9f", last.State[3], last.State[4], last.State[5])),
		)
	}

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, field(name, fmt.Sprintf("%.6e", res.Metrics[name])))
	}

	fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

// printSamples shows at most n samples spread over the trajectory, always
// including the first and the last.
func printSamples(w io.Writer, traj trajectory.Trajectory, n int) {
	if traj.Len() == 0 || n <= 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "t\tx\ty\tz\tvx\tvy\tvz\t")
	for _, idx := range spread(traj.Len(), n) {
		s := traj.Samples[idx]
		fmt.Fprintf(tw, "%.3f\t%.3f\t%.3f\t%.3f\t%.6f\t%.6f\t%.6f\t\n",
			s.T, s.State[0], s.State[1], s.State[2], s.State[3], s.State[4], s.State[5])
	}
	tw.Flush()
}

func spread(length, n int) []int {
	if n >= length {
		out := make([]int, length)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if n == 1 {
		return []int{length - 1}
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i * (length - 1) / (n - 1)
	}
	return out
}

func printPlots(w io.Writer, traj trajectory.Trajectory) {
	if traj.Len() < 2 {
		return
	}

	radius := make([]float64, traj.Len())
	speed := make([]float64, traj.Len())
	for i, s := range traj.Samples {
		radius[i] = r3.Norm(s.State.Position())
		speed[i] = r3.Norm(s.State.Velocity())
	}

	plots := []struct {
		data    []float64
		caption string
	}{
		{radius, "|r| (km) vs sample"},
		{speed, "|v| (km/s) vs sample"},
	}
	for _, p := range plots {
		graph := asciigraph.Plot(p.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		)
		fmt.Fprintln(w)
		fmt.Fprintln(w, graph)
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Foreground(lipgloss.Color("86")).Bold(true)
			}
			return cellStyle
		})
}

func printBatch(w io.Writer, results []sim.JobResult) {
	t := newTable("scenario", "status", "accepted", "rejected", "samples", "energy drift", "final t")
	for _, jr := range results {
		status := okStyle.Render("ok")
		if jr.Err != nil {
			status = errStyle.Render(jr.Err.Error())
		}
		if jr.Result == nil {
			t.Row(jr.Job.ID, status, "-", "-", "-", "-", "-")
			continue
		}

		res := jr.Result
		finalT := "-"
		if res.Trajectory.Len() > 0 {
			finalT = fmt.Sprintf("%.3f", res.Trajectory.Last().T)
		}
		t.Row(jr.Job.ID, status,
			strconv.Itoa(res.Stats.Accepted), strconv.Itoa(res.Stats.Rejected),
			strconv.Itoa(res.Trajectory.Len()), fmt.Sprintf("%.3e", res.Metrics["energy_drift"]), finalT)
	}
	fmt.Fprintln(w, t.Render())
}

func printPresets(w io.Writer) {
	t := newTable("name", "mu", "span (s)", "rtol", "atol")
	for _, name := range config.ListPresets() {
		sc := config.GetPreset(name)
		t.Row(name, fmt.Sprintf("%g", sc.Mu), fmt.Sprintf("%g", sc.TEnd-sc.TStart),
			fmt.Sprintf("%g", sc.RTol), fmt.Sprintf("%g", sc.ATol))
	}
	fmt.Fprintln(w, t.Render())
}
