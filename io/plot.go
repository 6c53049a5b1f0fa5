package io

import (
	"fmt"

	plt "github.com/phil-mansfield/pyplot"
)

var colors = []string{
	"DarkSlateBlue", "DarkSlateGray", "DarkTurquoise",
	"DarkViolet", "DeepPink", "DimGray",
}

// ExecutePlots draws every queued plot.
func ExecutePlots() { plt.Execute() }

// StepHistory returns the iteration numbers and alive track counts of an
// event, ready for plotting. Events without stored track counts give empty
// slices.
func StepHistory(e *EventSummary) (steps, alive []float64) {
	steps = make([]float64, len(e.Alive))
	alive = make([]float64, len(e.Alive))
	for i := range e.Alive {
		steps[i] = float64(i + 1)
		alive[i] = float64(e.Alive[i])
	}
	return steps, alive
}

// PlotStepHistory queues a plot of the alive track count of every event
// against iteration number, saved to fname. Nothing is drawn until
// plt.Execute is called.
func PlotStepHistory(s *RunSummary, fname string) error {
	plotted := 0
	for i := range s.Events {
		if len(s.Events[i].Alive) > 0 { plotted++ }
	}
	if plotted == 0 {
		return fmt.Errorf(
			"Run %s has no stored track counts. Set StoreTrackCounts to " +
				"plot them.", s.RunId,
		)
	}

	plt.Figure()
	for i := range s.Events {
		steps, alive := StepHistory(&s.Events[i])
		if len(steps) == 0 { continue }
		plt.Plot(steps, alive, plt.LW(2), plt.C(colors[i%len(colors)]))
	}

	plt.Title(fmt.Sprintf("Run %s: %d events", s.RunId, s.NumEvents))
	plt.XLabel("Iteration", plt.FontSize(16))
	plt.YLabel("Alive tracks", plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(fname)
	return nil
}
