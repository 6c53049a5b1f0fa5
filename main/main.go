package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/phil-mansfield/gotrack"
	"github.com/phil-mansfield/gotrack/io"
	"github.com/phil-mansfield/gotrack/track"
)

// runFiles holds the optional log and CPU profile files of a run.
type runFiles struct {
	log, prof *os.File
}

// Close stops profiling and closes both files.
func (fg *runFiles) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil { log.Fatal(err.Error()) }
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil { log.Fatal(err.Error()) }
	}
}

func main() {
	var transport, exampleConfig string
	vars := map[string]*string{
		"Transport":     &transport,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&transport, "Transport", "",
		"Configuration file for [Transport] mode.",
	)
	flag.StringVar(
		&exampleConfig, "ExampleConfig", "",
		"Prints an example configuration file of the specified type to "+
			"stdout. The only accepted argument is 'Transport'.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil { log.Fatal(err.Error()) }

	switch modeName {
	case "Transport":
		wrap, err := io.ReadTransportConfig(transport)
		if err != nil { log.Fatal(err.Error()) }
		if err := transportMain(wrap); err != nil { log.Fatal(err.Error()) }

	case "ExampleConfig":
		switch exampleConfig {
		case "Transport":
			fmt.Println(io.ExampleTransportFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. The only " +
					"recognized argument is 'Transport'.",
			)
		}
	default:
		panic("Impossible")
	}
}

// getModeName returns the name of the mode and fails with a descriptive error
// if the user provided less or more than one mode flag.
func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" { setNames = append(setNames, name) }
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but gotrack only accepts "+
				"one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

func transportMain(wrap *io.TransportWrapper) error {
	con, out := &wrap.Transport, &wrap.Output

	fg, logger, err := setupIO(con)
	if err != nil { return err }
	defer fg.Close()

	// SIGUSR2 lets a batch system ask for a clean early exit.
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGUSR2,
	)
	defer stop()

	particles, err := io.Particles()
	if err != nil { return err }
	events, err := io.ReadPrimaries(con.Input, particles)
	if err != nil { return err }

	setup, err := wrap.NewSetup(particles, len(events), logger)
	if err != nil { return err }
	logger.Info("starting transport", "params", setup.Params.String(),
		"events", len(events), "streams", con.Streams)

	runner, err := gotrack.NewRunner(gotrack.RunnerInput{
		Params:        setup.Params,
		NumStreams:    con.Streams,
		NumTrackSlots: con.NumTrackSlots,
		ActionTimes:   out.ActionTimes,
		WarmUp:        con.WarmUp,
		Transporter: gotrack.TransporterInput{
			MaxSteps:         con.MaxSteps,
			StoreTrackCounts: out.StoreTrackCounts || out.ValidPlotFile(),
			StoreStepTimes:   out.StoreStepTimes,
		},
	})
	if err != nil { return err }

	started := time.Now()
	results, err := runner.Run(ctx, events)
	if err != nil { return err }

	lost := finalize(runner, setup)
	summary := io.NewRunSummary(
		started, runner.NumStreams(), results, actionTimes(runner),
	)
	summary.OpticalLost += lost

	fname, err := io.WriteSummary(con.Output, summary, out.Format)
	if err != nil { return err }
	logger.Info("finished transport", "run_id", summary.RunId,
		"seconds", summary.Duration, "aborted", summary.NumAborted,
		"optical_lost", summary.OpticalLost, "output", fname)

	if out.ValidPlotFile() {
		err := io.PlotStepHistory(summary, path.Join(con.Output, out.PlotFile))
		if err != nil { return err }
		io.ExecutePlots()
	}

	return nil
}

func setupIO(con *io.TransportConfig) (*runFiles, *slog.Logger, error) {
	fg := &runFiles{}
	var err error

	logOut := os.Stderr
	if con.ValidLogFile() {
		fg.log, err = os.Create(con.LogFile)
		if err != nil { return nil, nil, err }
		logOut = fg.log
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	if con.ValidProfileFile() {
		fg.prof, err = os.Create(con.ProfileFile)
		if err != nil { return nil, nil, err }
		err = pprof.StartCPUProfile(fg.prof)
		if err != nil { return nil, nil, err }
	}

	return fg, logger, nil
}

// finalize checks that every stream's optical buffers are empty and returns
// the number of photons which were never tracked.
func finalize(runner *gotrack.Runner, setup *io.Setup) int {
	if setup.Collector == nil { return 0 }
	lost := 0
	for i := 0; i < runner.NumStreams(); i++ {
		st := runner.Transporter(track.StreamId(i)).Stepper()
		lost += setup.Collector.Finalize(st.State())
	}
	return lost
}

// actionTimes sums the time spent in each action over every stream.
func actionTimes(runner *gotrack.Runner) map[string]float64 {
	out := map[string]float64{}
	for i := 0; i < runner.NumStreams(); i++ {
		st := runner.Transporter(track.StreamId(i)).Stepper()
		for label, t := range st.ActionTimes() { out[label] += t }
	}
	if len(out) == 0 { return nil }
	return out
}
