package io

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"
	"gopkg.in/yaml.v3"

	"github.com/phil-mansfield/gotrack"
)

// EventSummary is the transport result of a single event.
type EventSummary struct {
	Event        int  `json:"event" yaml:"event"`
	NumStepIters int  `json:"num_step_iters" yaml:"num_step_iters"`
	NumSteps     int  `json:"num_steps" yaml:"num_steps"`
	NumTracks    int  `json:"num_tracks" yaml:"num_tracks"`
	MaxQueued    int  `json:"max_queued" yaml:"max_queued"`
	NumAborted   int  `json:"num_aborted" yaml:"num_aborted"`
	OpticalLost  int  `json:"optical_lost" yaml:"optical_lost"`
	StepLimited  bool `json:"step_limited" yaml:"step_limited"`
	Interrupted  bool `json:"interrupted" yaml:"interrupted"`
	Exhausted    bool `json:"exhausted" yaml:"exhausted"`

	Generated []int     `json:"generated,omitempty" yaml:"generated,omitempty"`
	Active    []int     `json:"active,omitempty" yaml:"active,omitempty"`
	Alive     []int     `json:"alive,omitempty" yaml:"alive,omitempty"`
	Queued    []int     `json:"queued,omitempty" yaml:"queued,omitempty"`
	StepTimes []float64 `json:"step_times,omitempty" yaml:"step_times,omitempty"`
}

// RunSummary is everything written to a result file.
type RunSummary struct {
	RunId    string    `json:"run_id" yaml:"run_id"`
	Started  time.Time `json:"started" yaml:"started"`
	Duration float64   `json:"duration" yaml:"duration"`

	NumEvents   int `json:"num_events" yaml:"num_events"`
	NumStreams  int `json:"num_streams" yaml:"num_streams"`
	NumAborted  int `json:"num_aborted" yaml:"num_aborted"`
	OpticalLost int `json:"optical_lost" yaml:"optical_lost"`
	NumSteps    int `json:"num_steps" yaml:"num_steps"`
	NumTracks   int `json:"num_tracks" yaml:"num_tracks"`

	// Seconds spent in each action, summed over streams.
	ActionTimes map[string]float64 `json:"action_times,omitempty" yaml:"action_times,omitempty"`

	Events []EventSummary `json:"events" yaml:"events"`
}

// NewRunSummary summarizes the results of a run. results are indexed by
// event.
func NewRunSummary(
	started time.Time, streams int, results []gotrack.TransporterResult,
	actionTimes map[string]float64,
) *RunSummary {
	s := &RunSummary{
		RunId:       uuid.New().String(),
		Started:     started,
		Duration:    time.Since(started).Seconds(),
		NumEvents:   len(results),
		NumStreams:  streams,
		ActionTimes: actionTimes,
		Events:      make([]EventSummary, len(results)),
	}

	for i, r := range results {
		s.NumAborted += r.NumAborted
		s.OpticalLost += r.OpticalLost
		s.NumSteps += r.NumSteps
		s.NumTracks += r.NumTracks
		s.Events[i] = EventSummary{
			Event: i, NumStepIters: r.NumStepIters,
			NumSteps: r.NumSteps, NumTracks: r.NumTracks,
			MaxQueued: r.MaxQueued,
			NumAborted: r.NumAborted, OpticalLost: r.OpticalLost,
			StepLimited: r.StepLimited, Interrupted: r.Interrupted,
			Exhausted: r.Exhausted,
			Generated: r.Generated, Active: r.Active, Alive: r.Alive,
			Queued: r.Queued, StepTimes: r.StepTimes,
		}
	}

	return s
}

// Marshal encodes a summary in the given format, json or yaml.
func (s *RunSummary) Marshal(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return sonnet.Marshal(s)
	case "yaml":
		buf := &bytes.Buffer{}
		enc := yaml.NewEncoder(buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil { return nil, err }
		if err := enc.Close(); err != nil { return nil, err }
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("Unrecognized output format '%s'.", format)
}

// SummaryFile returns the name of the file a summary is written to.
func SummaryFile(dir, runId, format string) string {
	return path.Join(dir, fmt.Sprintf("run_%s.%s", runId, strings.ToLower(format)))
}

// WriteSummary writes a summary into dir and returns the file name.
func WriteSummary(dir string, s *RunSummary, format string) (string, error) {
	b, err := s.Marshal(format)
	if err != nil { return "", err }

	if err := os.MkdirAll(dir, 0755); err != nil { return "", err }
	fname := SummaryFile(dir, s.RunId, format)
	if err := os.WriteFile(fname, b, 0644); err != nil { return "", err }
	return fname, nil
}

// ReadSummary reads a summary file, choosing the format from its extension.
func ReadSummary(fname string) (*RunSummary, error) {
	b, err := os.ReadFile(fname)
	if err != nil { return nil, err }

	s := &RunSummary{}
	switch strings.ToLower(path.Ext(fname)) {
	case ".json":
		err = sonnet.Unmarshal(b, s)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, s)
	default:
		err = fmt.Errorf("Unrecognized summary file extension in '%s'.", fname)
	}
	if err != nil { return nil, err }
	return s, nil
}
