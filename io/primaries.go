package io

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/gotrack/phys"
	"github.com/phil-mansfield/gotrack/track"
)

// Columns of a primary file.
const (
	EventCol = iota
	PDGCol
	EnergyCol
	XCol
	YCol
	ZCol
	DxCol
	DyCol
	DzCol
	primaryCols
)

// ReadPrimaries reads a whitespace-separated primary file and groups the
// primaries by event. The returned slice is indexed by event id, so events
// with no primaries are empty.
func ReadPrimaries(
	file string, particles *phys.Particles,
) ([][]track.Primary, error) {
	colIdxs := make([]int, primaryCols)
	for i := range colIdxs { colIdxs[i] = i }

	cols, err := table.ReadTable(file, colIdxs, nil)
	if err != nil { return nil, err }
	return PrimariesFromColumns(cols, particles)
}

// PrimariesFromColumns converts the columns of a primary file into
// primaries grouped by event. A file can't hold more events than
// primaries, so event ids must be smaller than the number of rows.
func PrimariesFromColumns(
	cols [][]float64, particles *phys.Particles,
) ([][]track.Primary, error) {
	if len(cols) != primaryCols {
		return nil, fmt.Errorf(
			"Primary table has %d columns, but %d are needed.",
			len(cols), primaryCols,
		)
	}

	rows := len(cols[EventCol])
	events := [][]track.Primary{}
	for i := range cols[0] {
		id := cols[EventCol][i]
		if !(id >= 0 && id < float64(rows)) || id != math.Trunc(id) {
			return nil, fmt.Errorf(
				"Line %d has invalid event id %g: ids must be integers in "+
					"the range [0, %d).", i, id, rows,
			)
		}
		event := int(id)

		pdg := int(cols[PDGCol][i])
		pid := particles.Find(pdg)
		if pid == phys.NoParticle {
			return nil, fmt.Errorf("Line %d has unknown PDG code %d.", i, pdg)
		}

		for len(events) <= event { events = append(events, nil) }
		events[event] = append(events[event], track.Primary{
			Particle: pid,
			Energy:   cols[EnergyCol][i],
			Position: mgl64.Vec3{cols[XCol][i], cols[YCol][i], cols[ZCol][i]},
			Direction: mgl64.Vec3{
				cols[DxCol][i], cols[DyCol][i], cols[DzCol][i],
			},
			Weight: 1,
			Event:  track.EventId(event),
		})
	}

	return events, nil
}
