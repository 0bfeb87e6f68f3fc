/*
Copyright © 2026 the LandEvo authors.
This file is part of LandEvo.

LandEvo is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LandEvo is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LandEvo.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package landevo is a framework for simulating the evolution of
// topography over geologic time. A simulation is organized as a
// raster model grid holding named per-node scalar fields, plus a
// stack of manipulator functions that are run once per time step.
package landevo

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"
)

// Version gives the version number of this version of LandEvo.
const Version = "1.0.0"

// DomainManipulator is a class of functions that operate on the entire
// model domain once per invocation.
type DomainManipulator func(d *Model) error

// NodeManipulator is a class of functions that operate on a single
// grid node. Implementations must only write to entries belonging to
// the node they are given.
type NodeManipulator func(g *RasterGrid, node int, Dt float64)

// Model holds a simulation domain and the functions that advance it.
//
// InitFuncs are run once by Init, RunFuncs are run once per time step
// by Run until Done is set, and CleanupFuncs are run once by Cleanup.
type Model struct {
	InitFuncs    []DomainManipulator
	RunFuncs     []DomainManipulator
	CleanupFuncs []DomainManipulator

	// Grid is the simulation domain.
	Grid *RasterGrid

	// Dt is the duration of each time step [model time units].
	Dt float64

	// Time is the elapsed model time.
	Time float64

	// Done specifies whether the simulation is finished.
	Done bool
}

// Init initializes the model by running InitFuncs.
func (d *Model) Init() error {
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Run repeatedly runs RunFuncs until Done is true.
func (d *Model) Run() error {
	for !d.Done {
		for _, f := range d.RunFuncs {
			if err := f(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup runs CleanupFuncs.
func (d *Model) Cleanup() error {
	for _, f := range d.CleanupFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Calculations returns a function that concurrently runs a series of
// calculations on all grid nodes. Because each calculator may only
// write to its own node, the shards do not need to be synchronized
// beyond the final wait.
func Calculations(calculators ...NodeManipulator) DomainManipulator {
	nprocs := runtime.GOMAXPROCS(0)
	return func(d *Model) error {
		var wg sync.WaitGroup
		wg.Add(nprocs)
		n := d.Grid.NumNodes()
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				for i := pp; i < n; i += nprocs {
					for _, f := range calculators {
						f(d.Grid, i, d.Dt)
					}
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		return nil
	}
}

// AdvanceTime returns a function that increments the model clock by Dt
// and finishes the simulation once runDuration has elapsed. It should
// run after the process manipulators in RunFuncs, so that they observe
// the time at the beginning of the current step; output manipulators
// placed after it observe the end-of-step time and the Done flag.
func AdvanceTime(runDuration float64) DomainManipulator {
	return func(d *Model) error {
		d.Time += d.Dt
		if d.Time >= runDuration {
			d.Done = true
		}
		return nil
	}
}

// RunPeriodically returns a function that runs f every interval of
// model time, and also on the final step of the simulation.
func RunPeriodically(interval float64, f DomainManipulator) DomainManipulator {
	timeSinceLastRun := 0.
	return func(d *Model) error {
		timeSinceLastRun += d.Dt
		if timeSinceLastRun >= interval || d.Done {
			timeSinceLastRun = 0
			return f(d)
		}
		return nil
	}
}

// Log writes simulation status messages to w.
func Log(w io.Writer) DomainManipulator {
	startTime := time.Now()
	timeStepTime := time.Now()
	iteration := 0
	return func(d *Model) error {
		iteration++
		fmt.Fprintf(w, "Iteration %-4d  walltime=%6.3gh  Δwalltime=%4.2gs  "+
			"timestep=%-6.3g  modeltime=%.4g\n",
			iteration, time.Since(startTime).Hours(),
			time.Since(timeStepTime).Seconds(), d.Dt, d.Time)
		timeStepTime = time.Now()
		return nil
	}
}
