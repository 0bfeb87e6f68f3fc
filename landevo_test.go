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

package landevo

import (
	"bytes"
	"errors"
	"testing"
)

func TestInitRunCleanupOrder(t *testing.T) {
	var events []string
	record := func(name string) DomainManipulator {
		return func(d *Model) error {
			events = append(events, name)
			return nil
		}
	}
	d := &Model{
		Grid:         NewRasterGrid(3, 3, 1),
		Dt:           1,
		InitFuncs:    []DomainManipulator{record("init")},
		RunFuncs:     []DomainManipulator{record("run"), AdvanceTime(2)},
		CleanupFuncs: []DomainManipulator{record("cleanup")},
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if err := d.Cleanup(); err != nil {
		t.Fatal(err)
	}
	want := []string{"init", "run", "run", "cleanup"}
	if len(events) != len(want) {
		t.Fatalf("events: got %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events: got %v, want %v", events, want)
		}
	}
	if d.Time != 2 {
		t.Errorf("final model time: got %g, want 2", d.Time)
	}
}

func TestRunStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	d := &Model{
		Dt: 1,
		RunFuncs: []DomainManipulator{
			func(d *Model) error { return boom },
			AdvanceTime(10),
		},
	}
	if err := d.Run(); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestCalculationsVisitsEveryNode(t *testing.T) {
	g := NewRasterGrid(7, 11, 1)
	z := g.AddZeros(TopographicElevation)
	d := &Model{Grid: g, Dt: 2}
	calc := Calculations(func(g *RasterGrid, node int, Dt float64) {
		z[node] += Dt
	})
	if err := calc(d); err != nil {
		t.Fatal(err)
	}
	for i, v := range z {
		if v != 2 {
			t.Fatalf("node %d visited incorrectly: %g", i, v)
		}
	}
}

func TestRunPeriodically(t *testing.T) {
	runs := 0
	d := &Model{Dt: 1}
	d.RunFuncs = []DomainManipulator{
		AdvanceTime(5),
		RunPeriodically(2, func(d *Model) error {
			runs++
			return nil
		}),
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	// Fires at t=2 and t=4, plus the final step at t=5.
	if runs != 3 {
		t.Errorf("periodic runs: got %d, want 3", runs)
	}
}

func TestLogWritesStatus(t *testing.T) {
	var buf bytes.Buffer
	d := &Model{Dt: 1}
	d.RunFuncs = []DomainManipulator{Log(&buf), AdvanceTime(3)}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("no log output written")
	}
	if n := bytes.Count(buf.Bytes(), []byte("\n")); n != 3 {
		t.Errorf("log lines: got %d, want 3", n)
	}
}
