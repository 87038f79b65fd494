package main

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core/attendance"
)

func (cli *commandLine) checkGeofence(p attendance.GeoCoordinate) error {
	if !p.Valid() {
		return errors.Errorf("invalid coordinate %v, %v", p.Lat, p.Lon)
	}

	dist := attendance.Distance(p, cli.fence.ReferencePoint)
	verdict := "outside"
	if attendance.IsWithinFence(p, cli.fence) {
		verdict = "within"
	}
	fmt.Fprintf(cli.out, "%.1f m from campus: %s the %.0f m fence\n", dist, verdict, cli.fence.AllowedRadiusMeters)
	return nil
}
