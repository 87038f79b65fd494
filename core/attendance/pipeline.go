package attendance

import (
	"time"

	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core"
)

type Verdict string

const (
	Admitted                  Verdict = "admitted"
	DeniedOutsideGeofence     Verdict = "denied_outside_geofence"
	DeniedInvalidToken        Verdict = "denied_invalid_token"
	DeniedLocationUnavailable Verdict = "denied_location_unavailable"
)

// Decision is the outcome of one scan attempt.
type Decision struct {
	Verdict        Verdict  `json:"decision"`
	Reason         string   `json:"reason,omitempty"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"` // set once a location was evaluated
	Token          *Token   `json:"-"`                         // set when Admitted or replayed
	Err            error    `json:"-"`
}

func (d Decision) Admitted() bool { return d.Verdict == Admitted }

// Location is what the client reported: a coordinate, or the reason none could be obtained.
type Location struct {
	coord     GeoCoordinate
	available bool
	reason    string
}

func LocationAt(c GeoCoordinate) Location {
	return Location{coord: c, available: true}
}

func LocationUnavailable(reason string) Location {
	if reason == "" {
		reason = "location unavailable"
	}
	return Location{reason: reason}
}

// Coordinate returns the reported coordinate. An out-of-range reading counts as unavailable.
func (l Location) Coordinate() (GeoCoordinate, bool) {
	if !l.available || !l.coord.Valid() {
		return GeoCoordinate{}, false
	}
	return l.coord, true
}

func (l Location) Reason() string {
	if l.available && !l.coord.Valid() {
		return "invalid coordinate"
	}
	return l.reason
}

// EvaluateScan turns a scanned payload and a reported location into a Decision.
// Location is checked first: enabling location is the most actionable fix for the user.
func EvaluateScan(codec *Codec, payload string, loc Location, cfg GeofenceConfig) Decision {
	coord, ok := loc.Coordinate()
	if !ok {
		return Decision{Verdict: DeniedLocationUnavailable, Reason: loc.Reason()}
	}

	tok, err := codec.Decode(payload)
	if err != nil {
		return Decision{Verdict: DeniedInvalidToken, Reason: "invalid QR code", Err: err}
	}

	dist := Distance(coord, cfg.ReferencePoint)
	if !(dist <= cfg.AllowedRadiusMeters) {
		return Decision{Verdict: DeniedOutsideGeofence, Reason: "you must be on campus to mark attendance", DistanceMeters: &dist}
	}
	return Decision{Verdict: Admitted, DistanceMeters: &dist, Token: &tok}
}

// Pipeline bundles the process-wide pieces a scan is evaluated with.
type Pipeline struct {
	Codec  *Codec
	Fence  GeofenceConfig
	Policy StatusPolicy
	Guard  *ReplayGuard
}

// NewPipeline builds the pipeline from the configuration. It fails on an invalid fence.
func NewPipeline(conf core.AttendanceConfig) (*Pipeline, error) {
	fence, err := NewGeofenceConfig(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building geofence")
	}
	return &Pipeline{
		Codec:  NewCodec(conf.TokenSecret),
		Fence:  fence,
		Policy: StatusPolicy{ExtendActiveToEndOfDay: conf.ExtendActiveToEndOfDay},
		Guard:  NewReplayGuard(conf.TokenTTL),
	}, nil
}

// Evaluate runs EvaluateScan, then the replay guard on an admitted token.
// A replayed decision keeps its Token so the caller can tell a duplicate apart.
// Commit must be called once the admitted scan is saved.
func (p *Pipeline) Evaluate(payload string, loc Location, studentID string, now time.Time) Decision {
	d := EvaluateScan(p.Codec, payload, loc, p.Fence)
	if !d.Admitted() {
		return d
	}
	if err := p.Guard.Check(*d.Token, studentID, now); err != nil {
		return Decision{Verdict: DeniedInvalidToken, Reason: err.Error(), DistanceMeters: d.DistanceMeters, Token: d.Token, Err: err}
	}
	return d
}

// Commit consumes the token of an admitted decision for studentID.
func (p *Pipeline) Commit(d Decision, studentID string, now time.Time) {
	if d.Admitted() {
		p.Guard.Commit(*d.Token, studentID, now)
	}
}
