package attendance

import (
	"math"

	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core"
)

// EarthRadiusMeters is the mean earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// GeoCoordinate is a position in decimal degrees.
type GeoCoordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c GeoCoordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// GeofenceConfig is the campus fence. It is built once at startup and only read afterwards.
type GeofenceConfig struct {
	ReferencePoint      GeoCoordinate `json:"reference_point"`
	AllowedRadiusMeters float64       `json:"allowed_radius_meters"`
}

func NewGeofenceConfig(conf core.AttendanceConfig) (GeofenceConfig, error) {
	cfg := GeofenceConfig{
		ReferencePoint:      GeoCoordinate{Lat: conf.GeofenceLat, Lon: conf.GeofenceLon},
		AllowedRadiusMeters: conf.GeofenceRadiusMeters,
	}
	return cfg, cfg.Validate()
}

func (cfg GeofenceConfig) Validate() error {
	if !cfg.ReferencePoint.Valid() {
		return errors.Errorf("invalid geofence reference point %v", cfg.ReferencePoint)
	}
	if !(cfg.AllowedRadiusMeters > 0) || math.IsInf(cfg.AllowedRadiusMeters, 1) {
		return errors.Errorf("invalid geofence radius %v", cfg.AllowedRadiusMeters)
	}
	return nil
}

// Distance returns the great-circle distance between a and b, in meters.
func Distance(a, b GeoCoordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding may push h slightly out of [0, 1]
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithinFence reports whether p lies inside the fence. The boundary is inside.
func IsWithinFence(p GeoCoordinate, cfg GeofenceConfig) bool {
	return Distance(p, cfg.ReferencePoint) <= cfg.AllowedRadiusMeters
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
