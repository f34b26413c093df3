package model

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// FeatureSchemaVersion changes whenever the ordered field list below changes.
const FeatureSchemaVersion uint16 = 1

const (
	FeatureLatitude  = "latitude"
	FeatureLongitude = "longitude"
	FeatureIsNight   = "is_night"
)

// FeatureSchema is the single definition of the model input layout shared by
// training and inference.
type FeatureSchema struct {
	Version uint16
	Fields  []string
}

// Features is the schema every trainer and scorer in this module uses.
var Features = FeatureSchema{
	Version: FeatureSchemaVersion,
	Fields:  []string{FeatureLatitude, FeatureLongitude, FeatureIsNight},
}

// FeatureVector is a model input laid out in FeatureSchema order.
type FeatureVector []float64

// Width returns the number of features.
func (s FeatureSchema) Width() int {
	return len(s.Fields)
}

// Vector encodes a point and night flag in schema order.
func (s FeatureSchema) Vector(lat, lon float64, isNight bool) FeatureVector {
	night := 0.0
	if isNight {
		night = 1
	}
	values := map[string]float64{
		FeatureLatitude:  lat,
		FeatureLongitude: lon,
		FeatureIsNight:   night,
	}
	v := make(FeatureVector, len(s.Fields))
	for i, f := range s.Fields {
		v[i] = values[f]
	}
	return v
}

// RecordVector encodes an incident record's inputs.
func (s FeatureSchema) RecordVector(r IncidentRecord) FeatureVector {
	return s.Vector(r.Latitude, r.Longitude, r.IsNight)
}

// Fingerprint identifies the ordered field list; stored in artifacts so a
// reordered schema is detected at load time.
func (s FeatureSchema) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(s.Fields, ",")))
	return h.Sum64()
}

// Check verifies an artifact's recorded schema against s.
func (s FeatureSchema) Check(version uint16, fingerprint uint64) error {
	if version != s.Version {
		return fmt.Errorf("feature schema version %d, want %d", version, s.Version)
	}
	if fingerprint != s.Fingerprint() {
		return fmt.Errorf("feature schema fingerprint %x does not match %x", fingerprint, s.Fingerprint())
	}
	return nil
}
