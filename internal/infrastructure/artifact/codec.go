// Package artifact reads and writes serialized risk models.
//
// Layout: a 16-byte header (magic, format version, feature schema version,
// feature schema fingerprint; big endian) followed by a zstd stream holding
// the gob-encoded forest.
package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"risk_service/internal/domain/model"
	"risk_service/internal/ml/forest"
)

// FormatVersion is bumped whenever the payload encoding changes.
const FormatVersion uint16 = 1

var magic = [4]byte{'R', 'S', 'K', 'F'}

var (
	// ErrCorrupt covers unreadable bytes: wrong magic, truncation, bad payload.
	ErrCorrupt = errors.New("artifact corrupt")
	// ErrOutdated means the artifact is well formed but was written for a
	// different format or feature schema.
	ErrOutdated = errors.New("artifact outdated")
)

type header struct {
	Magic         [4]byte
	FormatVersion uint16
	SchemaVersion uint16
	Fingerprint   uint64
}

// Encode writes f in artifact format for the given schema.
func Encode(w io.Writer, f *forest.Forest, schema model.FeatureSchema) error {
	if f.Features != schema.Width() {
		return fmt.Errorf("forest has %d features, schema has %d", f.Features, schema.Width())
	}
	h := header{
		Magic:         magic,
		FormatVersion: FormatVersion,
		SchemaVersion: schema.Version,
		Fingerprint:   schema.Fingerprint(),
	}
	if err := binary.Write(w, binary.BigEndian, h); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(f); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode forest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush compressor: %w", err)
	}
	return nil
}

// Decode reads an artifact and checks it against schema. Errors wrap
// ErrCorrupt or ErrOutdated.
func Decode(r io.Reader, schema model.FeatureSchema) (*forest.Forest, error) {
	var h header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, h.Magic[:])
	}
	if h.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrOutdated, h.FormatVersion, FormatVersion)
	}
	if err := schema.Check(h.SchemaVersion, h.Fingerprint); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutdated, err)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	var f forest.Forest
	if err := gob.NewDecoder(zr).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrCorrupt, err)
	}
	if err := f.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if f.Features != schema.Width() {
		return nil, fmt.Errorf("%w: forest has %d features, schema has %d", ErrOutdated, f.Features, schema.Width())
	}
	return &f, nil
}

// Marshal is Encode into a byte slice.
func Marshal(f *forest.Forest, schema model.FeatureSchema) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f, schema); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
