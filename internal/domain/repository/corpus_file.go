package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"risk_service/internal/domain/model"
)

var corpusHeader = []string{"latitude", "longitude", "is_night", "risk_score"}

// WriteCorpusCSV writes records with a header row. is_night is 0 or 1 so the
// file matches the model's feature encoding.
func WriteCorpusCSV(w io.Writer, records []model.IncidentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(corpusHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, r := range records {
		night := "0"
		if r.IsNight {
			night = "1"
		}
		row := []string{
			strconv.FormatFloat(r.Latitude, 'g', -1, 64),
			strconv.FormatFloat(r.Longitude, 'g', -1, 64),
			night,
			strconv.FormatFloat(r.RiskScore, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCorpusCSV parses a file produced by WriteCorpusCSV. Labels are clamped
// to the valid score range on the way in.
func ReadCorpusCSV(r io.Reader) ([]model.IncidentRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(corpusHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i, col := range corpusHeader {
		if header[i] != col {
			return nil, fmt.Errorf("csv column %d is %q, want %q", i, header[i], col)
		}
	}

	var records []model.IncidentRecord
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv at row %d: %w", row, err)
		}
		rec, err := parseCorpusRow(fields)
		if err != nil {
			return nil, fmt.Errorf("invalid csv row %d: %w", row, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseCorpusRow(fields []string) (model.IncidentRecord, error) {
	lat, err := parseFinite("latitude", fields[0])
	if err != nil {
		return model.IncidentRecord{}, err
	}
	lon, err := parseFinite("longitude", fields[1])
	if err != nil {
		return model.IncidentRecord{}, err
	}
	var night bool
	switch fields[2] {
	case "0":
	case "1":
		night = true
	default:
		return model.IncidentRecord{}, fmt.Errorf("is_night must be 0 or 1, got %q", fields[2])
	}
	score, err := parseFinite("risk_score", fields[3])
	if err != nil {
		return model.IncidentRecord{}, err
	}
	return model.IncidentRecord{
		Latitude:  lat,
		Longitude: lon,
		IsNight:   night,
		RiskScore: model.ClampScore(score),
	}, nil
}

// parseFinite rejects NaN and infinities, which strconv accepts.
func parseFinite(column, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", column, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: non-finite value %q", column, s)
	}
	return v, nil
}
