package repository

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk_service/internal/domain/model"
)

func TestCorpusCSV_RoundTrip(t *testing.T) {
	records := sampleRecords(50)

	var buf bytes.Buffer
	require.NoError(t, WriteCorpusCSV(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), "latitude,longitude,is_night,risk_score\n"))

	got, err := ReadCorpusCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestReadCorpusCSV_ClampsLabels(t *testing.T) {
	in := "latitude,longitude,is_night,risk_score\n-1.28,36.82,1,140\n-1.30,36.80,0,-3\n"

	got, err := ReadCorpusCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, float64(model.MaxRiskScore), got[0].RiskScore)
	assert.True(t, got[0].IsNight)
	assert.Equal(t, float64(model.MinRiskScore), got[1].RiskScore)
}

func TestReadCorpusCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"wrong header", "lat,lng,night,score\n"},
		{"bad night flag", "latitude,longitude,is_night,risk_score\n-1.2,36.8,yes,10\n"},
		{"bad number", "latitude,longitude,is_night,risk_score\n-1.2,east,0,10\n"},
		{"short row", "latitude,longitude,is_night,risk_score\n-1.2,36.8,0\n"},
		{"nan score", "latitude,longitude,is_night,risk_score\n-1.2,36.8,0,NaN\n"},
		{"infinite latitude", "latitude,longitude,is_night,risk_score\nInf,36.8,0,10\n"},
		{"negative infinite longitude", "latitude,longitude,is_night,risk_score\n-1.2,-Inf,1,10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCorpusCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}
