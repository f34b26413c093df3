package core

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"risk_service/internal/domain/model"
)

// Random streams used by the generator. Each field draws from its own
// stream so adding a field never shifts the values of the others.
const (
	streamLatitude  = "latitude"
	streamLongitude = "longitude"
	streamNight     = "is_night"
	streamBaseline  = "baseline"
)

// GeneratorConfig shapes the synthetic corpus.
type GeneratorConfig struct {
	Bounds           model.Bounds `yaml:"bounds"`
	Hotspot          model.Point  `yaml:"hotspot"`
	NightProbability float64      `yaml:"night_probability"`
	BaselineMean     float64      `yaml:"baseline_mean"`
	BaselineStdDev   float64      `yaml:"baseline_stddev"`
	ProximityPeak    float64      `yaml:"proximity_peak"`
	ProximityDecay   float64      `yaml:"proximity_decay"` // score lost per degree from the hotspot
	NightPenalty     float64      `yaml:"night_penalty"`
}

// DefaultGeneratorConfig covers Nairobi with the CBD as hotspot.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Bounds:           model.Bounds{MinLat: -1.35, MinLon: 36.70, MaxLat: -1.20, MaxLon: 36.95},
		Hotspot:          model.Point{Lat: -1.282, Lon: 36.821},
		NightProbability: 0.4,
		BaselineMean:     30,
		BaselineStdDev:   10,
		ProximityPeak:    50,
		ProximityDecay:   500,
		NightPenalty:     20,
	}
}

func (c GeneratorConfig) Validate() error {
	if !c.Bounds.Valid() {
		return fmt.Errorf("generator bounds %+v are empty", c.Bounds)
	}
	if c.NightProbability < 0 || c.NightProbability > 1 {
		return fmt.Errorf("night_probability %v outside [0,1]", c.NightProbability)
	}
	if c.BaselineStdDev < 0 {
		return fmt.Errorf("baseline_stddev %v is negative", c.BaselineStdDev)
	}
	if c.ProximityPeak < 0 || c.ProximityDecay < 0 || c.NightPenalty < 0 {
		return fmt.Errorf("proximity_peak, proximity_decay and night_penalty must not be negative")
	}
	return nil
}

// Generator manufactures labeled incident records.
type Generator struct {
	cfg GeneratorConfig
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	return &Generator{cfg: cfg}, nil
}

// Generate returns n records using the default configuration.
func Generate(n int, seed int64) []model.IncidentRecord {
	g := &Generator{cfg: DefaultGeneratorConfig()}
	return g.Generate(n, seed)
}

// Generate returns n records. The output is a pure function of n, seed and
// the configuration.
func (g *Generator) Generate(n int, seed int64) []model.IncidentRecord {
	if n <= 0 {
		return []model.IncidentRecord{}
	}
	c := g.cfg

	lat := distuv.Uniform{Min: c.Bounds.MinLat, Max: c.Bounds.MaxLat, Src: stream(seed, streamLatitude)}
	lon := distuv.Uniform{Min: c.Bounds.MinLon, Max: c.Bounds.MaxLon, Src: stream(seed, streamLongitude)}
	night := distuv.Bernoulli{P: c.NightProbability, Src: stream(seed, streamNight)}
	baseline := distuv.Normal{Mu: c.BaselineMean, Sigma: c.BaselineStdDev, Src: stream(seed, streamBaseline)}

	records := make([]model.IncidentRecord, n)
	for i := range records {
		p := model.Point{Lat: lat.Rand(), Lon: lon.Rand()}
		isNight := night.Rand() == 1
		records[i] = model.IncidentRecord{
			Latitude:  p.Lat,
			Longitude: p.Lon,
			IsNight:   isNight,
			RiskScore: model.ClampScore(baseline.Rand() + g.Contribution(p, isNight)),
		}
	}
	return records
}

// Contribution is the deterministic part of a label: the proximity bonus
// plus the night penalty. Two points at the same hotspot distance with the
// same night flag get the same contribution.
func (g *Generator) Contribution(p model.Point, isNight bool) float64 {
	v := proximityBonus(degreeDistance(p, g.cfg.Hotspot), g.cfg.ProximityPeak, g.cfg.ProximityDecay)
	if isNight {
		v += g.cfg.NightPenalty
	}
	return v
}

// stream derives an independent source for one field from the master seed.
func stream(seed int64, name string) rand.Source {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.NewPCG(uint64(seed), h.Sum64())
}

// CorpusSummary describes a generated corpus for operator logs.
type CorpusSummary struct {
	Records       int
	NightShare    float64
	MeanScore     float64
	MeanHotspotKm float64
	HighRisk      int // records labeled above 70
}

// Summarize computes a CorpusSummary relative to hotspot.
func Summarize(records []model.IncidentRecord, hotspot model.Point) CorpusSummary {
	s := CorpusSummary{Records: len(records)}
	if len(records) == 0 {
		return s
	}
	var nights int
	for _, r := range records {
		if r.IsNight {
			nights++
		}
		if r.RiskScore > 70 {
			s.HighRisk++
		}
		s.MeanScore += r.RiskScore
		s.MeanHotspotKm += haversine(model.Point{Lat: r.Latitude, Lon: r.Longitude}, hotspot)
	}
	n := float64(len(records))
	s.NightShare = float64(nights) / n
	s.MeanScore /= n
	s.MeanHotspotKm /= n
	return s
}
