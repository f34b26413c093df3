package repository

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"risk_service/internal/domain/model"
)

// hotspotAmenities are the OSM amenity values treated as crowd or
// night-activity indicators when proposing a hotspot.
var hotspotAmenities = []string{"bar", "nightclub", "pub", "marketplace", "bus_station", "atm", "bank"}

// OverpassRepository proposes hotspot centres from OpenStreetMap.
type OverpassRepository struct {
	client  *overpass.Client
	timeout time.Duration
}

func NewOverpassRepository(endpoint string, timeout time.Duration) *OverpassRepository {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRepository{
		client:  &client,
		timeout: timeout,
	}
}

// GetHotspotPOIs returns amenity nodes and way centroids inside bounds.
func (r *OverpassRepository) GetHotspotPOIs(ctx context.Context, bounds model.Bounds) ([]model.OSMElement, error) {
	if !bounds.Valid() {
		return nil, fmt.Errorf("invalid bounding box %+v", bounds)
	}
	bbox := fmt.Sprintf("%f,%f,%f,%f", bounds.MinLat, bounds.MinLon, bounds.MaxLat, bounds.MaxLon)
	filter := amenityFilter()
	query := fmt.Sprintf(`
		[out:json];
		(
			node["amenity"~"%s"](%s);
			way["amenity"~"%s"](%s);
		);
		out body;
		>;
		out skel qt;
	`, filter, bbox, filter, bbox)

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute hotspot query: %w", err)
	}
	return convertToOSMElements(result), nil
}

// LocateHotspot returns the centroid of the hotspot POIs in bounds.
func (r *OverpassRepository) LocateHotspot(ctx context.Context, bounds model.Bounds) (*model.HotspotCandidate, error) {
	elements, err := r.GetHotspotPOIs(ctx, bounds)
	if err != nil {
		return nil, err
	}
	return Centroid(elements)
}

// Centroid averages the tagged elements. Untagged way members (the "skel"
// part of the query) are ignored.
func Centroid(elements []model.OSMElement) (*model.HotspotCandidate, error) {
	c := &model.HotspotCandidate{ByKind: make(map[string]int)}
	var lat, lon float64
	for _, el := range elements {
		kind, ok := el.Tags["amenity"]
		if !ok {
			continue
		}
		lat += el.Lat
		lon += el.Lon
		c.POICount++
		c.ByKind[kind]++
	}
	if c.POICount == 0 {
		return nil, fmt.Errorf("no hotspot points of interest found")
	}
	c.Center = model.Point{Lat: lat / float64(c.POICount), Lon: lon / float64(c.POICount)}
	return c, nil
}

// executeQuery runs the query on a goroutine so the caller's context can
// cut it short; the client itself has no context support.
func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := r.client.Query(query)
		done <- outcome{result, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query failed: %w", ctx.Err())
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", o.err)
		}
		return &o.result, nil
	}
}

func convertToOSMElements(result *overpass.Result) []model.OSMElement {
	var elements []model.OSMElement

	for _, node := range result.Nodes {
		elements = append(elements, model.OSMElement{
			ID:   node.ID,
			Type: string(overpass.ElementTypeNode),
			Lat:  node.Lat,
			Lon:  node.Lon,
			Tags: node.Tags,
		})
	}

	for _, way := range result.Ways {
		var lat, lon float64
		count := len(way.Nodes)
		if count > 0 {
			for _, node := range way.Nodes {
				lat += node.Lat
				lon += node.Lon
			}
			lat /= float64(count)
			lon /= float64(count)
		}
		elements = append(elements, model.OSMElement{
			ID:   way.ID,
			Type: string(overpass.ElementTypeWay),
			Lat:  lat,
			Lon:  lon,
			Tags: way.Tags,
		})
	}

	// Maps iterate randomly; keep output stable.
	sort.Slice(elements, func(i, j int) bool {
		if elements[i].Type != elements[j].Type {
			return elements[i].Type < elements[j].Type
		}
		return elements[i].ID < elements[j].ID
	})
	return elements
}

func amenityFilter() string {
	return strings.Join(hotspotAmenities, "|")
}
