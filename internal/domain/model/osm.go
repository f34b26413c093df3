package model

// OSMElement is a point of interest returned by Overpass, reduced to what
// hotspot discovery needs.
type OSMElement struct {
	ID   int64             `json:"id"`
	Type string            `json:"type"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// HotspotCandidate is the centroid of the POIs found in a bounding box.
type HotspotCandidate struct {
	Center   Point          `json:"center"`
	POICount int            `json:"poi_count"`
	ByKind   map[string]int `json:"by_kind"`
}
