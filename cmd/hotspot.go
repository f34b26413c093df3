package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"risk_service/internal/domain/model"
	"risk_service/internal/domain/repository"
)

func newHotspotCmd(opts *rootOptions) *cobra.Command {
	var bbox string
	cmd := &cobra.Command{
		Use:   "hotspot",
		Short: "Propose a generator hotspot from OpenStreetMap points of interest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bounds := opts.cfg.Generator.Bounds
			if bbox != "" {
				var err error
				if bounds, err = parseBBox(bbox); err != nil {
					return err
				}
			}

			repo := repository.NewOverpassRepository(opts.cfg.Overpass.URL, opts.cfg.Overpass.Timeout)
			hotspot, err := repo.LocateHotspot(cmd.Context(), bounds)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hotspot: {lat: %.5f, lon: %.5f}\n", hotspot.Center.Lat, hotspot.Center.Lon)
			fmt.Fprintf(out, "points of interest: %d\n", hotspot.POICount)
			kinds := make([]string, 0, len(hotspot.ByKind))
			for k := range hotspot.ByKind {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				fmt.Fprintf(out, "  %s: %d\n", k, hotspot.ByKind[k])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bbox, "bbox", "", "min_lat,min_lon,max_lat,max_lon (default: generator bounds)")
	return cmd
}

func parseBBox(s string) (model.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.Bounds{}, fmt.Errorf("invalid bbox format %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.Bounds{}, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		v[i] = f
	}
	b := model.Bounds{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
	if !b.Valid() {
		return model.Bounds{}, fmt.Errorf("bbox %q is empty or inverted", s)
	}
	return b, nil
}
