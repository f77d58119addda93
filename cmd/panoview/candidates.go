package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/lookaround-map/viewer/internal/config"
	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/internal/navigation"
	"github.com/lookaround-map/viewer/pkg/core"
)

var candidatesOpts struct {
	asJSON bool
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates <lon,lat>",
	Short: "Print the navigable neighbors of the panorama closest to a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := geo.LocationFromString(args[0])
		if err != nil {
			return fmt.Errorf("%q: %w", args[0], err)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runCandidates(ctx, loc)
	},
}

func init() {
	candidatesCmd.Flags().BoolVar(&candidatesOpts.asJSON, "json", false, "print JSON")
}

type candidateRow struct {
	ID       string  `json:"panoid"`
	Date     string  `json:"date"`
	Coverage string  `json:"coverageType"`
	Yaw      float64 `json:"yawDeg"`
	Pitch    float64 `json:"pitchDeg"`
	Distance float64 `json:"distance"`
	Scale    float64 `json:"scale"`
}

func runCandidates(ctx context.Context, loc geo.Location) error {
	rt, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	logger := rt.Logger

	source, _, closeSource, err := openSource(ctx, logger, rt.SlogManager)
	if err != nil {
		return err
	}
	defer closeSource()

	panos, err := source.Closest(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return err
	}
	if len(panos) == 0 {
		return core.ErrNotFound
	}
	ref := panos[0]

	neighbors, err := source.Neighbors(ctx, ref.Lat, ref.Lon)
	if err != nil {
		return err
	}

	resolver, err := navigation.New(config.GetViewerConfig().Navigation, nil, nil, nil,
		navigation.WithLogger(logger))
	if err != nil {
		return err
	}
	found := resolver.UpdateCandidates(ref, neighbors)

	rows := make([]candidateRow, len(found))
	for i, c := range found {
		rows[i] = candidateRow{
			ID:       c.Panorama.ID,
			Date:     c.Panorama.Date.Format("2006-01-02"),
			Coverage: c.Panorama.CoverageType.String(),
			Yaw:      c.Position.Yaw * 180 / math.Pi,
			Pitch:    c.Position.Pitch * 180 / math.Pi,
			Distance: c.Position.Distance,
			Scale:    c.Scale,
		}
	}

	if candidatesOpts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Panorama   string         `json:"panoid"`
			Candidates []candidateRow `json:"candidates"`
		}{ref.ID, rows})
	}

	fmt.Printf("Panorama %s (%s, %s)\n\n", ref.ID, ref.Date.Format("2006-01-02"), ref.CoverageType)
	fmt.Printf("%-24s | %-10s | %-8s | %8s | %8s | %8s | %5s\n",
		"Panorama", "Date", "Coverage", "Yaw", "Pitch", "Distance", "Scale")
	for _, r := range rows {
		fmt.Printf("%-24s | %-10s | %-8s | %8.1f | %8.1f | %8.1f | %5.2f\n",
			r.ID, r.Date, r.Coverage, r.Yaw, r.Pitch, r.Distance, r.Scale)
	}
	return nil
}
