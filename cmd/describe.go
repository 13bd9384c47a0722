package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/pkg/session"
	"github.com/spf13/cobra"
)

var (
	describeLon  float64
	describeLat  float64
	describeKeys string
	describeJSON bool
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Announce the features under the cursor at one location",
	Long: `Run a headless session at a location, optionally replay a key script
("i,^l,!-": north, nudge east, jump zoom out) and print every announcement.`,
	RunE: runDescribe,
}

func init() {
	describeCmd.Flags().Float64Var(&describeLon, "lon", 0, "Cursor center longitude (default: center of the data)")
	describeCmd.Flags().Float64Var(&describeLat, "lat", 0, "Cursor center latitude (default: center of the data)")
	describeCmd.Flags().StringVarP(&describeKeys, "keys", "k", "", "Comma separated key script")
	describeCmd.Flags().BoolVar(&describeJSON, "json", false, "Print the final snapshot as JSON")
}

// describeResult is the JSON shape shared with the HTTP surface
type describeResult struct {
	session.Snapshot
	Commands []string `json:"commands"`
	Labels   []string `json:"labels"`
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	keys, err := parseKeys(describeKeys)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	src, err := openSource(ctx, sourceTarget, cfg)
	if err != nil {
		return err
	}
	defer src.close()

	lookup, closePOI, err := buildPOI(cfg)
	if err != nil {
		return err
	}
	defer closePOI()

	explicit := cmd.Flags().Changed("lon") || cmd.Flags().Changed("lat")
	center := startCenter(describeLon, describeLat, explicit, src.extent)

	d, err := newDriver(cfg, src.provider, lookup, center, logger.L())
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.start(); err != nil {
		return err
	}
	for _, ev := range keys {
		if err := d.press(ev); err != nil {
			return err
		}
	}

	res := describeResult{
		Snapshot: d.session.Snapshot(),
		Commands: d.out.Commands(),
		Labels:   d.out.Labels(),
	}
	if describeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(res)
	return nil
}

func printResult(res describeResult) {
	fmt.Println(render(titleStyle, fmt.Sprintf("cursor %.4f, %.4f", res.Center.Lon, res.Center.Lat)))
	for _, c := range res.Commands {
		fmt.Println(render(commandStyle, "> "+c))
	}
	for _, l := range res.Labels {
		if l == "" {
			fmt.Println(render(dimStyle, "(nothing here)"))
			continue
		}
		fmt.Println(render(labelStyle, l))
	}
	if res.Title != "" && res.Title != res.Label {
		fmt.Println(render(dimStyle, res.Title))
	}
	for _, q := range res.Quadrants {
		fmt.Println(render(dimStyle, fmt.Sprintf("  %-9s %d features", q.Direction, len(q.Features))))
	}
}
