package main

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/describe"
	"github.com/1F47E/quadcursor/pkg/host"
	"github.com/1F47E/quadcursor/pkg/quadrant"
	"github.com/1F47E/quadcursor/pkg/session"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

var (
	benchQueries int
	benchWorkers int
	benchSeed    int64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark cursor aggregations against the feature source",
	Long: `Place the cursor at random points inside the data extent and run the full
query, clip, merge and describe pass for each, using a pool of workers.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchQueries, "queries", "q", 1000, "Number of cursor positions")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", time.Now().UnixNano(), "Random seed")
}

type benchResult struct {
	Queries       int64
	Labelled      int64
	Features      int64
	Errors        int64
	Total         time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	QueriesPerSec float64
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
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

	fmt.Printf("Running %d cursor aggregations using %d workers...\n", benchQueries, benchWorkers)
	res, err := benchmark(ctx, src.provider, cfg.Cursor, src.extent, benchQueries, benchWorkers, benchSeed)
	if err != nil {
		return err
	}

	fmt.Println(render(titleStyle, "Benchmark Results"))
	fmt.Printf("Total queries: %d\n", res.Queries)
	fmt.Printf("Total time: %v\n", res.Total)
	fmt.Printf("Queries per second: %.0f\n", res.QueriesPerSec)
	if res.Queries > 0 {
		fmt.Printf("Average query time: %v\n", res.Total/time.Duration(res.Queries))
		fmt.Printf("Min / max: %v / %v\n", res.MinDuration, res.MaxDuration)
		fmt.Printf("Average features per cursor: %.1f\n", float64(res.Features)/float64(res.Queries))
	}
	fmt.Printf("Non-empty labels: %d\n", res.Labelled)
	if res.Errors > 0 {
		fmt.Println(render(errorStyle, fmt.Sprintf("Errors: %d", res.Errors)))
	}
	return nil
}

// benchmark runs n aggregations spread over workers goroutines
func benchmark(ctx context.Context, provider session.FeatureProvider, opts cursor.Options, extent orb.Bound, n, workers int, seed int64) (benchResult, error) {
	if workers < 1 {
		workers = 1
	}
	if _, err := cursor.New(opts); err != nil {
		return benchResult{}, err
	}

	var (
		res      benchResult
		queries  atomic.Int64
		labelled atomic.Int64
		features atomic.Int64
		errCount atomic.Int64
		mu       sync.Mutex
	)
	res.MinDuration = time.Hour

	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(w)))
			c, _ := cursor.New(opts)

			for range jobs {
				center := orb.Point{
					extent.Min.Lon() + r.Float64()*(extent.Max.Lon()-extent.Min.Lon()),
					extent.Min.Lat() + r.Float64()*(extent.Max.Lat()-extent.Min.Lat()),
				}
				c.SetCenter(host.NewSimView(1, 1, center, 15))

				t0 := time.Now()
				found, err := provider.QueryFeatures(ctx, c.Bound())
				if err != nil {
					errCount.Add(1)
					continue
				}
				sets, _ := quadrant.Aggregate(found, c.Quadrants())
				label := describe.Label(sets)
				d := time.Since(t0)

				queries.Add(1)
				features.Add(int64(len(found)))
				if label != "" {
					labelled.Add(1)
				}
				mu.Lock()
				if d < res.MinDuration {
					res.MinDuration = d
				}
				if d > res.MaxDuration {
					res.MaxDuration = d
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	res.Total = time.Since(start)
	res.Queries = queries.Load()
	res.Labelled = labelled.Load()
	res.Features = features.Load()
	res.Errors = errCount.Load()
	if res.Queries == 0 {
		res.MinDuration = 0
	}
	if secs := res.Total.Seconds(); secs > 0 {
		res.QueriesPerSec = float64(res.Queries) / secs
	}
	return res, nil
}
