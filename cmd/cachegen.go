package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aerosolar/solar-cli/internal/footprint"
	"github.com/aerosolar/solar-cli/internal/resolver"
)

var cachegenWorkers int

var cachegenCmd = &cobra.Command{
	Use:   "cachegen [airport codes...]",
	Short: "Precompute per-airport building caches",
	Long:  "Merges and deduplicates footprints for each airport at the widest supported radius and writes the result to the disk cache, so serving only re-filters.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, err := initEngine()
		if err != nil {
			return err
		}
		if cfg.Data.DiskCacheDir == "" {
			return eris.New("cachegen: data.disk_cache_dir is not configured")
		}

		airports := eng.registry.All()
		if len(args) > 0 {
			airports = airports[:0]
			for _, code := range args {
				ap, ok := eng.registry.Get(code)
				if !ok {
					return eris.Errorf("cachegen: unknown airport %q", code)
				}
				airports = append(airports, ap)
			}
		}

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(cachegenWorkers)
		for _, ap := range airports {
			g.Go(func() error {
				primary, secondary, err := eng.source.Load(ctx, ap.State)
				if err != nil {
					return eris.Wrapf(err, "cachegen: %s", ap.Code)
				}
				if len(primary) == 0 && len(secondary) == 0 {
					zap.L().Warn("cachegen: no footprint data", zap.String("airport", ap.Code), zap.String("state", ap.State))
					return nil
				}

				merged := footprint.Merge(primary, secondary, ap.Coord(), resolver.MaxRadiusKM)
				if err := eng.disk.Write(ap.Code, merged); err != nil {
					return err
				}
				zap.L().Info("cachegen: airport cached",
					zap.String("airport", ap.Code),
					zap.Int("buildings", len(merged)))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("cached %d airports in %s\n", len(airports), cfg.Data.DiskCacheDir)
		return nil
	},
}

func init() {
	cachegenCmd.Flags().IntVar(&cachegenWorkers, "workers", 4, "concurrent airports")
	rootCmd.AddCommand(cachegenCmd)
}
