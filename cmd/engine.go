package main

import (
	"go.uber.org/zap"

	"github.com/aerosolar/solar-cli/internal/airport"
	"github.com/aerosolar/solar-cli/internal/footprint"
	"github.com/aerosolar/solar-cli/internal/resolver"
	"github.com/aerosolar/solar-cli/internal/solar"
)

// engine wires the shared pieces every command needs: the airport
// registry, regional constants, footprint sources, and the cached
// resolver on top of them.
type engine struct {
	registry *airport.Registry
	regions  solar.Regions
	source   *footprint.DirSource
	resolver *resolver.Resolver
	cache    *resolver.Cache
	disk     *footprint.DiskCache
}

func initEngine() (*engine, error) {
	reg, err := airport.LoadCSV(cfg.Data.AirportsCSV)
	if err != nil {
		return nil, err
	}

	regions, err := solar.LoadRegions(cfg.Data.RegionsFile)
	if err != nil {
		return nil, err
	}

	disk := footprint.NewDiskCache(cfg.Data.DiskCacheDir)
	source := footprint.NewDirSource(cfg.Data.Dir)
	res := resolver.New(reg, source, disk, regions)

	zap.L().Info("engine initialized",
		zap.Int("airports", reg.Len()),
		zap.String("data_dir", cfg.Data.Dir))

	return &engine{
		registry: reg,
		regions:  regions,
		source:   source,
		resolver: res,
		cache:    resolver.NewCache(res, cfg.Cache.Capacity, cfg.Cache.TTL()),
		disk:     disk,
	}, nil
}

// defaultQuery seeds a query from the configured defaults. The airport
// code is filled in per request.
func defaultQuery() resolver.Query {
	return resolver.Query{
		RadiusKM:          cfg.Query.RadiusKM,
		MinBuildingAreaM2: cfg.Query.MinBuildingAreaM2,
		Params:            cfg.Solar.Params(),
	}
}
