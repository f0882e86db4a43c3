package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aerosolar/solar-cli/internal/resolver"
)

var (
	analyzeRadius    float64
	analyzeMinSize   float64
	analyzeUsablePct float64
	analyzePanelEff  float64
	analyzePrice     float64
	analyzeNoITC     bool
	analyzeJSON      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [airport codes...]",
	Short: "Analyze rooftop solar potential for airports",
	Long:  "Resolves buildings around the given airports (or every registered airport) and prints a summary ranked by annual generation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, err := initEngine()
		if err != nil {
			return err
		}

		q := defaultQuery()
		q.RadiusKM = analyzeRadius
		q.MinBuildingAreaM2 = analyzeMinSize
		q.Params.UsableFraction = analyzeUsablePct
		q.Params.PanelEfficiencyWM2 = analyzePanelEff
		q.Params.ElectricityPriceUSDKWh = analyzePrice
		q.Params.IncludeITC = !analyzeNoITC

		codes := args
		if len(codes) == 0 {
			for _, ap := range eng.registry.All() {
				codes = append(codes, ap.Code)
			}
		}
		if len(codes) == 0 {
			return eris.New("no airports registered")
		}

		entries := make([]resolver.CompareEntry, 0, len(codes))
		for start := 0; start < len(codes); start += resolver.CompareMaxAirports {
			end := min(start+resolver.CompareMaxAirports, len(codes))
			batch, err := resolver.Compare(ctx, eng.cache, codes[start:end], q)
			if err != nil {
				return err
			}
			entries = append(entries, batch...)
		}

		sort.SliceStable(entries, func(i, j int) bool {
			ti, tj := entries[i].Totals, entries[j].Totals
			if ti == nil || tj == nil {
				return tj == nil && ti != nil
			}
			return ti.AnnualMWh > tj.AnnualMWh
		})

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		printSummary(os.Stdout, entries)
		return nil
	},
}

func printSummary(out io.Writer, entries []resolver.CompareEntry) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "CODE\tSTATE\tBUILDINGS\tCAPACITY MW\tANNUAL MWH\tREVENUE $/YR\tPAYBACK YR\tNPV 25YR $")
	for _, e := range entries {
		if e.Error != "" {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t%s\n", e.Code, e.Error)
			continue
		}
		t := e.Totals.Rounded()
		p.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.0f\t%.0f\t%.1f\t%.0f\n",
			e.Code, e.State, e.Buildings,
			t.CapacityMW, t.AnnualMWh, t.AnnualRevenue, t.PaybackYears, t.NPV25Yr)
	}
	w.Flush()
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzeRadius, "radius", resolver.DefaultRadiusKM, "search radius in km")
	analyzeCmd.Flags().Float64Var(&analyzeMinSize, "min-size", resolver.DefaultMinBuildingAreaM2, "minimum building area in m2")
	analyzeCmd.Flags().Float64Var(&analyzeUsablePct, "usable-pct", 0.65, "usable roof fraction")
	analyzeCmd.Flags().Float64Var(&analyzePanelEff, "panel-eff", 200, "panel efficiency in W/m2")
	analyzeCmd.Flags().Float64Var(&analyzePrice, "elec-price", 0.12, "electricity price in $/kWh")
	analyzeCmd.Flags().BoolVar(&analyzeNoITC, "no-itc", false, "exclude the federal investment tax credit")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(analyzeCmd)
}
