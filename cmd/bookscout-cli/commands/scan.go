package commands

import (
	"log/slog"
	"time"

	"bookscout/lib/serviceutil"
	"bookscout/services/recommender"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Reads the configured lists and shelves and prints filtered, sorted book tables.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if len(cfg.Scans) == 0 {
			serviceutil.Fatal("no scans configured", errMissingConfig)
		}

		sources := make([]recommender.ScanSources, 0, len(cfg.Scans))
		for _, scan := range cfg.Scans {
			s := recommender.ScanSources{
				Name:      scan.Name,
				Lists:     scan.Lists,
				Shelves:   scan.Shelves,
				Books:     scan.Books,
				ListPages: scan.ListPages,
			}
			// config problems surface before the first request
			if err := s.Validate(); err != nil {
				serviceutil.Fatal("invalid scan config", err)
			}
			sources = append(sources, s)
		}
		checkOutputFile(cfg)

		loader, _ := newLoader(cfg)
		predicate := buildPredicate(cfg)

		t1 := time.Now()
		report := recommender.Report{}
		for _, s := range sources {
			result, err := recommender.Scan(cmd.Context(), loader, s, predicate)
			if err != nil {
				serviceutil.Fatal("scan failed", err)
			}
			report.Sections = append(
				report.Sections,
				recommender.BookSection(result.Name, result.Included, result.SeriesSizes),
			)
		}
		report.Stats = loader.Stats()

		emitReport(report, cfg)
		slog.Info("scan time", "seconds", time.Since(t1).Seconds())
	},
}
