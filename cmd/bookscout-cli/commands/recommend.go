package commands

import (
	"log/slog"
	"time"

	"bookscout/lib/serviceutil"
	"bookscout/services/recommender"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(recommendCmd)
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Walks reviewers with overlapping taste and prints ranked recommendations.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if cfg.UserID == "" {
			serviceutil.Fatal("recommend needs a user_id in config", errMissingConfig)
		}
		if cfg.Cookie == "" {
			// review lists are only visible to logged-in sessions
			serviceutil.Fatal("recommend needs a session cookie in config", errMissingConfig)
		}
		checkOutputFile(cfg)

		loader, store := newLoader(cfg)
		engine := recommender.NewEngine(loader, store)
		if cfg.ProfilePages > 0 {
			engine.ProfilePages = cfg.ProfilePages
		}

		t1 := time.Now()
		recs, err := engine.Recommend(
			cmd.Context(), cfg.UserID, cfg.Recommendations, buildPredicate(cfg),
		)
		if err != nil {
			serviceutil.Fatal("recommendation run failed", err)
		}

		report := recommender.Report{
			Sections: []recommender.Section{
				recommender.EntrySection("Raw", recs.Raw, recs.SeriesSizes),
				recommender.EntrySection("Filtered", recs.Filtered, recs.SeriesSizes),
			},
			Stats: recs.Stats,
		}
		emitReport(report, cfg)
		slog.Info("recommendation time", "seconds", time.Since(t1).Seconds())
	},
}
