package commands

import (
	"errors"
	"fmt"
	"os"

	"bookscout/lib/configutil"
	"bookscout/lib/pagecache"
	"bookscout/lib/restyutil"
	"bookscout/lib/scrapers/goodreads"
	"bookscout/lib/serviceutil"
	"bookscout/services/recommender"
)

// bump when the extracted record shape changes; old cache entries
// become misses instead of decode errors
const cacheSchemaVersion = 1

type FilterConfig struct {
	RequireGenres    []string `json:"require_genres"`
	AvoidGenres      []string `json:"avoid_genres"`
	MinRating        float64  `json:"min_rating"`
	RequireAudiobook bool     `json:"require_audiobook"`
	// optional soft scoring over genres, [-1, 1] per slug; applied on
	// top of the strict rules when present
	GenreWeights    map[string]float64 `json:"genre_weights"`
	WeightThreshold float64            `json:"weight_threshold"`
}

type ScanConfig struct {
	Name      string   `json:"name"`
	Lists     []string `json:"lists"`
	Shelves   []string `json:"shelves"`
	Books     []string `json:"books"`
	ListPages int      `json:"list_pages"`
}

type Config struct {
	// raw cookie header from a logged-in browser session
	Cookie string `json:"cookie"`
	// the profile whose taste seeds recommendations
	UserID          string       `json:"user_id"`
	CacheDir        string       `json:"cache_dir"`
	OutputFile      string       `json:"output_file"`
	Recommendations int          `json:"recommendations"`
	ProfilePages    int          `json:"profile_pages"`
	Scans           []ScanConfig `json:"scans"`
	Filter          FilterConfig `json:"filter"`
	// dump every request/response to .dev/resty for debugging
	DumpHttp bool `json:"dump_http"`
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".bookscout-cache"
	}
	return cfg
}

// checkOutputFile refuses to touch an existing report so a run never
// silently mixes into an old one. Runs before any network activity.
func checkOutputFile(cfg Config) {
	if cfg.OutputFile == "" {
		return
	}
	_, err := os.Stat(cfg.OutputFile)
	if err == nil {
		serviceutil.Fatal(
			"output file already exists, move it or configure another path",
			fmt.Errorf("refusing to append to %s", cfg.OutputFile),
		)
	}
}

func newLoader(cfg Config) (*recommender.Loader, pagecache.Store) {
	store, err := pagecache.NewStore(cfg.CacheDir, cacheSchemaVersion)
	if err != nil {
		serviceutil.Fatal("failed to open page cache", err)
	}

	if cfg.DumpHttp {
		goodreads.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/bookscout"))
	}
	client, err := goodreads.NewClient(goodreads.ClientOptions{Cookie: cfg.Cookie})
	if err != nil {
		serviceutil.Fatal("failed to initialize site client", err)
	}

	return recommender.NewLoader(store, client), store
}

func buildPredicate(cfg Config) recommender.Predicate {
	strict := recommender.StrictFilter{
		RequireGenres:    cfg.Filter.RequireGenres,
		AvoidGenres:      cfg.Filter.AvoidGenres,
		MinRating:        cfg.Filter.MinRating,
		RequireAudiobook: cfg.Filter.RequireAudiobook,
	}
	if len(cfg.Filter.GenreWeights) == 0 {
		return strict
	}

	weighted, err := recommender.WeightedFilter(
		cfg.Filter.GenreWeights, cfg.Filter.WeightThreshold,
	)
	if err != nil {
		serviceutil.Fatal("invalid genre weights in config", err)
	}
	return recommender.And(strict, weighted)
}

func emitReport(report recommender.Report, cfg Config) {
	report.RenderTables(os.Stdout)
	if cfg.OutputFile == "" {
		return
	}
	err := report.AppendTo(cfg.OutputFile)
	if err != nil {
		serviceutil.Fatal("failed to write report file", err)
	}
}

var errMissingConfig = errors.New("missing required config value")
