package commands

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"bookscout/lib/pagecache"
	"bookscout/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects or clears the page cache.",
}

func openStore() pagecache.Store {
	cfg := loadConfig()
	store, err := pagecache.NewStore(cfg.CacheDir, cacheSchemaVersion)
	if err != nil {
		serviceutil.Fatal("failed to open page cache", err)
	}
	return store
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Shows what the page cache currently holds, grouped by page kind.",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		keys, err := store.Keys()
		if err != nil {
			serviceutil.Fatal("failed to list cache entries", err)
		}

		byKind := map[string]int{}
		for _, key := range keys {
			kind, _, _ := strings.Cut(key, "/")
			byKind[kind]++
		}
		kinds := make([]string, 0, len(byKind))
		for kind := range byKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Kind", "Entries"})
		for _, kind := range kinds {
			t.AppendRow(table.Row{kind, byKind[kind]})
		}
		t.Render()
		fmt.Printf("%d entries in %s\n", len(keys), store.Root())
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Deletes every cached page. The next run refetches everything.",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		keys, err := store.Keys()
		if err != nil {
			serviceutil.Fatal("failed to list cache entries", err)
		}
		err = store.Purge()
		if err != nil {
			serviceutil.Fatal("failed to purge cache", err)
		}
		slog.Info("cache purged", "entries", len(keys), "root", store.Root())
	},
}
