// Command refresh runs one fetch and processing cycle over the configured
// feeds and prints the run report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"incidentwatch/app"
	"incidentwatch/config"
	"incidentwatch/logging"
	"incidentwatch/rssfeeds"
)

func main() {
	feeds := flag.String("feeds", "", "comma-separated presets or feed URLs (overrides FEEDS)")
	count := flag.Int("count", 0, "max items per feed (overrides FEEDS_COUNT)")
	enrich := flag.Bool("enrich", false, "fetch each linked page for its full text")
	list := flag.Bool("list", false, "list feed presets and exit")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	if *list {
		for _, name := range rssfeeds.PresetNames() {
			feed := rssfeeds.FeedPresets[name]
			fmt.Printf("%-12s %-3s %s\n", name, feed.Language, feed.URL)
		}
		return
	}

	cfg, err := config.Load()
	logging.Init(cfg.LogLevel, nil)
	if err != nil {
		logging.Fatal("invalid configuration", "err", err)
	}
	if *feeds != "" {
		cfg.Feeds.Presets = strings.Split(*feeds, ",")
	}
	if *count > 0 {
		cfg.Feeds.Count = *count
	}
	if *enrich {
		cfg.Feeds.Enrich = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Fatal("failed to start", "err", err)
	}
	defer a.Close()

	report, err := a.Pipeline.RunSources(ctx)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	if err != nil {
		logging.Error("refresh failed", "err", err)
		os.Exit(1)
	}
}
