package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ocdul/social-listening/internal/config"
	"github.com/ocdul/social-listening/internal/dashboard"
	"github.com/ocdul/social-listening/internal/editor"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/gateway"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/ocdul/social-listening/internal/session"
)

// Read-only check of a live database: applies a filter preset for one alert
// and prints what the dashboard would show. Nothing is written.
func main() {
	alertID := flag.Int64("alert", 0, "alert id to inspect")
	preset := flag.String("preset", string(filters.PresetLast30Days), "time period preset")
	limit := flag.Int("limit", 10, "number of mentions to list")
	flag.Parse()

	fmt.Println("Social listening dashboard - smoke check")
	fmt.Println("========================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	if *alertID <= 0 {
		fmt.Println("usage: smoke -alert <id> [-preset last_30_days] [-limit 10]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := gateway.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, gateway.DefaultPoolConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	registry := schema.Default()
	store := gateway.New(db, registry, gateway.Options{
		ContentSchema: cfg.ContentSchema,
		RawSchema:     cfg.RawSchema,
		AuditTable:    cfg.AuditTable,
	})
	service := dashboard.NewService(cfg, store, registry, nil, nil, nil)

	filterOpts := filters.DefaultOptions()
	filterOpts.MaxRangeDays = cfg.MaxRangeDays
	filterOpts.HistoryStart = cfg.HistoryStart
	filterOpts.Location = cfg.Location()
	sess, err := session.NewManager(registry, filterOpts, 0).Create(session.Identity{Actor: "smoke", AlertID: *alertID})
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	period := filters.ParsePreset(*preset)
	if period == filters.PresetCustom {
		log.Fatalf("Unsupported preset %q: use one of the named periods", *preset)
	}

	var platforms []string
	for _, p := range registry.Platforms() {
		platforms = append(platforms, p.Label())
	}
	if err := service.ApplyFilters(sess, filters.Selection{Platforms: platforms, Preset: period}); err != nil {
		log.Fatalf("Invalid filters: %v", err)
	}
	state := sess.Filters.State()
	fmt.Printf("\nAlert %d, %s (%s to %s)\n", *alertID, state.Preset.Label(), state.Start.Format("2006-01-02"), state.End.Format("2006-01-02"))

	mentions, err := service.LoadMentions(ctx, sess, *limit)
	if err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}

	summary, err := service.Summary(ctx, sess)
	if err != nil {
		log.Fatalf("Summary failed: %v", err)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Total mentions: %d\n", summary.Total)
	if summary.LastUpdated != nil {
		fmt.Printf("Last updated:   %s\n", summary.LastUpdated.Format("2006-01-02 15:04:05"))
	}

	fmt.Println("\nSentiment:")
	for _, c := range summary.Sentiment {
		fmt.Printf("   %-12s %6d  (%.1f%%)\n", c.Sentiment.Label(), c.Count, summary.SentimentShare[c.Sentiment])
	}

	perPlatform := map[string]int64{}
	for _, point := range summary.Timeline {
		perPlatform[point.Platform.Label()] += point.Count
	}
	names := make([]string, 0, len(perPlatform))
	for name := range perPlatform {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nPlatforms:")
	for _, name := range names {
		fmt.Printf("   %-12s %6d\n", name, perPlatform[name])
	}

	fmt.Printf("\nLatest %d mention(s):\n", len(mentions))
	for i, m := range mentions {
		fmt.Printf("   %2d. [%s] %s %s: %s\n", i+1, m.Platform.Label(), m.CreatedTime.Format("2006-01-02 15:04"),
			m.SentimentCode().Label(), editor.Preview(m.Text))
	}

	fmt.Println("\nSmoke check completed")
}
