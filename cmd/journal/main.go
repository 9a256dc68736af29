package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"parkscan/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/sessions.db", "Session journal path")
	limit := flag.Int("limit", 10, "Number of recent sessions to list")
	prune := flag.Duration("prune", 0, "Delete sessions older than this (e.g. 720h), 0 keeps everything")
	flag.Parse()

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewSessionRepository(db)

	if *prune > 0 {
		cutoff := time.Now().Add(-*prune)
		n, err := repo.DeleteBefore(cutoff)
		if err != nil {
			log.Fatalf("Failed to prune sessions: %v", err)
		}
		fmt.Printf("Deleted %d sessions started before %s\n", n, cutoff.Format(time.RFC3339))
	}

	stats, err := repo.GetStats()
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}

	fmt.Printf("Session journal %s\n", *dbPath)
	fmt.Printf("   Total sessions: %d\n", stats.TotalSessions)
	fmt.Printf("   By outcome:\n")
	for _, k := range sortedKeys(stats.ByOutcome) {
		fmt.Printf("      - %s: %d\n", k, stats.ByOutcome[k])
	}
	fmt.Printf("   By dispatch status:\n")
	for _, k := range sortedKeys(stats.ByDispatch) {
		fmt.Printf("      - %s: %d\n", k, stats.ByDispatch[k])
	}

	if *limit <= 0 {
		return
	}
	sessions, err := repo.GetRecent(*limit)
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}

	fmt.Printf("\nMost recent %d:\n", len(sessions))
	for _, s := range sessions {
		duration := "-"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Printf("   %s  %s  %-14s %-9s attempts=%d took=%s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.ID, s.Outcome, s.DispatchStatus, s.DecodeAttempts, duration)
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
