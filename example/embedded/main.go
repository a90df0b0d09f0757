package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ghalamif/sensorwatch"
)

// Runs against an in-memory SQLite fleet and asks a few questions.
func main() {
	cfg := &sensorwatch.Config{}
	cfg.Store = sensorwatch.StoreConfig{Driver: sensorwatch.DriverSQLite, ConnString: "file::memory:", Name: "sensors"}
	cfg.Chat = sensorwatch.ChatConfig{DefaultLocale: "en", MaxListed: 5}
	cfg.Log.Level = "warn"

	rt, err := sensorwatch.NewRuntime(cfg)
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}
	defer rt.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := rt.Seed(ctx, sensorwatch.SeedOptions{Sensors: 50, StaleRatio: 0.2, Seed: 7}); err != nil {
		log.Fatalf("seed: %v", err)
	}

	for _, q := range []string{
		"Are all sensors connected?",
		"Est-ce que tous les capteurs sont connectés ?",
		"Is sensor c000000 online?",
		"What's the weather like?",
	} {
		text, err := rt.Ask(ctx, q, "")
		if err != nil {
			log.Printf("ask %q: %v", q, err)
		}
		fmt.Printf("> %s\n%s\n\n", q, text)
	}
}
