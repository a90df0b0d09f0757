package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ghalamif/sensorwatch"
)

const defaultConfig = "./data/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "seed":
		err = seedCommand(os.Args[2:])
	case "ask":
		err = askCommand(os.Args[2:])
	case "classify":
		err = classifyCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("sensorwatch %s: %v", cmd, err)
	}
}

func configFlag(fs *pflag.FlagSet) *string {
	return fs.StringP("config", "c", defaultConfig, "Path to configuration file (empty: environment only)")
}

func openRuntime(path string) (*sensorwatch.Runtime, error) {
	cfg, err := sensorwatch.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return sensorwatch.NewRuntime(cfg)
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := openRuntime(*cfgPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorwatch.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good: store=%s table=%s threshold=%dd ingest=%t\n",
		*cfgPath, cfg.Store.Driver, cfg.Store.Name, cfg.Freshness.Days(), cfg.Ingest.Enabled())
	return nil
}

func seedCommand(args []string) error {
	def := sensorwatch.DefaultSeedOptions()

	fs := pflag.NewFlagSet("seed", pflag.ExitOnError)
	cfgPath := configFlag(fs)
	sensors := fs.IntP("sensors", "n", def.Sensors, "Number of sensors to generate")
	staleRatio := fs.Float64("stale-ratio", def.StaleRatio, "Share of sensors whose last report is 3 to 7 days old")
	seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed; reuse it to get the same fleet")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := openRuntime(*cfgPath)
	if err != nil {
		return err
	}
	defer rt.Shutdown(context.Background())

	n, err := rt.Seed(context.Background(), sensorwatch.SeedOptions{
		Sensors:    *sensors,
		StaleRatio: *staleRatio,
		Seed:       *seed,
	})
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d sensors (seed=%d)\n", n, *seed)
	return nil
}

func askCommand(args []string) error {
	fs := pflag.NewFlagSet("ask", pflag.ExitOnError)
	cfgPath := configFlag(fs)
	locale := fs.StringP("locale", "l", "", "Reply language (fr, en); defaults to chat.default_locale")
	if err := fs.Parse(args); err != nil {
		return err
	}
	message := strings.Join(fs.Args(), " ")
	if message == "" {
		return errors.New("usage: sensorwatch ask [flags] \"<question>\"")
	}

	rt, err := openRuntime(*cfgPath)
	if err != nil {
		return err
	}
	defer rt.Shutdown(context.Background())

	text, err := rt.Ask(context.Background(), message, *locale)
	if text != "" {
		fmt.Println(text)
	}
	return err
}

func classifyCommand(args []string) error {
	fs := pflag.NewFlagSet("classify", pflag.ExitOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	message := strings.Join(fs.Args(), " ")
	if message == "" {
		return errors.New("usage: sensorwatch classify [flags] \"<question>\"")
	}

	rt, err := openRuntime(*cfgPath)
	if err != nil {
		return err
	}
	defer rt.Shutdown(context.Background())

	fmt.Println(describeIntent(rt.Classify(message)))
	return nil
}

func describeIntent(in sensorwatch.Intent) string {
	if s, ok := in.(sensorwatch.SingleStatus); ok {
		return fmt.Sprintf("%s sensor_id=%s", in.Name(), s.SensorID)
	}
	return in.Name()
}

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ExitOnError)
	url := fs.String("url", "http://localhost:8080/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsMetrics = []string{
	"sensorwatch_chat_requests_total",
	"sensorwatch_chat_fallback_total",
	"sensorwatch_store_errors_total",
	"sensorwatch_stale_sensors",
	"sensorwatch_heartbeats_ingested_total",
	"sensorwatch_heartbeat_queue_length",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scanMetrics(resp.Body, statsMetrics)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] chats=%.0f fallbacks=%.0f store_errors=%.0f stale=%.0f heartbeats=%.0f queue=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["sensorwatch_chat_requests_total"],
		values["sensorwatch_chat_fallback_total"],
		values["sensorwatch_store_errors_total"],
		values["sensorwatch_stale_sensors"],
		values["sensorwatch_heartbeats_ingested_total"],
		values["sensorwatch_heartbeat_queue_length"],
	)
	return nil
}

// scanMetrics picks unlabelled samples for keys out of a text exposition.
func scanMetrics(r io.Reader, keys []string) (map[string]float64, error) {
	targets := make(map[string]float64, len(keys))
	for _, k := range keys {
		targets[k] = 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

func printUsage() {
	fmt.Printf(`SensorWatch CLI

Usage:
  sensorwatch <command> [flags]

Commands:
  run        Serve the chat API (and heartbeat ingestion when configured)
  validate   Load and validate a config file without starting anything
  seed       Wipe the store and load a generated sample fleet
  ask        Answer one question against the configured store
  classify   Print the intent a question maps to, without querying the store
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  sensorwatch run --config ./data/config.yaml
  sensorwatch validate -c ./data/config.yaml
  sensorwatch seed --sensors 200 --stale-ratio 0.1 --seed 42
  sensorwatch ask --locale en "Are all sensors connected?"
  sensorwatch classify "Est-ce que le capteur c7k2m9q est connecté ?"
  sensorwatch stats --url http://localhost:8080/metrics --interval 1s
`)
}
