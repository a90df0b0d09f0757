// Package seed fills a store with a plausible sample fleet.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

const (
	idAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength     = 6
	gatewayCount = 10
	day          = 24 * time.Hour
)

var (
	sensorTypes = []string{"vibration", "temperature", "humidity", "pressure"}
	companies   = []string{"Acme Industrie", "Bolt Energy", "Cobalt Logistics"}
)

type Options struct {
	Sensors    int
	StaleRatio float64
	Seed       uint64
}

// DefaultOptions: 200 sensors, 10% stale.
func DefaultOptions() Options {
	return Options{Sensors: 200, StaleRatio: 0.1, Seed: 1}
}

func (o Options) validate() error {
	if o.Sensors < 0 {
		return fmt.Errorf("sensors must be >= 0, got %d", o.Sensors)
	}
	if o.StaleRatio < 0 || o.StaleRatio > 1 {
		return fmt.Errorf("stale ratio must be within [0,1], got %g", o.StaleRatio)
	}
	return nil
}

// Generate builds opts.Sensors records with distinct ids. Healthy sensors
// reported within the last day; the first round(Sensors*StaleRatio) of a
// shuffled fleet reported 3 to 7 days before now. Same seed, same fleet.
func Generate(opts Options, now time.Time) ([]domain.SensorRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	gateways := make([]string, gatewayCount)
	for i := range gateways {
		gateways[i] = "g" + randomID(rng)
	}

	staleCount := int(float64(opts.Sensors)*opts.StaleRatio + 0.5)
	stale := make([]bool, opts.Sensors)
	for i := 0; i < staleCount; i++ {
		stale[i] = true
	}
	rng.Shuffle(len(stale), func(i, j int) { stale[i], stale[j] = stale[j], stale[i] })

	seen := make(map[string]struct{}, opts.Sensors)
	out := make([]domain.SensorRecord, 0, opts.Sensors)
	for i := 0; i < opts.Sensors; i++ {
		id := "c" + randomID(rng)
		for {
			if _, dup := seen[id]; !dup {
				break
			}
			id = "c" + randomID(rng)
		}
		seen[id] = struct{}{}

		age := randomDuration(rng, 0, day)
		if stale[i] {
			age = randomDuration(rng, 3*day, 7*day)
		}

		out = append(out, domain.SensorRecord{
			SensorID: id,
			LastSeen: now.Add(-age).UTC().Truncate(time.Second),
			Metadata: map[string]any{
				"type":       sensorTypes[rng.IntN(len(sensorTypes))],
				"battery":    10 + rng.IntN(91),
				"gateway_id": gateways[rng.IntN(len(gateways))],
				"company":    companies[rng.IntN(len(companies))],
			},
		})
	}
	return out, nil
}

// Load wipes dst and writes a generated fleet into it.
func Load(ctx context.Context, dst ports.SeedStore, opts Options, now time.Time) ([]domain.SensorRecord, error) {
	records, err := Generate(opts, now)
	if err != nil {
		return nil, err
	}
	if err := dst.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}
	if err := dst.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("insert sensors: %w", err)
	}
	return records, nil
}

func randomID(rng *rand.Rand) string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idAlphabet[rng.IntN(len(idAlphabet))]
	}
	return string(b)
}

func randomDuration(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	return lo + time.Duration(rng.Int64N(int64(hi-lo)))
}
