// Package render turns evaluation results into a chat reply.
package render

import (
	"fmt"
	"strings"

	"github.com/ghalamif/sensorwatch/internal/app/freshness"
	"github.com/ghalamif/sensorwatch/internal/domain"
)

// DefaultMaxListed bounds how many stale ids a fleet reply spells out.
const DefaultMaxListed = 10

type Renderer struct {
	locale    Locale
	maxListed int
}

// New returns a renderer falling back to defaultLocale (French when
// unsupported) for requests without a usable locale.
func New(defaultLocale string, maxListed int) *Renderer {
	loc := Locale(defaultLocale)
	if !Supported(defaultLocale) {
		loc = French
	}
	if maxListed <= 0 {
		maxListed = DefaultMaxListed
	}
	return &Renderer{locale: loc, maxListed: maxListed}
}

// Render always returns a non-empty reply.
func (r *Renderer) Render(locale string, in domain.Intent, results []domain.EvaluationResult) string {
	cat := r.catalog(locale)

	switch in := in.(type) {
	case domain.AllStatus:
		return r.fleet(cat, results)
	case domain.SingleStatus:
		for _, res := range results {
			if res.SensorID == in.SensorID {
				return single(cat, res)
			}
		}
		return fmt.Sprintf(cat.unknownSensor, in.SensorID)
	case domain.Unknown:
		return cat.notUnderstood
	default:
		panic(fmt.Sprintf("render: unhandled intent %T", in))
	}
}

// NotUnderstood is the fallback for messages no rule matched.
func (r *Renderer) NotUnderstood(locale string) string {
	return r.catalog(locale).notUnderstood
}

// Degraded is shown when the telemetry store cannot be reached.
func (r *Renderer) Degraded(locale string) string {
	return r.catalog(locale).degraded
}

func (r *Renderer) fleet(cat catalog, results []domain.EvaluationResult) string {
	if len(results) == 0 {
		return cat.noSensors
	}
	stale := freshness.Stale(results)
	if len(stale) == 0 {
		return fmt.Sprintf(cat.allFresh, len(results))
	}

	listed := stale
	if len(listed) > r.maxListed {
		listed = listed[:r.maxListed]
	}
	list := strings.Join(listed, ", ")
	if hidden := len(stale) - len(listed); hidden > 0 {
		list += fmt.Sprintf(cat.more, hidden)
	}
	return fmt.Sprintf(cat.someStale, len(stale), len(results), list)
}

func single(cat catalog, res domain.EvaluationResult) string {
	switch {
	case res.LastSeen.IsZero():
		return fmt.Sprintf(cat.sensorNever, res.SensorID)
	case res.Fresh:
		return fmt.Sprintf(cat.sensorFresh, res.SensorID, res.LastSeen.UTC().Format(cat.timeLayout))
	default:
		return fmt.Sprintf(cat.sensorStale, res.SensorID, res.LastSeen.UTC().Format(cat.timeLayout))
	}
}

func (r *Renderer) catalog(locale string) catalog {
	if cat, ok := catalogs[Locale(locale)]; ok {
		return cat
	}
	return catalogs[r.locale]
}
