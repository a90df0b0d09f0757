package render

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ghalamif/sensorwatch/internal/domain"
)

var seen = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestRenderFleet(t *testing.T) {
	r := New("fr", 10)

	assert.Equal(t, "Aucun capteur n'est enregistré.", r.Render("fr", domain.AllStatus{}, nil))

	allFresh := []domain.EvaluationResult{{SensorID: "A", Fresh: true}, {SensorID: "B", Fresh: true}}
	assert.Equal(t, "Oui, tous les capteurs sont connectés (2).", r.Render("fr", domain.AllStatus{}, allFresh))

	mixed := []domain.EvaluationResult{{SensorID: "A", Fresh: true}, {SensorID: "B", Fresh: false}}
	got := r.Render("en", domain.AllStatus{}, mixed)
	assert.Equal(t, "No, 1 of 2 sensors are disconnected: B.", got)
}

func TestRenderFleetTruncatesList(t *testing.T) {
	r := New("en", 3)
	var results []domain.EvaluationResult
	for i := 0; i < 5; i++ {
		results = append(results, domain.EvaluationResult{SensorID: fmt.Sprintf("s%d", i)})
	}

	got := r.Render("en", domain.AllStatus{}, results)
	assert.Equal(t, "No, 5 of 5 sensors are disconnected: s0, s1, s2 (+2 more).", got)
	assert.NotContains(t, got, "s3")
}

func TestRenderSingle(t *testing.T) {
	r := New("fr", 0)
	in := domain.SingleStatus{SensorID: "A"}

	fresh := r.Render("fr", in, []domain.EvaluationResult{{SensorID: "A", Fresh: true, LastSeen: seen}})
	assert.Equal(t, "Oui, le capteur A est connecté (dernière donnée le 14/03/2026 09:30 UTC).", fresh)

	stale := r.Render("en", in, []domain.EvaluationResult{{SensorID: "A", LastSeen: seen}})
	assert.Equal(t, "No, sensor A has been disconnected since 2026-03-14 09:30 UTC.", stale)

	never := r.Render("en", in, []domain.EvaluationResult{{SensorID: "A"}})
	assert.Equal(t, "No, sensor A has never reported data.", never)

	assert.Equal(t, "Le capteur A est inconnu.", r.Render("fr", in, nil))
	assert.Equal(t, "Le capteur A est inconnu.", r.Render("fr", in, []domain.EvaluationResult{{SensorID: "B", Fresh: true}}))
}

func TestRenderLocaleFallback(t *testing.T) {
	r := New("en", 0)
	assert.Equal(t, catalogs[English].notUnderstood, r.Render("de", domain.Unknown{}, nil))
	assert.Equal(t, catalogs[French].notUnderstood, r.NotUnderstood("fr"))
	assert.Equal(t, catalogs[English].degraded, r.Degraded(""))

	bogus := New("xx", 0)
	assert.Equal(t, catalogs[French].noSensors, bogus.Render("", domain.AllStatus{}, nil))
}

func TestRenderNeverEmpty(t *testing.T) {
	r := New("fr", 0)
	intents := []domain.Intent{domain.AllStatus{}, domain.SingleStatus{SensorID: "x"}, domain.Unknown{}}
	for _, loc := range []string{"fr", "en", ""} {
		for _, in := range intents {
			assert.NotEmpty(t, strings.TrimSpace(r.Render(loc, in, nil)))
		}
	}
}

func TestRenderUnhandledIntentPanics(t *testing.T) {
	assert.Panics(t, func() { New("fr", 0).Render("fr", nil, nil) })
}
