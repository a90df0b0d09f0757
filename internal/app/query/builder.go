// Package query maps a classified intent onto a telemetry store query.
package query

import (
	"fmt"

	"github.com/ghalamif/sensorwatch/internal/domain"
)

var freshnessProjection = []domain.Field{domain.FieldSensorID, domain.FieldLastSeen}

// Build returns the query for in. ok is false when the intent needs no
// store access: Unknown, or a SingleStatus without a sensor id.
func Build(in domain.Intent) (q domain.Query, ok bool) {
	switch in := in.(type) {
	case domain.AllStatus:
		return domain.Query{Projection: projection()}, true
	case domain.SingleStatus:
		if in.SensorID == "" {
			return domain.Query{}, false
		}
		return domain.Query{SensorID: in.SensorID, Projection: projection()}, true
	case domain.Unknown:
		return domain.Query{}, false
	default:
		panic(fmt.Sprintf("query: unhandled intent %T", in))
	}
}

func projection() []domain.Field {
	out := make([]domain.Field, len(freshnessProjection))
	copy(out, freshnessProjection)
	return out
}
