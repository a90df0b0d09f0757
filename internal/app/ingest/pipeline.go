// Package ingest keeps last_seen current: heartbeats flow from a collector
// through a bounded queue into the store.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

const defaultIdle = 5 * time.Millisecond

// Run starts col and moves heartbeats into w until ctx is cancelled. The
// caller owns col and stops it after Run returns.
func Run(ctx context.Context, col ports.HeartbeatCollector, q ports.HeartbeatQueue, w ports.HeartbeatWriter, pol ports.Policy, obs ports.Observability) error {
	ch := make(chan domain.Heartbeat, pol.MaxQueueLen)

	if err := col.Start(ch); err != nil {
		return err
	}

	fed := make(chan struct{})
	go func() {
		defer close(fed)
		for {
			select {
			case <-ctx.Done():
				return
			case hb := <-ch:
				if !enqueueWithPolicy(ctx, q, hb, pol, obs) {
					obs.IncCounter(ports.MetricHeartbeatsDropped, 1)
				}
			}
		}
	}()

	drain(ctx, q, w, pol, obs)
	<-fed
	return nil
}

func drain(ctx context.Context, q ports.HeartbeatQueue, w ports.HeartbeatWriter, pol ports.Policy, obs ports.Observability) {
	idle := pol.IdleSleep
	if idle <= 0 {
		idle = defaultIdle
	}

	for {
		if ctx.Err() != nil {
			return
		}

		batch := q.DequeueBatch(pol.MaxBatchSize)
		obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))
		if len(batch) == 0 {
			sleep(ctx, idle)
			continue
		}

		beats := coalesce(batch)
		if err := w.Touch(ctx, beats); err != nil {
			obs.LogError("heartbeat_touch_failed", err, ports.Field{Key: "sensors", Value: len(beats)})
			// Touch is monotonic, so a retry of the same beats is harmless.
			requeue(q, beats, obs)
			sleep(ctx, idle)
			continue
		}
		obs.IncCounter(ports.MetricHeartbeatsIngested, float64(len(batch)))
	}
}

// coalesce keeps the newest heartbeat per sensor, ordered by sensor id.
func coalesce(batch []domain.Heartbeat) []domain.Heartbeat {
	latest := make(map[string]domain.Heartbeat, len(batch))
	for _, hb := range batch {
		if cur, ok := latest[hb.SensorID]; !ok || hb.SeenAt.After(cur.SeenAt) {
			latest[hb.SensorID] = hb
		}
	}
	out := make([]domain.Heartbeat, 0, len(latest))
	for _, hb := range latest {
		out = append(out, hb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

func requeue(q ports.HeartbeatQueue, beats []domain.Heartbeat, obs ports.Observability) {
	for _, hb := range beats {
		if !q.Enqueue(hb) {
			obs.IncCounter(ports.MetricHeartbeatsDropped, 1)
		}
	}
}

func enqueueWithPolicy(ctx context.Context, q ports.HeartbeatQueue, hb domain.Heartbeat, pol ports.Policy, obs ports.Observability) bool {
	idle := pol.IdleSleep
	if idle <= 0 {
		idle = defaultIdle
	}

	for {
		if ok := q.Enqueue(hb); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			if !sleep(ctx, idle) {
				return false
			}
		case "drop":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
				ports.Field{Key: "sensor_id", Value: hb.SensorID})
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
