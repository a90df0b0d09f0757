package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/sensorwatch/internal/domain"
)

func hb(id string) domain.Heartbeat {
	return domain.Heartbeat{SensorID: id, SeenAt: time.Unix(0, 0)}
}

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	if !q.Enqueue(hb("s1")) || !q.Enqueue(hb("s2")) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].SensorID != "s1" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].SensorID != "s2" {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if q.DequeueBatch(5) != nil {
		t.Fatalf("empty queue should return nil batch")
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	if !q.Enqueue(hb("a")) || !q.Enqueue(hb("b")) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(hb("c")) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(hb("d")) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueWrapsAround(t *testing.T) {
	q := NewMemQueue(3)
	for _, id := range []string{"a", "b", "c"} {
		q.Enqueue(hb(id))
	}
	q.DequeueBatch(2)
	q.Enqueue(hb("d"))
	q.Enqueue(hb("e"))

	got := q.DequeueBatch(0)
	want := []string{"c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].SensorID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].SensorID)
		}
	}
}

func TestMemQueueConcurrentProducers(t *testing.T) {
	q := NewMemQueue(1000)
	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(hb("x"))
			}
		}()
	}
	wg.Wait()
	if q.Len() != 1000 {
		t.Fatalf("expected 1000 queued, got %d", q.Len())
	}
	if q.Enqueue(hb("overflow")) {
		t.Fatalf("queue at capacity must reject")
	}
}
