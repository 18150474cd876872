package observe

import (
	"sync"
	"testing"
)

func TestSequencedDropsOlderValues(t *testing.T) {
	var topic Sequenced[string]
	var got []string
	topic.Subscribe(func(v string) { got = append(got, v) })

	topic.Publish(1, "loading")
	topic.Publish(3, "second fetch")
	topic.Publish(2, "first fetch")
	topic.Publish(3, "duplicate")

	if len(got) != 2 || got[0] != "loading" || got[1] != "second fetch" {
		t.Fatalf("got %v", got)
	}
}

func TestSequencedPublishFromSubscriber(t *testing.T) {
	var topic Sequenced[int]
	var got []int
	topic.Subscribe(func(v int) {
		got = append(got, v)
		if v == 1 {
			// queued and delivered after this call returns
			topic.Publish(2, 2)
			if len(got) != 1 {
				t.Errorf("nested publish delivered early: %v", got)
			}
		}
	})

	topic.Publish(1, 1)
	if len(got) != 2 || got[1] != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestSequencedConcurrentPublishers(t *testing.T) {
	var topic Sequenced[uint64]
	var mu sync.Mutex
	var got []uint64
	topic.Subscribe(func(v uint64) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	var seq sync.Mutex
	var next uint64
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				seq.Lock()
				next++
				n := next
				seq.Unlock()
				topic.Publish(n, n)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("out of order delivery at %d: %d after %d", i, got[i], got[i-1])
		}
	}
	if len(got) == 0 || got[len(got)-1] != 800 {
		t.Fatalf("last delivered value should be the newest, got %v", got[len(got)-1:])
	}
}
