package clock_test

import (
	"testing"
	"time"

	"github.com/royalcat/listingmap/clock"
)

func TestFakeRunsDueTasksInOrder(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))

	var got []int
	c.AfterFunc(20*time.Millisecond, func() { got = append(got, 2) })
	c.AfterFunc(10*time.Millisecond, func() { got = append(got, 1) })
	c.AfterFunc(50*time.Millisecond, func() { got = append(got, 3) })

	c.Advance(30 * time.Millisecond)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected [1 2], got %v", got)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected 1 pending task, got %d", c.Pending())
	}
	if want := time.Unix(0, 0).Add(30 * time.Millisecond); !c.Now().Equal(want) {
		t.Fatalf("expected now %v, got %v", want, c.Now())
	}
}

func TestFakeCancel(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))

	ran := false
	cancel := c.AfterFunc(time.Second, func() { ran = true })
	if !cancel() {
		t.Fatal("cancel of a pending task should report true")
	}
	if cancel() {
		t.Fatal("second cancel should report false")
	}

	c.Advance(2 * time.Second)
	if ran {
		t.Fatal("cancelled task ran")
	}
}

func TestFakeTaskSchedulingTask(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))

	count := 0
	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})

	c.Advance(3 * time.Second)
	if count != 2 {
		t.Fatalf("expected nested task to run, count %d", count)
	}
}
