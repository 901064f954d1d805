package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTableSerializesSameKey(t *testing.T) {
	table := NewTable()
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := table.Acquire(ctx, "pair:t1:a:b")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("critical section overlapped: %d holders", maxInside)
	}
}

func TestTableIndependentKeys(t *testing.T) {
	table := NewTable()
	ctx := context.Background()

	release1, err := table.Acquire(ctx, "tour:t1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release1()

	// a different key must not block
	done := make(chan struct{})
	go func() {
		release2, err := table.Acquire(ctx, "tour:t2")
		if err == nil {
			release2()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("independent key blocked")
	}
}

func TestTableAcquireHonorsContext(t *testing.T) {
	table := NewTable()

	release, err := table.Acquire(context.Background(), "tour:t1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := table.Acquire(ctx, "tour:t1"); err == nil {
		t.Fatalf("expected context error on held lock")
	}
}

func TestTableReacquireAfterRelease(t *testing.T) {
	table := NewTable()
	ctx := context.Background()

	release, err := table.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	release, err = table.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	release()
}
