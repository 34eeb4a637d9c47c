package shared

import (
	"sync"
	"testing"
	"time"
)

func TestDateOf(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	at := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	if got := DateOf(at, ny); got != "2026-03-01" {
		t.Errorf("Expected 2026-03-01 in New York, got %s", got)
	}
	if got := DateOf(at, nil); got != "2026-03-02" {
		t.Errorf("Expected 2026-03-02 in UTC, got %s", got)
	}
}

func TestAddDaysAndDaysBetween(t *testing.T) {
	if got := AddDays("2026-02-28", 1); got != "2026-03-01" {
		t.Errorf("Expected 2026-03-01, got %s", got)
	}
	if got := AddDays("2026-03-01", -7); got != "2026-02-22" {
		t.Errorf("Expected 2026-02-22, got %s", got)
	}
	if got := AddDays("garbage", 1); got != "garbage" {
		t.Errorf("Expected invalid keys unchanged, got %s", got)
	}

	n, err := DaysBetween("2026-03-05", "2026-03-01")
	if err != nil || n != -4 {
		t.Errorf("Expected -4, got %d, %v", n, err)
	}
	if _, err := DaysBetween("2026-03-05", "03/01/2026"); err == nil {
		t.Error("Expected an error for a malformed date")
	}
}

func TestKeyedMutex(t *testing.T) {
	var (
		km      KeyedMutex
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("user-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Expected 50 increments, got %d", counter)
	}
	if km.Len() != 0 {
		t.Errorf("Expected entries to be dropped, got %d", km.Len())
	}

	unlockA := km.Lock("a")
	unlockB := km.Lock("b")
	if km.Len() != 2 {
		t.Errorf("Expected 2 keys held, got %d", km.Len())
	}
	unlockA()
	unlockB()
}
