package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStorage(t *testing.T) {
	tempDir := t.TempDir()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	storage, err := NewStorage(tempDir, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Shutdown()

	t.Run("RecordScan", func(t *testing.T) {
		storage.RecordScan(ScanResult{Fields: 3, BoundaryCrossings: 2})
		storage.RecordScan(ScanResult{Failed: true, Fields: 9})
		storage.IncrementCache(1, 2)
		stats := storage.GetCurrentStats()

		if stats.Scans != 2 {
			t.Errorf("Expected 2 scans, got %d", stats.Scans)
		}
		if stats.ScanFailures != 1 {
			t.Errorf("Expected 1 failure, got %d", stats.ScanFailures)
		}
		if stats.FieldsFound != 3 {
			t.Errorf("Expected failed scans to add no fields, got %d", stats.FieldsFound)
		}
		if stats.BoundaryCrossings != 2 {
			t.Errorf("Expected 2 boundary crossings, got %d", stats.BoundaryCrossings)
		}
		if stats.CacheHits != 1 || stats.CacheMisses != 2 {
			t.Errorf("Expected 1 hit and 2 misses, got %d and %d", stats.CacheHits, stats.CacheMisses)
		}
	})

	t.Run("Persistence", func(t *testing.T) {
		if err := storage.Flush(); err != nil {
			t.Fatalf("Failed to flush: %v", err)
		}

		storage2, err := NewStorage(tempDir, WithClock(func() time.Time { return now }))
		if err != nil {
			t.Fatalf("Failed to create second storage: %v", err)
		}
		defer storage2.Shutdown()

		stats := storage2.GetCurrentStats()
		if stats.Scans != 2 {
			t.Errorf("Expected 2 scans after reload, got %d", stats.Scans)
		}
	})

	t.Run("Cleanup", func(t *testing.T) {
		oldMonth := now.AddDate(0, -2, 0).Format("2006-01")
		lastMonth := now.AddDate(0, -1, 0).Format("2006-01")
		storage.mutex.Lock()
		storage.stats[oldMonth] = &MonthlyStats{Scans: 100}
		storage.stats[lastMonth] = &MonthlyStats{Scans: 10}
		storage.mutex.Unlock()

		storage.Cleanup(2)

		if _, exists := storage.GetMonthlyStats(oldMonth); exists {
			t.Error("Old stats should have been cleaned up")
		}
		if _, exists := storage.GetMonthlyStats(lastMonth); !exists {
			t.Error("Previous month should be retained")
		}
		months := storage.GetAllMonths()
		if len(months) != 2 || months[0] != "2026-03" {
			t.Errorf("Expected newest month first, got %v", months)
		}
	})

	t.Run("FileSize", func(t *testing.T) {
		if err := storage.Flush(); err != nil {
			t.Fatalf("Failed to flush: %v", err)
		}

		info, err := os.Stat(filepath.Join(tempDir, "stats.json"))
		if err != nil {
			t.Fatalf("Failed to stat file: %v", err)
		}

		// File should be relatively small (< 1KB for this test data)
		if info.Size() > 1024 {
			t.Errorf("File size too large: %d bytes", info.Size())
		}
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		before := storage.GetCurrentStats()

		done := make(chan bool)
		for i := 0; i < 10; i++ {
			go func() {
				for j := 0; j < 100; j++ {
					storage.IncrementCache(1, 1)
					storage.GetCurrentStats()
				}
				done <- true
			}()
		}

		for i := 0; i < 10; i++ {
			<-done
		}

		stats := storage.GetCurrentStats()
		if got := stats.CacheHits - before.CacheHits; got != 1000 {
			t.Errorf("Expected 1000 new hits, got %d", got)
		}
	})
}

func TestShutdownPersists(t *testing.T) {
	tempDir := t.TempDir()

	storage, err := NewStorage(tempDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	storage.RecordScan(ScanResult{Fields: 1})

	if err := storage.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	// a second shutdown is harmless
	if err := storage.Shutdown(); err != nil {
		t.Fatalf("Second shutdown failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, "stats.json")); err != nil {
		t.Fatalf("Expected stats file after shutdown: %v", err)
	}
}
