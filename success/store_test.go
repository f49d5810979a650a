package success_test

import (
	"path/filepath"
	"testing"
	"time"

	"vidproc/models"
	"vidproc/success"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := success.Init(filepath.Join(t.TempDir(), "success.db")); err != nil {
		t.Fatalf("Failed to initialize success store: %v", err)
	}
	t.Cleanup(func() { success.Close() })
}

func TestSuccessStore(t *testing.T) {
	openStore(t)

	desc := models.JobDescriptor{SourceKey: "clip1.mp4"}
	if err := success.StoreSuccess("job-1", desc, 1500*time.Millisecond); err != nil {
		t.Fatalf("Failed to store success: %v", err)
	}

	record, err := success.GetSuccess("job-1")
	if err != nil {
		t.Fatalf("Failed to get success: %v", err)
	}
	if record == nil {
		t.Fatal("Expected success record, got nil")
	}
	if record.SourceKey != "clip1.mp4" {
		t.Errorf("Expected source key clip1.mp4, got %s", record.SourceKey)
	}
	if record.PublishedKey != "processed-clip1.mp4" {
		t.Errorf("Expected published key processed-clip1.mp4, got %s", record.PublishedKey)
	}
	if record.DurationMS != 1500 {
		t.Errorf("Expected duration 1500ms, got %d", record.DurationMS)
	}
	if time.Since(record.Timestamp) > time.Minute {
		t.Errorf("Timestamp seems too old: %v", record.Timestamp)
	}

	missing, err := success.GetSuccess("non-existent")
	if err != nil {
		t.Fatalf("Failed to get non-existent success: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for non-existent success record")
	}
}

func TestSuccessStoreListAndDelete(t *testing.T) {
	openStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := success.StoreSuccess(id, models.JobDescriptor{SourceKey: id + ".mp4"}, 0); err != nil {
			t.Fatalf("Failed to store %s: %v", id, err)
		}
	}

	records, err := success.ListSuccessRecords()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	if err := success.DeleteSuccess("b"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if record, _ := success.GetSuccess("b"); record != nil {
		t.Error("Record should be gone after delete")
	}
}

func TestSuccessCleanupOldRecords(t *testing.T) {
	openStore(t)

	if err := success.StoreSuccess("recent", models.JobDescriptor{SourceKey: "x.mp4"}, 0); err != nil {
		t.Fatal(err)
	}

	removed, err := success.CleanupOldRecords(time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Recent record should survive, %d removed", removed)
	}

	removed, err = success.CleanupOldRecords(-time.Minute)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed with a negative max age, got %d", removed)
	}
}

func TestSuccessStoreNotInitialized(t *testing.T) {
	success.Close()

	if success.Enabled() {
		t.Error("Store should report disabled before Init")
	}
	if err := success.StoreSuccess("id", models.JobDescriptor{SourceKey: "a"}, 0); err == nil {
		t.Error("Expected error when store is not initialized")
	}
	if err := success.CheckHealth(); err == nil {
		t.Error("Expected health check to fail when store is not initialized")
	}
}
