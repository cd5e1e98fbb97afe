package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/silviaroy/upscalerd/internal/policy"
)

func TestServiceStore(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "out.jpg")
	if err := os.WriteFile(outputPath, []byte("upscaled"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewMemoryStorage()
	svc := NewService(store)

	if err := svc.Store(context.Background(), "u1", "job-1", outputPath, policy.KindImage); err != nil {
		t.Fatalf("Store: %v", err)
	}

	obj, ok := store.objects["results/u1/job-1.jpg"]
	if !ok {
		t.Fatal("archived object not found under expected key")
	}
	if string(obj.data) != "upscaled" {
		t.Errorf("archived content = %q, want %q", obj.data, "upscaled")
	}
	if obj.contentType != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", obj.contentType)
	}
}

func TestServiceStoreMissingOutput(t *testing.T) {
	svc := NewService(NewMemoryStorage())
	err := svc.Store(context.Background(), "u1", "job-1", "/nonexistent/out.jpg", policy.KindImage)
	if err == nil {
		t.Fatal("expected error for missing output file")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		kind policy.MediaKind
		want string
	}{
		{policy.KindImage, "results/u1/j1.jpg"},
		{policy.KindVideo, "results/u1/j1.mp4"},
	}
	for _, tt := range tests {
		if got := Key("u1", "j1", tt.kind); got != tt.want {
			t.Errorf("Key(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func archiveFile(t *testing.T, svc *Service, userID, jobID string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.jpg")
	if err := os.WriteFile(path, []byte("upscaled"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := svc.Store(context.Background(), userID, jobID, path, policy.KindImage); err != nil {
		t.Fatalf("Store: %v", err)
	}
}

func TestSweepExpiredRemovesOldObjects(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	svc := NewService(store)

	archiveFile(t, svc, "u1", "job-old")
	archiveFile(t, svc, "u1", "job-fresh")
	store.backdate("results/u1/job-old.jpg", time.Now().Add(-31*24*time.Hour))

	removed, err := svc.SweepExpired(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	left, err := store.List(ctx, "results/")
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Key != "results/u1/job-fresh.jpg" {
		t.Errorf("remaining objects = %v, want only the fresh one", left)
	}
}

func TestSweepExpiredKeepsObjectsInsideWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	svc := NewService(store)

	archiveFile(t, svc, "u1", "job-1")

	removed, err := svc.SweepExpired(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestSweepExpiredOnlyTouchesResultsPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	svc := NewService(store)

	if err := store.Upload(ctx, "other/keep.bin", strings.NewReader("x"), "application/octet-stream", 1); err != nil {
		t.Fatal(err)
	}
	store.backdate("other/keep.bin", time.Now().Add(-365*24*time.Hour))

	removed, err := svc.SweepExpired(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if _, ok := store.objects["other/keep.bin"]; !ok {
		t.Error("object outside results/ was deleted")
	}
}
