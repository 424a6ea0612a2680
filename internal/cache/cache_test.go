package cache

import (
	"os"
	"path/filepath"
	"testing"
)

const testID = "nginx-1.9.10-0-linux-amd64-debian-10"

func TestLookupMiss(t *testing.T) {
	_, ok, err := Lookup(t.TempDir(), testID, t.TempDir())
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss on empty cache dir")
	}
}

func TestLookupHitCopiesArchive(t *testing.T) {
	cacheDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "install")
	payload := []byte("archive-bytes")
	if err := os.WriteFile(filepath.Join(cacheDir, testID+".tar.gz"), payload, 0644); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	entry, ok, err := Lookup(cacheDir, testID, destDir)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	got, err := os.ReadFile(entry.ArchivePath)
	if err != nil {
		t.Fatalf("reading copied archive: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("copied archive differs from cached one")
	}
	if entry.Checksum != "" {
		t.Errorf("expected empty checksum without sidecar, got %q", entry.Checksum)
	}
}

func TestLookupSidecarChecksum(t *testing.T) {
	cacheDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cacheDir, testID+".tar.gz"), []byte("x"), 0644); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, testID+".tar.gz.sha256"), []byte("abc123  "+testID+".tar.gz\n"), 0644); err != nil {
		t.Fatalf("seeding checksum sidecar: %v", err)
	}

	entry, ok, err := Lookup(cacheDir, testID, t.TempDir())
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Checksum != "abc123" {
		t.Errorf("expected sidecar checksum abc123, got %q", entry.Checksum)
	}
}

func TestLookupSignatureSidecar(t *testing.T) {
	cacheDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cacheDir, testID+".tar.gz"), []byte("x"), 0644); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, testID+".tar.gz.asc"), []byte("sig"), 0644); err != nil {
		t.Fatalf("seeding signature sidecar: %v", err)
	}

	entry, ok, err := Lookup(cacheDir, testID, destDir)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.SignaturePath == "" {
		t.Fatal("expected signature sidecar to be copied")
	}
	if _, err := os.Stat(entry.SignaturePath); err != nil {
		t.Errorf("signature not present at %s: %v", entry.SignaturePath, err)
	}
}
