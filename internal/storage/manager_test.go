// manager_test.go - Tests for storage layer
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Crazyka51/AudioCleaner/internal/models"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	classify := func(name string) models.MediaKind {
		if strings.HasSuffix(strings.ToLower(name), ".mov") {
			return models.MediaKindVideo
		}
		return models.MediaKindAudio
	}
	store, err := NewLocalStore(t.TempDir(), classify)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		if _, err := NewLocalStore(uploadDir, nil); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})

	t.Run("nil classifier defaults to audio", func(t *testing.T) {
		store, err := NewLocalStore(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		info, err := store.Save("clip.mov", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		if info.Kind != models.MediaKindAudio {
			t.Errorf("Expected audio kind, got %v", info.Kind)
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		content := "RIFF....WAVE"
		info, err := store.Save("voice.wav", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "voice.wav" {
			t.Errorf("Expected name 'voice.wav', got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}
		if info.Status != "uploaded" {
			t.Errorf("Expected status 'uploaded', got %v", info.Status)
		}
		if info.Kind != models.MediaKindAudio {
			t.Errorf("Expected audio kind, got %v", info.Kind)
		}
	})

	t.Run("keeps extension and classifies video", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("Holiday.MOV", strings.NewReader("moov"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.Kind != models.MediaKindVideo {
			t.Errorf("Expected video kind, got %v", info.Kind)
		}

		path, err := store.GetFilePath(info.ID)
		if err != nil {
			t.Fatalf("Failed to get path: %v", err)
		}
		if filepath.Ext(path) != ".mov" {
			t.Errorf("Expected .mov extension on disk, got %s", path)
		}
	})

	t.Run("strips directories from name", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("../../etc/passwd.wav", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.Name != "passwd.wav" {
			t.Errorf("Expected sanitized name, got %s", info.Name)
		}
	})

	t.Run("removes partial file on read error", func(t *testing.T) {
		store := createTestStore(t)

		if _, err := store.Save("broken.wav", failingReader{}); err == nil {
			t.Fatal("Expected error from failing reader")
		}

		entries, _ := os.ReadDir(store.uploadDir)
		if len(entries) != 0 {
			t.Errorf("Expected no files left behind, found %d", len(entries))
		}
	})
}

func TestLocalStore_Get(t *testing.T) {
	store := createTestStore(t)

	info, _ := store.Save("a.mp3", strings.NewReader("abc"))

	got, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Failed to get file: %v", err)
	}
	if got.ID != info.ID {
		t.Errorf("Expected ID %s, got %s", info.ID, got.ID)
	}

	_, err = store.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_List(t *testing.T) {
	t.Run("sorts by upload time descending and limits", func(t *testing.T) {
		store := createTestStore(t)

		base := time.Now()
		for i := 0; i < 5; i++ {
			store.RegisterFile(&models.FileInfo{
				ID:         fmt.Sprintf("f%d", i),
				Name:       fmt.Sprintf("f%d.wav", i),
				UploadedAt: base.Add(time.Duration(i) * time.Second),
			})
		}

		list, err := store.List(3)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("Expected 3 files, got %d", len(list))
		}
		if list[0].ID != "f4" || list[2].ID != "f2" {
			t.Errorf("Unexpected order: %s, %s", list[0].ID, list[2].ID)
		}
	})

	t.Run("zero limit returns all", func(t *testing.T) {
		store := createTestStore(t)
		store.Save("a.wav", strings.NewReader("a"))
		store.Save("b.wav", strings.NewReader("b"))

		list, _ := store.List(0)
		if len(list) != 2 {
			t.Errorf("Expected 2 files, got %d", len(list))
		}
	})
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)

	info, _ := store.Save("gone.flac", strings.NewReader("data"))
	path, _ := store.GetFilePath(info.ID)

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed from disk")
	}
	if _, err := store.Get(info.ID); err == nil {
		t.Error("Expected metadata to be removed")
	}
	if err := store.Delete(info.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLocalStore_ChunkedUpload(t *testing.T) {
	t.Run("assembles chunks in order", func(t *testing.T) {
		store := createTestStore(t)

		parts := []string{"first-", "second-", "third"}
		for i, p := range parts {
			if err := store.SaveChunk("upload-1", i, strings.NewReader(p)); err != nil {
				t.Fatalf("Failed to save chunk %d: %v", i, err)
			}
		}

		info, err := store.CompleteChunkedUpload("upload-1", "talk.ogg", len(parts))
		if err != nil {
			t.Fatalf("Failed to complete upload: %v", err)
		}

		path, _ := store.GetFilePath(info.ID)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read assembled file: %v", err)
		}
		if string(data) != strings.Join(parts, "") {
			t.Errorf("Unexpected content %q", data)
		}
		if info.Size != int64(len(data)) {
			t.Errorf("Expected size %d, got %d", len(data), info.Size)
		}
		if _, err := os.Stat(filepath.Join(store.uploadDir, "chunks", "upload-1")); !os.IsNotExist(err) {
			t.Error("Expected chunk directory to be removed")
		}
	})

	t.Run("missing chunk fails without leaving a file", func(t *testing.T) {
		store := createTestStore(t)
		store.SaveChunk("upload-2", 0, strings.NewReader("only"))

		if _, err := store.CompleteChunkedUpload("upload-2", "x.wav", 2); err == nil {
			t.Fatal("Expected error for missing chunk")
		}
		list, _ := store.List(0)
		if len(list) != 0 {
			t.Errorf("Expected no registered files, got %d", len(list))
		}
	})

	t.Run("rejects path-like upload ids", func(t *testing.T) {
		store := createTestStore(t)

		err := store.SaveChunk("../escape", 0, bytes.NewReader([]byte("x")))
		if !errors.Is(err, ErrInvalidUploadID) {
			t.Errorf("Expected ErrInvalidUploadID, got %v", err)
		}
		if _, err := store.CompleteChunkedUpload("a/b", "x.wav", 1); !errors.Is(err, ErrInvalidUploadID) {
			t.Errorf("Expected ErrInvalidUploadID, got %v", err)
		}
	})
}

func TestLocalStore_CleanupOlderThan(t *testing.T) {
	store := createTestStore(t)

	fresh, _ := store.Save("fresh.wav", strings.NewReader("new"))
	old, _ := store.Save("old.wav", strings.NewReader("old"))
	old.UploadedAt = time.Now().Add(-2 * time.Hour)

	removed := store.CleanupOlderThan(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 removal, got %d", removed)
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Error("Expected fresh file to remain")
	}
	if _, err := store.Get(old.ID); err == nil {
		t.Error("Expected old file to be removed")
	}
}

func TestLocalStore_ConcurrentAccess(t *testing.T) {
	store := createTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Save(fmt.Sprintf("c%d.wav", i), strings.NewReader("x")); err != nil {
				t.Errorf("save %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	list, _ := store.List(0)
	if len(list) != 20 {
		t.Errorf("Expected 20 files, got %d", len(list))
	}
}
