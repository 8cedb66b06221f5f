package photos

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type staticIDProvider struct {
	id string
}

func (p staticIDProvider) NewID() (string, error) {
	return p.id, nil
}

func TestStoreSaveAndOpen(t *testing.T) {
	directory := t.TempDir()
	store, err := NewStore(StoreConfig{Directory: directory, IDProvider: staticIDProvider{id: "fixed"}})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}

	uri, err := store.Save(t.Context(), 7, strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if !strings.HasPrefix(uri, "file://") || !strings.HasSuffix(uri, "/7-fixed.jpg") {
		t.Fatalf("unexpected uri %q", uri)
	}

	file, err := store.Open(uri)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("failed to read photo: %v", err)
	}
	if string(content) != "jpeg-bytes" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestStoreRejectsForeignURIs(t *testing.T) {
	store, err := NewStore(StoreConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	for _, uri := range []string{"https://example.com/a.jpg", "file:///etc/passwd", "file:///tmp/../etc/x.jpg"} {
		if _, err := store.Open(uri); !errors.Is(err, ErrForeignURI) {
			t.Fatalf("expected foreign uri error for %q, got %v", uri, err)
		}
	}
}

func TestStoreUsesUniqueNames(t *testing.T) {
	store, err := NewStore(StoreConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	first, err := store.Save(t.Context(), 1, strings.NewReader("a"))
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	second, err := store.Save(t.Context(), 1, strings.NewReader("b"))
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct uris, got %q twice", first)
	}
}

func TestNewStoreRequiresDirectory(t *testing.T) {
	if _, err := NewStore(StoreConfig{}); !errors.Is(err, ErrMissingDirectory) {
		t.Fatalf("expected missing directory error, got %v", err)
	}
}
