package rendercache

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"testing"
)

func TestStore_SaveThenExists(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	name := "usr_1.large.abcd1234abcd1234.png"
	if store.Exists(name) {
		t.Error("Exists() = true before Save")
	}

	data := []byte("png bytes")
	if err := store.Save(name, data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !store.Exists(name) {
		t.Error("Exists() = false immediately after Save")
	}

	got, err := store.Read(name)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read() = %q, want %q", got, data)
	}
}

func TestStore_NoTemporaryLeftovers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	name := "usr_1.large.svg"
	if err := store.Save(name, []byte("<svg/>")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name()[0] == '.' {
			t.Errorf("temporary %q left behind after Save", e.Name())
		}
	}
	if len(entries) != 1 || entries[0].Name() != name {
		t.Errorf("dir contains %d entries, want only %q", len(entries), name)
	}
}

func TestStore_ConcurrentSavesNeverTruncated(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	// Two writers racing on the same name: either result is valid, but a
	// reader must never observe a partial file.
	name := "usr_2.large.deadbeefdeadbeef.png"
	a := bytes.Repeat([]byte("a"), 64*1024)
	b := bytes.Repeat([]byte("b"), 64*1024)

	var wg sync.WaitGroup
	for _, payload := range [][]byte{a, b} {
		wg.Add(1)
		go func(p []byte) {
			defer wg.Done()
			if err := store.Save(name, p); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(payload)
	}
	wg.Wait()

	got, err := store.Read(name)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, a) && !bytes.Equal(got, b) {
		t.Errorf("Read() returned %d bytes matching neither writer", len(got))
	}
}

func TestStore_RejectsEscapingNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	for _, name := range []string{"", "..", "../evil.png", "a/b.png", ".hidden"} {
		if store.Exists(name) {
			t.Errorf("Exists(%q) = true, want false", name)
		}
		if err := store.Save(name, []byte("x")); !errors.Is(err, ErrBadFilename) {
			t.Errorf("Save(%q) error = %v, want ErrBadFilename", name, err)
		}
		if _, err := store.Read(name); !errors.Is(err, ErrBadFilename) {
			t.Errorf("Read(%q) error = %v, want ErrBadFilename", name, err)
		}
	}
}
