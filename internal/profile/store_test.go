package profile

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestStore_PutGetDelete(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Get("absent"); err != nil || ok {
		t.Errorf("Get(absent) = ok=%v err=%v, want miss without error", ok, err)
	}

	if err := s.Put("users/usr_1", []byte(`{"id":"usr_1"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok, err := s.Get("users/usr_1")
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte(`{"id":"usr_1"}`)) {
		t.Errorf("Get() = %q", got)
	}

	if err := s.Delete("users/usr_1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get("users/usr_1"); ok {
		t.Error("Get() after Delete should miss")
	}
	// Idempotent.
	if err := s.Delete("users/usr_1"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if err := s.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = s2.Close() }()
	got, ok, err := s2.Get("k")
	if err != nil || !ok || string(got) != "v" {
		t.Errorf("Get() after reopen = %q ok=%v err=%v", got, ok, err)
	}
	if err := s2.Ping(); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
