package profile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "profile.db"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func userHandler(t *testing.T, hits *atomic.Int64) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		id := r.URL.Path[len("/users/"):]
		if id == "usr_missing" {
			http.Error(w, `{"error":{}}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(User{
			ID:          id,
			Username:    "serialuart",
			DisplayName: "serialuart",
			Pronouns:    "they/any",
			State:       "online",
			Status:      "active",
		})
	})
	return mux
}

func TestGetUser_CachesWithTTL(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(userHandler(t, &hits))
	defer srv.Close()

	store := openTestStore(t)
	c, err := NewClient(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, store, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx := context.Background()
	first, err := c.GetUser(ctx, "usr_abc")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if first.DisplayName != "serialuart" {
		t.Errorf("DisplayName = %q", first.DisplayName)
	}

	// Within the TTL the upstream must not be contacted again.
	if _, err := c.GetUser(ctx, "usr_abc"); err != nil {
		t.Fatalf("GetUser() cached error = %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hit %d times, want 1", n)
	}

	// Past the TTL the record is refetched.
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := c.GetUser(ctx, "usr_abc"); err != nil {
		t.Fatalf("GetUser() after expiry error = %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("upstream hit %d times after expiry, want 2", n)
	}
}

func TestGetUser_NotFoundCachedNegatively(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(userHandler(t, &hits))
	defer srv.Close()

	store := openTestStore(t)
	c, err := NewClient(Config{BaseURL: srv.URL}, store, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.GetUser(ctx, "usr_missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetUser(missing) error = %v, want ErrNotFound", err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hit %d times for a cached negative, want 1", n)
	}
}

func TestGetUser_InvalidID(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:0"}, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	for _, id := range []string{"", "../etc", "usr abc", "usr/1"} {
		if _, err := c.GetUser(context.Background(), id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("GetUser(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestGetUser_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(User{ID: "usr_x", DisplayName: "x"})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	user, err := c.GetUser(context.Background(), "usr_x")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.DisplayName != "x" {
		t.Errorf("DisplayName = %q", user.DisplayName)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("upstream hit %d times, want 2 (one retry)", n)
	}
}

func TestGetUser_RelogsInOnStaleSession(t *testing.T) {
	var unauthorizedOnce atomic.Bool
	unauthorizedOnce.Store(true)
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/user", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			http.Error(w, "{}", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "auth", Value: "session"})
		_, _ = w.Write([]byte(`{"displayName":"service"}`))
	})
	mux.HandleFunc("/users/usr_y", func(w http.ResponseWriter, r *http.Request) {
		if unauthorizedOnce.Swap(false) {
			http.Error(w, "{}", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(User{ID: "usr_y", DisplayName: "y"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := openTestStore(t)
	c, err := NewClient(Config{BaseURL: srv.URL, Username: "svc", Password: "pw"}, store, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	user, err := c.GetUser(context.Background(), "usr_y")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.DisplayName != "y" {
		t.Errorf("DisplayName = %q", user.DisplayName)
	}

	// The session cookie must have been persisted for the next process.
	if _, ok, _ := store.Get("cookies"); !ok {
		t.Error("session cookies were not persisted")
	}
}

func TestValidID(t *testing.T) {
	valid := []string{"usr_8f2a", "USR-1", "abc_def-123"}
	invalid := []string{"", "a b", "a/b", "a.b", "usr\n1"}
	for _, id := range valid {
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true, want false", id)
		}
	}
}

func TestUser_AvatarURL(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"override wins", User{ProfilePicOverride: "o", UserIcon: "i", AvatarThumbnail: "t"}, "o"},
		{"icon next", User{UserIcon: "i", AvatarThumbnail: "t"}, "i"},
		{"thumbnail last", User{AvatarThumbnail: "t"}, "t"},
		{"nothing", User{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.AvatarURL(); got != tt.want {
				t.Errorf("AvatarURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
