package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func newTestManager(t *testing.T) (*Manager, *fixedClock) {
	t.Helper()

	clock := &fixedClock{current: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		CookieName: "test_session",
		HashKey:    []byte("12345678901234567890123456789012"),
		BlockKey:   []byte("abcdefghijklmnopqrstuv0123456789"),
		Lifetime:   2 * time.Hour,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return mgr, clock
}

func roundTrip(t *testing.T, mgr *Manager, data Data) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, data); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestManager_NewSessionLifecycle(t *testing.T) {
	mgr, clock := newTestManager(t)

	data, fresh := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if !fresh {
		t.Fatalf("expected a fresh session without cookie")
	}
	if data.ID == "" {
		t.Fatalf("expected session ID")
	}
	if !data.CreatedAt.Equal(clock.current) || !data.ExpiresAt.Equal(clock.current.Add(2*time.Hour)) {
		t.Fatalf("unexpected timestamps %+v", data)
	}

	loaded, fresh := mgr.Load(roundTrip(t, mgr, data))
	if fresh {
		t.Fatalf("expected cookie to be accepted")
	}
	if loaded.ID != data.ID {
		t.Fatalf("expected id %q, got %q", data.ID, loaded.ID)
	}
}

func TestManager_CookieAttributes(t *testing.T) {
	mgr, _ := newTestManager(t)
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, mgr.New()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "test_session" || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Fatalf("unexpected cookie %+v", c)
	}
	if c.MaxAge != int((2 * time.Hour).Seconds()) {
		t.Fatalf("unexpected max age %d", c.MaxAge)
	}
}

func TestManager_ExpiredSessionStartsFresh(t *testing.T) {
	mgr, clock := newTestManager(t)
	data := mgr.New()
	req := roundTrip(t, mgr, data)

	clock.current = clock.current.Add(3 * time.Hour)
	loaded, fresh := mgr.Load(req)
	if !fresh || loaded.ID == data.ID {
		t.Fatalf("expected expired session to be replaced")
	}
}

func TestManager_TamperedCookieStartsFresh(t *testing.T) {
	mgr, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "not-a-valid-cookie"})

	if _, fresh := mgr.Load(req); !fresh {
		t.Fatalf("expected tampered cookie to be rejected")
	}
}

func TestNewManagerValidatesKeys(t *testing.T) {
	if _, err := NewManager(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without hash key, got %v", err)
	}
	if _, err := NewManager(Config{HashKey: []byte("k"), BlockKey: []byte("short")}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for bad block key, got %v", err)
	}
}
