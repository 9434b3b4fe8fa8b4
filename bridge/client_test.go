package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DEVICE_BRIDGE_URL", "http://bridge.local/")
	t.Setenv("DEVICE_BRIDGE_API_KEY", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got, want := cfg.BaseURL, "http://bridge.local"; got != want {
		t.Errorf("BaseURL = %q, want trailing slash trimmed %q", got, want)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q, want secret", cfg.APIKey)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("DEVICE_BRIDGE_URL", "")
	t.Setenv("DEVICE_BRIDGE_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig accepted empty environment")
	}
}

func TestNewClient_MissingConfig(t *testing.T) {
	if _, err := NewClient(&Config{}); err == nil {
		t.Error("NewClient accepted empty config")
	}
	if _, err := NewClient(nil); err == nil {
		t.Error("NewClient accepted nil config")
	}
}

func TestFetchSnapshots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.Header.Get("Authorization"), "Bearer key123"; got != want {
			t.Errorf("Authorization = %q, want %q", got, want)
		}
		if got, want := r.URL.Path, "/v1/snapshots"; got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
		if got, want := r.URL.Query().Get("user"), "user1"; got != want {
			t.Errorf("user param = %q, want %q", got, want)
		}
		if r.URL.Query().Get("since") == "" {
			t.Error("since param missing")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"snapshots": [
			{"id": "snap1", "capturedAt": "2026-08-20T07:00:00Z", "data": {"sleep": {"hours": 7.5}}},
			{"id": "snap2", "capturedAt": "2026-08-20T22:00:00Z", "data": {"activity": {"steps": 9000}}}
		]}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, APIKey: "key123"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	since := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)
	snapshots, err := client.FetchSnapshots(context.Background(), "user1", since)
	if err != nil {
		t.Fatalf("FetchSnapshots returned error: %v", err)
	}

	if got, want := len(snapshots), 2; got != want {
		t.Fatalf("len(snapshots) = %d, want %d", got, want)
	}
	if snapshots[0].ID != "snap1" || snapshots[1].ID != "snap2" {
		t.Errorf("snapshot ids = %q, %q", snapshots[0].ID, snapshots[1].ID)
	}
	sleep, ok := snapshots[0].Data["sleep"].(map[string]any)
	if !ok || sleep["hours"] != 7.5 {
		t.Errorf("snap1 data = %v, want sleep.hours 7.5", snapshots[0].Data)
	}
}

func TestFetchSnapshots_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, APIKey: "key123"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if _, err := client.FetchSnapshots(context.Background(), "user1", time.Time{}); err == nil {
		t.Error("FetchSnapshots swallowed API error")
	}
}
