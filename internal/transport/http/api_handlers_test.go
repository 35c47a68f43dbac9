package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/johna108/comic-sync/internal/core"
)

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s body: %v", url, err)
	}
	return resp.StatusCode
}

func TestHealthReportsCounts(t *testing.T) {
	s := startTestServer(t)

	var body HealthResponse
	if code := getJSON(t, s.http.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Status != "ok" || body.Rooms != 0 || body.ActiveBrowsers != 0 {
		t.Fatalf("unexpected health body %+v", body)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", body.Timestamp)
	}

	if _, err := s.registry.JoinOrCreate("ROOM", core.Member{ConnID: "a", Name: "alice"}, true, ""); err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	waitForCond(t, "active browser", func() bool {
		var b HealthResponse
		getJSON(t, s.http.URL+"/health", &b)
		return b.Rooms == 1 && b.ActiveBrowsers == 1
	})
}

func TestRoomInfoForUnknownRoom(t *testing.T) {
	s := startTestServer(t)

	var body ErrorResponse
	if code := getJSON(t, s.http.URL+"/api/room/NOPE", &body); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if body.Exists || body.Error != "Room not found" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRoomInfoForLiveRoom(t *testing.T) {
	s := startTestServer(t)

	if _, err := s.registry.JoinOrCreate("ROOM", core.Member{ConnID: "a", Name: "alice"}, true, "https://comic.example/ep1"); err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	var body RoomInfoResponse
	if code := getJSON(t, s.http.URL+"/api/room/ROOM", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !body.Exists || body.RoomCode != "ROOM" || body.UserCount != 1 || body.ContentURL != "https://comic.example/ep1" {
		t.Fatalf("unexpected body %+v", body)
	}
}
