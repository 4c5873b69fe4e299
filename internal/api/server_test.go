package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"imgcat/internal/api"
	"imgcat/internal/catalog"
	"imgcat/internal/logging"
	"imgcat/internal/testsupport"
)

func newTestServer(t *testing.T) (*httptest.Server, *catalog.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	srv := httptest.NewServer(api.NewServer("127.0.0.1:0", store, logging.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func TestVersionSummary(t *testing.T) {
	srv, store := newTestServer(t)
	v1 := testsupport.MustVersion(t, store, 1, 0, 1)
	coll := testsupport.MustInsertChild(t, store, v1.ID, catalog.LevelCollection, "c1", 1, 1)
	testsupport.MustInsertChild(t, store, coll.ID, catalog.LevelPatient, "p1", 1, 1)
	testsupport.MustInsertChild(t, store, coll.ID, catalog.LevelPatient, "p2", 1, 1)

	var summary api.VersionSummary
	getJSON(t, srv.URL+"/api/versions/1", http.StatusOK, &summary)
	if summary.Version.Number != 1 || summary.Version.SurrogateID != v1.ID || summary.Version.Done {
		t.Fatalf("unexpected version payload %+v", summary.Version)
	}
	if len(summary.Levels) != len(catalog.Levels)-1 || summary.Levels[0].Level != "collection" {
		t.Fatalf("expected levels below the version, got %+v", summary.Levels)
	}
	if summary.Levels[1].Live != 2 {
		t.Fatalf("expected 2 patients, got %+v", summary.Levels[1])
	}
}

func TestVersionList(t *testing.T) {
	srv, store := newTestServer(t)
	testsupport.MustVersion(t, store, 1, 0, 0)
	testsupport.MustVersion(t, store, 2, 0, 0)

	var list api.VersionListResponse
	getJSON(t, srv.URL+"/api/versions", http.StatusOK, &list)
	if len(list.Versions) != 2 || list.Versions[0].Number != 2 {
		t.Fatalf("expected versions newest first, got %+v", list.Versions)
	}
}

func TestVersionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	var body api.ErrorResponse
	getJSON(t, srv.URL+"/api/versions/9", http.StatusNotFound, &body)
	if body.Error == "" {
		t.Fatal("expected error message")
	}
	getJSON(t, srv.URL+"/api/versions/abc", http.StatusNotFound, nil)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}
