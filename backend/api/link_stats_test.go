package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/dbehnke/nexus-core/backend/database"
	"github.com/dbehnke/nexus-core/backend/models"
	"github.com/dbehnke/nexus-core/backend/repository"
)

func newLinkStatsAPI(t *testing.T) *API {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "stats.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.CloseSafe() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &API{LinkStats: repository.NewLinkStatsRepo(db.DB)}
}

func TestLinkStatByNodeHandler_Found(t *testing.T) {
	a := newLinkStatsAPI(t)
	if err := a.LinkStats.Upsert(context.Background(), models.LinkStat{Node: 2000, TotalTxSeconds: 42}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/link-stats/2000", nil)
	req.SetPathValue("node", "2000")
	w := httptest.NewRecorder()
	a.LinkStatByNodeHandler(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Result().StatusCode)
	}
	var body struct {
		Stat models.LinkStat `json:"stat"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Stat.Node != 2000 || body.Stat.TotalTxSeconds != 42 {
		t.Fatalf("unexpected stat: %+v", body.Stat)
	}
}

func TestLinkStatByNodeHandler_NotFound(t *testing.T) {
	a := newLinkStatsAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/link-stats/9999", nil)
	req.SetPathValue("node", "9999")
	w := httptest.NewRecorder()
	a.LinkStatByNodeHandler(w, req)
	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Result().StatusCode)
	}
}

func TestLinkStatByNodeHandler_BadNode(t *testing.T) {
	a := newLinkStatsAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/link-stats/abc", nil)
	req.SetPathValue("node", "abc")
	w := httptest.NewRecorder()
	a.LinkStatByNodeHandler(w, req)
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Result().StatusCode)
	}
}
