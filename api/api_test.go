package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"incidentwatch/pipeline"
	"incidentwatch/types"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p, err := pipeline.New(pipeline.Config{})
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(p)
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const body = "Residents said security forces closed several roads on Thursday evening after a " +
	"gathering outside the municipal building grew larger than expected and shops shut early."

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCheckDuplicate(t *testing.T) {
	r := newTestRouter(t)
	now := time.Now()
	req := CheckDuplicateRequest{
		Article: &types.Article{ID: "new", Content: body, PublishedAt: now},
		Window:  []*types.Article{{ID: "old", Content: body, PublishedAt: now.Add(-time.Hour)}},
	}
	w := do(t, r, http.MethodPost, "/api/deduplication/check", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp CheckDuplicateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.IsDuplicate || resp.Decision.Kind != types.DuplicateExact || resp.Decision.MatchingID != "old" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCheckDuplicateRejectsMissingArticle(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodPost, "/api/deduplication/check", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestProcessBatch(t *testing.T) {
	req := ProcessBatchRequest{Articles: []*types.Article{
		{ID: "a", Content: body},
		{ID: "b", Content: body},
	}}
	w := do(t, newTestRouter(t), http.MethodPost, "/api/deduplication/process", req)
	var resp ProcessBatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Unique != 1 || resp.Exact != 1 || len(resp.Results) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Results[1].Status != types.StatusDuplicate {
		t.Fatalf("second article status = %s", resp.Results[1].Status)
	}
}

func TestExtractionPreview(t *testing.T) {
	req := ExtractionPreviewRequest{Article: &types.Article{
		ID:      "x",
		Content: "Large protest in Tehran, several arrested near the university",
	}}
	w := do(t, newTestRouter(t), http.MethodPost, "/api/extraction/preview", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Incidents []struct {
			Type        types.IncidentType `json:"type"`
			Persistable bool               `json:"persistable"`
		} `json:"incidents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Incidents) < 2 || resp.Incidents[0].Type == "" {
		t.Fatalf("expected at least 2 incidents, got %+v", resp.Incidents)
	}
}

func TestPipelineRun(t *testing.T) {
	r := newTestRouter(t)

	if w := do(t, r, http.MethodPost, "/api/pipeline/run", map[string]any{"articles": []any{}}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status = %d", w.Code)
	}

	batch := types.ArticleBatch{Articles: []*types.Article{{
		ID:          "p1",
		Content:     "Large protest in Tehran, several arrested near the university",
		PublishedAt: time.Now().Add(-time.Hour),
	}}}
	w := do(t, r, http.MethodPost, "/api/pipeline/run", batch)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var report pipeline.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Fetched != 1 || report.Unique != 1 || len(report.Incidents) == 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestAnalyze(t *testing.T) {
	at := time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)
	loc := func(lat float64) *types.Location {
		return &types.Location{Lat: lat, Lon: 51.389, Address: "Tehran", Resolved: true}
	}
	req := AnalyzeRequest{Incidents: []*types.Incident{
		{ID: "a", Type: types.IncidentProtest, Confidence: 60, Timestamp: at, Reporter: "one", Location: loc(35.689), SourceArticle: types.ArticleRef{ID: "sa"}},
		{ID: "b", Type: types.IncidentProtest, Confidence: 60, Timestamp: at.Add(time.Hour), Reporter: "two", Location: loc(35.690), SourceArticle: types.ArticleRef{ID: "sb"}},
	}}
	w := do(t, newTestRouter(t), http.MethodPost, "/api/corroboration/analyze", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Incidents []*types.Incident `json:"incidents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Incidents) != 2 || resp.Incidents[0].Confidence <= 60 {
		t.Fatalf("expected corroborated incidents, got %+v", resp.Incidents)
	}
}

func TestLatestGroupsWithoutStore(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodGet, "/api/corroboration/groups", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}
