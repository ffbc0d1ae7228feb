package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracediff/internal/model"
	"tracediff/internal/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func traceText(symbols string) string {
	var sb strings.Builder
	for _, r := range symbols {
		fmt.Fprintf(&sb, "0x%08x (0x00000013) x1 0x%c\n", 0x1000+4*int(r-'A'), r)
	}
	return sb.String()
}

func newFileServer(t *testing.T, left, right string, opts ...trace.Option) *Server {
	t.Helper()
	dir := t.TempDir()
	leftPath := filepath.Join(dir, "left.log")
	rightPath := filepath.Join(dir, "right.log")
	require.NoError(t, os.WriteFile(leftPath, []byte(traceText(left)), 0o644))
	require.NoError(t, os.WriteFile(rightPath, []byte(traceText(right)), 0o644))
	return NewServer(Options{
		LeftPath:   leftPath,
		RightPath:  rightPath,
		Comparator: trace.NewComparator(opts...),
	})
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	w := do(t, NewServer(Options{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, model.Version, body["version"])
}

func TestReport_NoTraces(t *testing.T) {
	w := do(t, NewServer(Options{}), httptest.NewRequest(http.MethodGet, "/api/report", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_TRACES", decode[ErrorResponse](t, w).Code)
}

func TestReport_Files(t *testing.T) {
	s := newFileServer(t, "ABCDEF", "ABXDEF")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ReportResponse](t, w)

	assert.Equal(t, "left.log", resp.Left.Name)
	assert.Equal(t, 5, resp.Stats.Matches)
	require.Len(t, resp.Hunks, 1)
	assert.Contains(t, resp.Text, "@@ HUNK #1 @@")
	assert.Equal(t, model.Version, resp.Version)

	// Cached until invalidated.
	again := decode[ReportResponse](t, do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil)))
	assert.Equal(t, resp.ID, again.ID)

	s.Invalidate()
	fresh := decode[ReportResponse](t, do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil)))
	assert.NotEqual(t, resp.ID, fresh.ID)

	s.SetReport(model.Report{ID: "pushed"})
	pushed := decode[ReportResponse](t, do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil)))
	assert.Equal(t, "pushed", pushed.ID)
}

func TestReport_Verbose(t *testing.T) {
	s := newFileServer(t, "ABC", "AXC")
	resp := decode[ReportResponse](t, do(t, s, httptest.NewRequest(http.MethodGet, "/api/report?verbose=true", nil)))
	assert.Contains(t, resp.Text, "@@ HUNK #1 @@ -1,3 +1,3")
}

func TestReport_ResourceExceeded(t *testing.T) {
	s := newFileServer(t, "ABCD", "DCBA", trace.WithMaxCells(4))

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "RESOURCE_EXCEEDED", decode[ErrorResponse](t, w).Code)
}

func TestReport_MissingFile(t *testing.T) {
	s := NewServer(Options{LeftPath: "/nonexistent/left.log", RightPath: "/nonexistent/right.log"})

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, w).Code)
}

func TestCompare_JSON(t *testing.T) {
	left, right := traceText("ABC"), traceText("ABC")
	body, err := json.Marshal(CompareRequest{Left: &left, Right: &right, LeftName: "golden.log"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/compare", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, NewServer(Options{}), req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ReportResponse](t, w)
	assert.Equal(t, "golden.log", resp.Left.Name)
	assert.Equal(t, "right", resp.Right.Name)
	assert.Empty(t, resp.Hunks)
	assert.Contains(t, resp.Text, "NO DIFFERENCES FOUND")
}

func TestCompare_JSONEmptyTrace(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(`{"left":"0x100 (0x13) x1=5","right":""}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, NewServer(Options{}), req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ReportResponse](t, w)
	assert.Equal(t, 1, resp.Stats.LeftOnly)
	assert.Zero(t, resp.Stats.Matches)
	assert.Zero(t, resp.Stats.MatchPercent)
	require.Len(t, resp.Hunks, 1)
}

func TestCompare_JSONMissingField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(`{"left": "0x0 (0x0)"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, NewServer(Options{}), req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
}

func multipartRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".log")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/compare", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCompare_Multipart(t *testing.T) {
	req := multipartRequest(t, map[string]string{"left": traceText("ABC"), "right": traceText("AXC")})
	w := do(t, NewServer(Options{}), req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ReportResponse](t, w)
	assert.Equal(t, "left.log", resp.Left.Name)
	assert.Equal(t, "right.log", resp.Right.Name)
	assert.Equal(t, 1, resp.Stats.LeftOnly)
	assert.Equal(t, 1, resp.Stats.RightOnly)
}

func TestCompare_MultipartMissingFile(t *testing.T) {
	req := multipartRequest(t, map[string]string{"left": traceText("ABC")})
	w := do(t, NewServer(Options{}), req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
}

func TestCompare_UploadTooLarge(t *testing.T) {
	req := multipartRequest(t, map[string]string{"left": traceText("ABCDEFGH"), "right": traceText("ABC")})
	w := do(t, NewServer(Options{MaxUpload: 64}), req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUnified(t *testing.T) {
	s := newFileServer(t, "ABC", "AXC")
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/unified", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/x-diff")
	assert.True(t, strings.HasPrefix(w.Body.String(), "--- left.log\n+++ right.log\n@@ -1,3 +1,3 @@"), w.Body.String())
}

func TestLineContext(t *testing.T) {
	s := newFileServer(t, "ABCDE", "ABCDE")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/line-context?side=right&line=3&radius=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	lc := decode[model.LineContext](t, w)
	assert.Equal(t, strings.TrimSpace(strings.Split(traceText("C"), "\n")[0]), lc.Target)
	assert.Len(t, lc.Before, 1)
	assert.Len(t, lc.After, 1)

	tests := []struct {
		query string
		code  int
	}{
		{"side=middle&line=1", http.StatusBadRequest},
		{"side=left&line=abc", http.StatusBadRequest},
		{"side=left&line=1&radius=-1", http.StatusBadRequest},
		{"side=left&line=99", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/line-context?"+tt.query, nil))
		assert.Equal(t, tt.code, w.Code, tt.query)
	}
}

func TestHelpAndStatic(t *testing.T) {
	s := NewServer(Options{})

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/help", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# tracediff")

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>tracediff</title>")
}

func TestMetrics(t *testing.T) {
	s := newFileServer(t, "AB", "AB")
	require.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil)).Code)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tracediff_comparisons_total{result="identical"}`)
}
