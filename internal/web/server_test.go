package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/keiba-ai/internal/apperr"
	"github.com/KaramelBytes/keiba-ai/internal/predict"
	"github.com/KaramelBytes/keiba-ai/internal/racecard"
)

const sampleCSV = "馬番,馬名,総合評価,近走指数,スピード指数\n1,サンプルA,90,90,90\n2,サンプルB,,,\n3,サンプルC,50,,50\n"

type stubSource struct {
	ds  *racecard.Dataset
	err error
}

func (s stubSource) Load(context.Context) (*racecard.Dataset, error) { return s.ds, s.err }

type echoGateway struct{}

func (echoGateway) Generate(_ context.Context, prompt, _ string) (string, error) {
	return "narrative for: " + strings.SplitN(prompt, "\n", 2)[0], nil
}

func newTestServer(t *testing.T, src predict.Source) (*Server, http.Handler) {
	t.Helper()
	s := &Server{
		Service:     &predict.Service{Gateway: echoGateway{}},
		Source:      src,
		Sessions:    NewSessions(time.Hour),
		UploadLimit: 1 << 20,
	}
	return s, s.Router()
}

func sampleSource(t *testing.T) stubSource {
	t.Helper()
	ds, err := racecard.FromUpload("sample.csv", []byte(sampleCSV))
	require.NoError(t, err)
	return stubSource{ds: ds}
}

func uploadRequest(t *testing.T, name string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIndexRendersTabs(t *testing.T) {
	_, h := newTestServer(t, sampleSource(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{"総合予想", "単体評価", "サイン理論", "中山実績指数"} {
		assert.Contains(t, body, want)
	}
}

func TestPredictFallsBackToSource(t *testing.T) {
	_, h := newTestServer(t, sampleSource(t))
	req := httptest.NewRequest(http.MethodPost, "/predict", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var v predict.OverallView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Len(t, v.Rows, 3)
	assert.Equal(t, "サンプルA", v.Rows[0].Name)
	assert.Equal(t, "サンプルB", v.Rows[2].Name)
	assert.Nil(t, v.Rows[2].Composite)
	assert.Equal(t, "✕危険馬", v.Rows[2].Label)
	assert.True(t, strings.HasPrefix(v.Narrative, "narrative for:"))
}

func TestPredictHTML(t *testing.T) {
	_, h := newTestServer(t, sampleSource(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "サンプルA")
	assert.Contains(t, body, "三連複フォーメーション")
	assert.Contains(t, body, "narrative for:")
}

func TestNoDataIsServiceUnavailable(t *testing.T) {
	src := stubSource{err: apperr.Errorf(apperr.KindDataUnavailable, "load race card", "nothing")}
	_, h := newTestServer(t, src)
	req := httptest.NewRequest(http.MethodGet, "/api/scores", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "data_unavailable")
}

func TestUploadIsUsedBySession(t *testing.T) {
	s, h := newTestServer(t, sampleSource(t))

	csv := "馬番,馬名,総合評価\n7,アップロード馬,88\n8,二番手,70\n"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "mine.csv", []byte(csv)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "mine.csv を読み込みました (2頭)")
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, 1, s.Sessions.Len())

	req := httptest.NewRequest(http.MethodGet, "/api/scores", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Dataset struct {
			Source   string `json:"source"`
			Uploaded bool   `json:"uploaded"`
		} `json:"dataset"`
		Rows []predict.Row `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "mine.csv", out.Dataset.Source)
	assert.True(t, out.Dataset.Uploaded)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, 7, out.Rows[0].Number)

	// without the cookie the configured source is used
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scores", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "sample.csv", out.Dataset.Source)
}

func TestUploadRejectsUnreadableFile(t *testing.T) {
	_, h := newTestServer(t, sampleSource(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "bad.xlsx", []byte("not a zip")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	s, _ := newTestServer(t, sampleSource(t))
	s.UploadLimit = 64
	h := s.Router()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "big.csv", bytes.Repeat([]byte("a,b\n"), 200)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestEvaluate(t *testing.T) {
	_, h := newTestServer(t, sampleSource(t))

	req := httptest.NewRequest(http.MethodGet, "/api/evaluate/1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var v predict.SingleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Evaluation.Found)
	assert.Equal(t, "サンプルA", v.Evaluation.Name)

	form := url.Values{"number": {"abc"}}
	req = httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignWithCustomEvents(t *testing.T) {
	_, h := newTestServer(t, sampleSource(t))
	form := url.Values{"events": {"記念: 1 3 30"}}
	req := httptest.NewRequest(http.MethodPost, "/sign", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v predict.SignView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, []int{1, 3}, v.Plan.Numbers)
	assert.Len(t, v.Matches, 2)

	form = url.Values{"events": {"no separator"}}
	req = httptest.NewRequest(http.MethodPost, "/sign", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	_, h := newTestServer(t, sampleSource(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"llm":"enabled"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keiba_http_requests_total")
}

func TestSessionsExpire(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Date(2025, 12, 28, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.Put("a", &racecard.Dataset{Source: "x"})
	_, ok := s.Get("a")
	assert.True(t, ok)
	now = now.Add(2 * time.Minute)
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}
