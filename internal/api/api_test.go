package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retronews/retronews/internal/api"
	"github.com/retronews/retronews/internal/article"
	"github.com/retronews/retronews/internal/feed"
	"github.com/retronews/retronews/internal/imaging"
	"github.com/retronews/retronews/internal/logger"
	"github.com/retronews/retronews/internal/source"
	"github.com/retronews/retronews/internal/traffic"
)

type fakeMirror struct {
	items    []feed.Item
	art      article.Article
	feedErr  error
	artErr   error
	lastItem string
}

func (f *fakeMirror) Feed(ctx context.Context, v source.Variant) ([]feed.Item, error) {
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	return f.items, nil
}

func (f *fakeMirror) Article(ctx context.Context, v source.Variant, itemID string) (article.Article, error) {
	f.lastItem = itemID
	if f.artErr != nil {
		return article.Article{}, f.artErr
	}
	return f.art, nil
}

type fakeTraffic struct {
	snap        traffic.Snapshot
	err         error
	invalidated int
}

func (f *fakeTraffic) Snapshot(ctx context.Context) (traffic.Snapshot, error) {
	if f.err != nil {
		return traffic.Snapshot{}, f.err
	}
	return f.snap, nil
}

func (f *fakeTraffic) Invalidate() { f.invalidated++ }

type fakeImages struct {
	payload    string
	err        error
	lastFormat imaging.Format
	lastURL    string
}

func (f *fakeImages) Transcode(ctx context.Context, url string, w, h int, format imaging.Format) (io.ReadCloser, error) {
	f.lastFormat = format
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.payload)), nil
}

func fixedClock() time.Time {
	return time.Date(2026, 8, 28, 12, 4, 0, 0, time.UTC)
}

func newRouter(m *fakeMirror, tr *fakeTraffic, img *fakeImages) http.Handler {
	return api.SetupRouter(api.Params{
		Mirror:      m,
		Traffic:     tr,
		Images:      img,
		ImageWidth:  96,
		ImageHeight: 96,
		Logger:      logger.NewNoOp(),
		Now:         fixedClock,
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newRouter(&fakeMirror{}, &fakeTraffic{}, &fakeImages{}),
		http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(api.RequestIDHeader))
}

func TestFeed_ReturnsListing(t *testing.T) {
	t.Parallel()

	m := &fakeMirror{items: []feed.Item{
		{ID: "100", Title: "Erste Meldung"},
		{ID: "200", Title: "Zweite Meldung"},
	}}
	rec := doRequest(t, newRouter(m, &fakeTraffic{}, &fakeImages{}),
		http.MethodGet, "/feed/news", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	assert.Equal(t, "news", body["variant"])
	assert.Equal(t, "ORF News", body["title"])
	assert.Len(t, body["items"], 2)
	assert.NotEmpty(t, body["formatted_date"])
}

func TestFeed_UnknownVariant(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newRouter(&fakeMirror{}, &fakeTraffic{}, &fakeImages{}),
		http.MethodGet, "/feed/weather", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeed_UpstreamFailureIsBadGateway(t *testing.T) {
	t.Parallel()

	m := &fakeMirror{feedErr: errors.New("connection refused")}
	rec := doRequest(t, newRouter(m, &fakeTraffic{}, &fakeImages{}),
		http.MethodGet, "/feed/news", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestArticle_ReturnsArticleWithFreshDate(t *testing.T) {
	t.Parallel()

	m := &fakeMirror{art: article.Article{
		ID:         "12345",
		Title:      "Titel",
		Paragraphs: []string{"Absatz eins"},
	}}
	rec := doRequest(t, newRouter(m, &fakeTraffic{}, &fakeImages{}),
		http.MethodGet, "/feed/sport/12345", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", m.lastItem)

	body := decodeBody(t, rec)
	art, ok := body["article"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Titel", art["title"])
	// Vienna is UTC+2 in August.
	assert.Equal(t, "28.8. 14:04", art["formatted_date"])
}

func TestArticle_MissingStoryIs404(t *testing.T) {
	t.Parallel()

	m := &fakeMirror{artErr: &article.StatusError{Code: http.StatusNotFound, URL: "https://orf.at/stories/1/"}}
	rec := doRequest(t, newRouter(m, &fakeTraffic{}, &fakeImages{}),
		http.MethodGet, "/feed/news/1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImage_StreamsWBMPByDefault(t *testing.T) {
	t.Parallel()

	m := &fakeMirror{art: article.Article{ID: "5", Image: "https://orf.at/img/lead.jpg"}}
	img := &fakeImages{payload: "wbmp-bytes"}
	rec := doRequest(t, newRouter(m, &fakeTraffic{}, img),
		http.MethodGet, "/aimg/news/5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/vnd.wap.wbmp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "wbmp-bytes", rec.Body.String())
	assert.Equal(t, imaging.FormatWBMP, img.lastFormat)
	assert.Equal(t, "https://orf.at/img/lead.jpg", img.lastURL)
}

func TestImage_GifWhenAccepted(t *testing.T) {
	t.Parallel()

	m := &fakeMirror{art: article.Article{ID: "5", Image: "https://orf.at/img/lead.jpg"}}
	img := &fakeImages{payload: "gif-bytes"}
	rec := doRequest(t, newRouter(m, &fakeTraffic{}, img),
		http.MethodGet, "/aimg/news/5", map[string]string{"Accept": "image/gif, */*"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, imaging.FormatGIF, img.lastFormat)
}

func TestImage_ArticleWithoutImageIs404(t *testing.T) {
	t.Parallel()

	m := &fakeMirror{art: article.Article{ID: "5"}}
	rec := doRequest(t, newRouter(m, &fakeTraffic{}, &fakeImages{}),
		http.MethodGet, "/aimg/news/5", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImage_SourceFailureIsBadGateway(t *testing.T) {
	t.Parallel()

	m := &fakeMirror{art: article.Article{ID: "5", Image: "https://orf.at/img/gone.jpg"}}
	img := &fakeImages{err: &imaging.SourceError{Code: http.StatusNotFound, URL: "https://orf.at/img/gone.jpg"}}
	rec := doRequest(t, newRouter(m, &fakeTraffic{}, img),
		http.MethodGet, "/aimg/news/5", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTraffic_ReturnsSnapshot(t *testing.T) {
	t.Parallel()

	tr := &fakeTraffic{snap: traffic.Snapshot{TrafficItems: []traffic.Item{
		{Text: "Stau auf der A1", Street: "A1", District: "St. P&#246;lten"},
	}}}
	rec := doRequest(t, newRouter(&fakeMirror{}, tr, &fakeImages{}),
		http.MethodGet, "/verkehr", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["traffic_items"], 1)
}

func TestTrafficInvalidate_Idempotent(t *testing.T) {
	t.Parallel()

	tr := &fakeTraffic{}
	handler := newRouter(&fakeMirror{}, tr, &fakeImages{})

	for range 2 {
		rec := doRequest(t, handler, http.MethodPost, "/verkehr/invalidate", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, tr.invalidated)
}

func TestStats_CountsRequests(t *testing.T) {
	t.Parallel()

	handler := newRouter(&fakeMirror{feedErr: errors.New("down")}, &fakeTraffic{}, &fakeImages{})

	doRequest(t, handler, http.MethodGet, "/health", nil)
	doRequest(t, handler, http.MethodGet, "/feed/news", nil)

	rec := doRequest(t, handler, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	// health + failed feed; the stats request itself is not yet counted
	// when the snapshot is taken.
	assert.Equal(t, float64(2), body["request_count"])
	assert.Equal(t, float64(1), body["error_count"])
	assert.Equal(t, float64(1), body["upstream_failures"])
}

func TestRequestID_ClientValueHonored(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newRouter(&fakeMirror{}, &fakeTraffic{}, &fakeImages{}),
		http.MethodGet, "/health", map[string]string{api.RequestIDHeader: "req-abc"})

	assert.Equal(t, "req-abc", rec.Header().Get(api.RequestIDHeader))
}
