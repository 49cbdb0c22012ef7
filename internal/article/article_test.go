package article_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retronews/retronews/internal/article"
	"github.com/retronews/retronews/internal/logger"
	"github.com/retronews/retronews/internal/source"
)

// storyFixture is a news/sport style page: lead headline, lazy-loaded figure
// image, no teaser, three real paragraphs and one empty one.
const storyFixture = `<!DOCTYPE html>
<html><body>
  <h1 class="story-lead-headline">Budget fix: Koalition einigt sich</h1>
  <div class="story-content">
    <div>
      <figure class="image">
        <img data-src="https://orf.at/img/lead.jpg" src="placeholder.gif">
      </figure>
    </div>
  </div>
  <div class="story-story">
    <p>Erster Absatz &uuml;ber das Budget.</p>
    <p></p>
    <p>Zweiter Absatz mit einem <a href="https://orf.at/stories/1/">Link</a>.</p>
    <p>Dritter Absatz.<br>Mit Umbruch.</p>
  </div>
</body></html>`

// oe3Fixture is an Ö3 style page with a teaser that short-circuits the body.
const oe3Fixture = `<!DOCTYPE html>
<html><body>
  <div id="ss-storyText">
    <h1>Ö3-Wecker mit dem Kanzler</h1>
    <p>Dieser Absatz wird vom Teaser verdrängt.</p>
  </div>
  <div class="storyWrapper">
    <img src="https://oe3.orf.at/img/teaser.jpg">
  </div>
  <div class="teaser">
    <strong>Stocker &amp; Co am Dienstag im Wecker.</strong>
  </div>
</body></html>`

func parseDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func ruleFor(t *testing.T, v source.Variant) source.ExtractionRule {
	t.Helper()
	cfg, ok := source.Lookup(v)
	require.True(t, ok)
	return cfg.Rule
}

func TestExtract_StoryLayout(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, storyFixture)
	art := article.Extract(doc, ruleFor(t, source.VariantNews), "12345")

	assert.Equal(t, "12345", art.ID)
	assert.Equal(t, "Budget fix: Koalition einigt sich", art.Title)

	// The lazy-load attribute wins over the placeholder src.
	assert.Equal(t, "https://orf.at/img/lead.jpg", art.Image)

	// Empty paragraph dropped, order preserved.
	require.Len(t, art.Paragraphs, 3)
	assert.Equal(t, "Erster Absatz &#252;ber das Budget.", art.Paragraphs[0])
	assert.Contains(t, art.Paragraphs[1], `<a href="https://orf.at/stories/1/">Link</a>`)
	assert.Contains(t, art.Paragraphs[2], "<br />")
	assert.NotContains(t, art.Paragraphs[2], "<br>")
}

func TestExtract_TitleFallbackSelector(t *testing.T) {
	t.Parallel()

	const fixture = `<html><body>
	  <div id="ss-storyText"><h1>Fallback Titel</h1></div>
	</body></html>`

	art := article.Extract(parseDoc(t, fixture), ruleFor(t, source.VariantNews), "1")
	assert.Equal(t, "Fallback Titel", art.Title)
}

func TestExtract_LeadTeaserShortCircuitsBody(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, oe3Fixture)
	art := article.Extract(doc, ruleFor(t, source.VariantOE3), "777")

	assert.Equal(t, "&#214;3-Wecker mit dem Kanzler", art.Title)
	assert.Equal(t, "https://oe3.orf.at/img/teaser.jpg", art.Image)

	require.Len(t, art.Paragraphs, 1)
	assert.Equal(t, "Stocker &amp; Co am Dienstag im Wecker.", art.Paragraphs[0])
}

func TestExtract_ParagraphSanitation(t *testing.T) {
	t.Parallel()

	const fixture = `<html><body>
	  <div class="story-story">
	    <p><strong></strong></p>
	    <p>Brot &amp; Spiele</p>
	  </div>
	</body></html>`

	art := article.Extract(parseDoc(t, fixture), ruleFor(t, source.VariantNews), "1")

	require.Len(t, art.Paragraphs, 1)
	assert.Equal(t, "Brot &amp; Spiele", art.Paragraphs[0])
}

func TestExtract_DegradesGracefully(t *testing.T) {
	t.Parallel()

	art := article.Extract(parseDoc(t, "<html><body><p>nichts</p></body></html>"),
		ruleFor(t, source.VariantNews), "42")

	assert.Equal(t, "42", art.ID)
	assert.Empty(t, art.Title)
	assert.Empty(t, art.Image)
	assert.Empty(t, art.Paragraphs)
	assert.NotEmpty(t, art.FormattedDate)
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	rule := ruleFor(t, source.VariantNews)
	first := article.Extract(parseDoc(t, storyFixture), rule, "12345")
	second := article.Extract(parseDoc(t, storyFixture), rule, "12345")

	assert.Equal(t, first, second)
}

func newTestExtractor() *article.Extractor {
	return article.NewExtractor(&http.Client{Timeout: 5 * time.Second}, "retronews-test/1.0", logger.NewNoOp())
}

// serverConfig points the news variant's story base at the test server.
func serverConfig(baseURL string) source.Config {
	cfg, _ := source.Lookup(source.VariantNews)
	cfg.StoryURL = baseURL + "/stories"
	return cfg
}

func TestFetchArticle_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stories/12345/", r.URL.Path)
		_, _ = w.Write([]byte(storyFixture))
	}))
	defer server.Close()

	art, err := newTestExtractor().FetchArticle(context.Background(), serverConfig(server.URL), "12345")
	require.NoError(t, err)
	assert.Equal(t, "Budget fix: Koalition einigt sich", art.Title)
	assert.Len(t, art.Paragraphs, 3)
}

func TestFetchArticle_NotFoundIsStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestExtractor().FetchArticle(context.Background(), serverConfig(server.URL), "404404")
	require.Error(t, err)

	var statusErr *article.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}
