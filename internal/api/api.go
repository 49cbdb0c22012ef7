// Package api implements the HTTP surface of the mirror: feed listings,
// article pages, transcoded images and the traffic snapshot.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/retronews/retronews/internal/article"
	"github.com/retronews/retronews/internal/feed"
	"github.com/retronews/retronews/internal/imaging"
	"github.com/retronews/retronews/internal/logger"
	"github.com/retronews/retronews/internal/metrics"
	"github.com/retronews/retronews/internal/source"
	"github.com/retronews/retronews/internal/traffic"
)

// Mirror serves cached feeds and articles.
type Mirror interface {
	Feed(ctx context.Context, v source.Variant) ([]feed.Item, error)
	Article(ctx context.Context, v source.Variant, itemID string) (article.Article, error)
}

// Traffic serves the cached traffic snapshot.
type Traffic interface {
	Snapshot(ctx context.Context) (traffic.Snapshot, error)
	Invalidate()
}

// ImageStreamer converts a remote image into a legacy format stream.
type ImageStreamer interface {
	Transcode(ctx context.Context, url string, width, height int, format imaging.Format) (io.ReadCloser, error)
}

// Params holds the dependencies for the router.
type Params struct {
	Mirror  Mirror
	Traffic Traffic
	Images  ImageStreamer
	// ImageWidth and ImageHeight bound the transcoded output.
	ImageWidth  int
	ImageHeight int
	Logger      logger.Interface
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Router holds the handler state behind the gin engine.
type Router struct {
	mirror      Mirror
	traffic     Traffic
	images      ImageStreamer
	imageWidth  int
	imageHeight int
	stats       *metrics.Metrics
	log         logger.Interface
	now         func() time.Time
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(p Params) *gin.Engine {
	// Disable Gin's default logging
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		mirror:      p.Mirror,
		traffic:     p.Traffic,
		images:      p.Images,
		imageWidth:  p.ImageWidth,
		imageHeight: p.ImageHeight,
		stats:       metrics.NewMetrics(),
		log:         p.Logger.WithComponent("api"),
		now:         p.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(r.log))
	router.Use(statsMiddleware(r.stats))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, r.stats.Snapshot())
	})

	router.GET("/feed/:variant", r.handleFeed)
	router.GET("/feed/:variant/:id", r.handleArticle)
	router.GET("/aimg/:variant/:id", r.handleImage)
	router.GET("/verkehr", r.handleTraffic)
	router.POST("/verkehr/invalidate", r.handleTrafficInvalidate)

	return router
}

// handleFeed returns one variant's cached feed listing.
func (r *Router) handleFeed(c *gin.Context) {
	cfg, err := r.variant(c)
	if err != nil {
		return
	}

	items, err := r.mirror.Feed(c.Request.Context(), cfg.Variant)
	if err != nil {
		r.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"variant":        cfg.Variant,
		"title":          cfg.Title,
		"formatted_date": formattedDate(r.now()),
		"items":          items,
	})
}

// handleArticle returns one cached article.
func (r *Router) handleArticle(c *gin.Context) {
	cfg, err := r.variant(c)
	if err != nil {
		return
	}

	art, err := r.mirror.Article(c.Request.Context(), cfg.Variant, c.Param("id"))
	if err != nil {
		r.renderError(c, err)
		return
	}

	// The date is request time, not extraction time, so cached articles
	// still show a fresh clock.
	art.FormattedDate = formattedDate(r.now())

	c.JSON(http.StatusOK, gin.H{
		"variant": cfg.Variant,
		"title":   cfg.Title,
		"article": art,
	})
}

// handleImage streams the article's lead image transcoded to the best format
// the client accepts. The response is written incrementally; a client
// disconnect cancels the request context and tears the pipeline down.
func (r *Router) handleImage(c *gin.Context) {
	cfg, err := r.variant(c)
	if err != nil {
		return
	}

	art, err := r.mirror.Article(c.Request.Context(), cfg.Variant, c.Param("id"))
	if err != nil {
		r.renderError(c, err)
		return
	}

	if art.Image == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "article has no image"})
		return
	}

	format := imaging.FormatFromAccept(c.GetHeader("Accept"))

	stream, err := r.images.Transcode(c.Request.Context(), art.Image, r.imageWidth, r.imageHeight, format)
	if err != nil {
		r.renderError(c, err)
		return
	}
	defer stream.Close()
	r.stats.RecordImageTranscode()

	c.Header("Content-Type", format.ContentType())
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, stream); err != nil {
		// Headers may already be on the wire; all we can do is log and
		// drop the connection.
		r.log.Warn("Image stream aborted",
			"variant", cfg.Variant, "id", art.ID, "error", err)
		if !c.Writer.Written() {
			c.JSON(http.StatusBadGateway, gin.H{"error": "image conversion failed"})
		}
	}
}

// handleTraffic returns the cached traffic snapshot.
func (r *Router) handleTraffic(c *gin.Context) {
	snap, err := r.traffic.Snapshot(c.Request.Context())
	if err != nil {
		r.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"formatted_date": formattedDate(r.now()),
		"traffic_items":  snap.TrafficItems,
	})
}

// handleTrafficInvalidate drops the cached traffic snapshot. Idempotent.
func (r *Router) handleTrafficInvalidate(c *gin.Context) {
	r.traffic.Invalidate()
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}

// variant resolves the path's variant parameter, writing a 404 on failure.
func (r *Router) variant(c *gin.Context) (source.Config, error) {
	v, err := source.Parse(c.Param("variant"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed"})
		return source.Config{}, err
	}
	cfg, _ := source.Lookup(v)
	return cfg, nil
}

// renderError maps upstream failures to response codes: unknown variants and
// missing stories are the client's 404, everything else is a bad gateway.
func (r *Router) renderError(c *gin.Context, err error) {
	var statusErr *article.StatusError
	switch {
	case errors.Is(err, source.ErrUnknownVariant):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed"})
	case errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
	default:
		r.stats.RecordUpstreamFailure()
		r.log.Error("Upstream request failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream fetch failed"})
	}
}
