// Package mirror is the cache-fronted facade over feed and article
// acquisition. It bounds memory and remote-call volume per variant.
package mirror

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/retronews/retronews/internal/article"
	"github.com/retronews/retronews/internal/cache"
	"github.com/retronews/retronews/internal/feed"
	"github.com/retronews/retronews/internal/logger"
	"github.com/retronews/retronews/internal/source"
)

// FeedFetcher retrieves one variant's feed items.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, cfg source.Config) ([]feed.Item, error)
}

// ArticleFetcher retrieves and extracts one story page.
type ArticleFetcher interface {
	FetchArticle(ctx context.Context, cfg source.Config, itemID string) (article.Article, error)
}

// Config bounds the per-variant caches.
type Config struct {
	// TTL is the absolute lifetime of every cache entry.
	TTL time.Duration
	// FeedCapacity bounds the feed cache of one variant.
	FeedCapacity int
	// ArticleCapacity bounds the article cache of one variant.
	ArticleCapacity int
}

// variantCaches holds the two cache roles of one variant. Keeping the roles
// and variants in separate stores preserves eviction isolation: a burst of
// article reads on one variant can never evict another variant's entries.
type variantCaches struct {
	feed     *cache.Store[[]feed.Item]
	articles *cache.Store[article.Article]
}

// Service serves cached feeds and articles, delegating to the fetchers on a
// miss. Concurrent misses on one key share a single remote fetch.
type Service struct {
	feeds    FeedFetcher
	articles ArticleFetcher
	caches   map[source.Variant]*variantCaches
	log      logger.Interface
}

// New creates the mirror service with one cache pair per variant.
func New(feeds FeedFetcher, articles ArticleFetcher, cfg Config, log logger.Interface) *Service {
	caches := make(map[source.Variant]*variantCaches)
	for _, vc := range source.All() {
		caches[vc.Variant] = &variantCaches{
			feed:     cache.New[[]feed.Item](cfg.FeedCapacity, cfg.TTL),
			articles: cache.New[article.Article](cfg.ArticleCapacity, cfg.TTL),
		}
	}

	return &Service{
		feeds:    feeds,
		articles: articles,
		caches:   caches,
		log:      log.WithComponent("mirror"),
	}
}

// Feed returns the cached feed listing for a variant, fetching it on a miss.
// The returned slice is the caller's to keep.
func (s *Service) Feed(ctx context.Context, v source.Variant) ([]feed.Item, error) {
	cfg, vc, err := s.variant(v)
	if err != nil {
		return nil, err
	}

	items, err := vc.feed.GetOrFetch(ctx, cache.Key(string(v), "feed"),
		func(ctx context.Context) ([]feed.Item, error) {
			return s.feeds.FetchFeed(ctx, cfg)
		})
	if err != nil {
		return nil, err
	}

	return slices.Clone(items), nil
}

// Article returns the cached article for (variant, itemID), fetching and
// extracting it on a miss.
func (s *Service) Article(ctx context.Context, v source.Variant, itemID string) (article.Article, error) {
	cfg, vc, err := s.variant(v)
	if err != nil {
		return article.Article{}, err
	}

	return vc.articles.GetOrFetch(ctx, cache.Key(string(v), "article", itemID),
		func(ctx context.Context) (article.Article, error) {
			return s.articles.FetchArticle(ctx, cfg, itemID)
		})
}

// RefreshFeeds re-fetches every variant's feed and replaces the cached
// listing. Used by the optional background warmer; a variant's failure is
// logged and skipped so the other variants still refresh.
func (s *Service) RefreshFeeds(ctx context.Context) {
	for _, cfg := range source.All() {
		items, err := s.feeds.FetchFeed(ctx, cfg)
		if err != nil {
			s.log.Warn("Feed refresh failed", "variant", cfg.Variant, "error", err)
			continue
		}
		s.caches[cfg.Variant].feed.Put(cache.Key(string(cfg.Variant), "feed"), items)
	}
}

// variant resolves a variant's config and caches.
func (s *Service) variant(v source.Variant) (source.Config, *variantCaches, error) {
	cfg, ok := source.Lookup(v)
	if !ok {
		return source.Config{}, nil, fmt.Errorf("%w: %q", source.ErrUnknownVariant, v)
	}
	return cfg, s.caches[v], nil
}
