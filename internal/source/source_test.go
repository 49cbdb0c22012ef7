package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retronews/retronews/internal/source"
)

func TestParse_KnownVariants(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"news", "oe3", "sport"} {
		v, err := source.Parse(name)
		require.NoError(t, err)
		assert.Equal(t, source.Variant(name), v)
	}
}

func TestParse_UnknownVariant(t *testing.T) {
	t.Parallel()

	_, err := source.Parse("weather")
	assert.ErrorIs(t, err, source.ErrUnknownVariant)
}

func TestAll_StableOrderAndComplete(t *testing.T) {
	t.Parallel()

	configs := source.All()
	require.Len(t, configs, 3)
	assert.Equal(t, source.VariantNews, configs[0].Variant)
	assert.Equal(t, source.VariantOE3, configs[1].Variant)
	assert.Equal(t, source.VariantSport, configs[2].Variant)

	for _, cfg := range configs {
		assert.NotEmpty(t, cfg.FeedURL)
		assert.NotEmpty(t, cfg.StoryURL)
		assert.NotEmpty(t, cfg.Title)
		assert.NotEmpty(t, cfg.Rule.Paragraphs)
		assert.NotEmpty(t, cfg.Rule.Title)
	}
}

func TestStoryPageURL(t *testing.T) {
	t.Parallel()

	cfg, ok := source.Lookup(source.VariantNews)
	require.True(t, ok)
	assert.Equal(t, "https://orf.at/stories/3391234/", cfg.StoryPageURL("3391234"))
}

func TestLazyLoadAttrPrecedence(t *testing.T) {
	t.Parallel()

	cfg, ok := source.Lookup(source.VariantSport)
	require.True(t, ok)
	require.Len(t, cfg.Rule.ImageAttrs, 2)
	assert.Equal(t, "data-src", cfg.Rule.ImageAttrs[0])
}
