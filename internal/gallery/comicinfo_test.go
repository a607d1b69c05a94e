package gallery

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func Test_ArchiveFilename(t *testing.T) {
	tests := []struct {
		summary  string
		doc      Doc
		expected string
	}{
		{
			summary:  "writer and title take precedence",
			doc:      Doc{Writer: strPtr("Alice"), Title: strPtr("T"), PageTitle: strPtr("P"), URL: "https://telegra.ph/abc"},
			expected: "[Alice]T.cbz",
		},
		{
			summary:  "page title when writer or title missing",
			doc:      Doc{PageTitle: strPtr("P"), URL: "https://telegra.ph/abc"},
			expected: "P.cbz",
		},
		{
			summary:  "url segment as last resort",
			doc:      Doc{URL: "https://telegra.ph/abc"},
			expected: "abc.cbz",
		},
		{
			summary:  "title alone is not enough for the bracket form",
			doc:      Doc{Title: strPtr("T"), URL: "https://telegra.ph/abc"},
			expected: "abc.cbz",
		},
		{
			summary:  "page title ignored while a title is present",
			doc:      Doc{Title: strPtr("T"), PageTitle: strPtr("P"), URL: "https://telegra.ph/abc"},
			expected: "abc.cbz",
		},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			assert.Equal(t, test.expected, ArchiveFilename(&test.doc))
		})
	}
}

func Test_LastPathSegment(t *testing.T) {
	assert.Equal(t, "album-x", LastPathSegment("https://telegra.ph/album-x"))
	assert.Equal(t, "album-x", LastPathSegment("https://telegra.ph/album-x/"))
	assert.Equal(t, "file.jpg", LastPathSegment("https://a/b/file.jpg?size=big"))
	assert.Equal(t, "plain", LastPathSegment("plain"))
}

func Test_PageFilename_PaddingWidth(t *testing.T) {
	tests := []struct {
		total    int
		expected string
	}{
		{1, "000.jpg"},
		{9, "000.jpg"},
		{100, "000.jpg"},
		{101, "0000.jpg"},
		{1000, "0000.jpg"},
		{1001, "00000.jpg"},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("total=%d", test.total), func(t *testing.T) {
			assert.Equal(t, test.expected, PageFilename(0, test.total, "https://a/x.jpg"))
		})
	}
}

func Test_PageFilename_LexicographicOrderMatchesPageOrder(t *testing.T) {
	const total = 150

	names := make([]string, 0, total)
	for seq := int32(0); seq < total; seq++ {
		names = append(names, PageFilename(seq, total, "https://a/x.png"))
	}

	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, "0000.png", names[0])
	assert.Equal(t, "0149.png", names[total-1])
}

func Test_PageFilename_ExtensionFromUrl(t *testing.T) {
	assert.Equal(t, "000.png", PageFilename(0, 1, "https://a/b/c.png"))
	assert.Equal(t, "000.jpg", PageFilename(0, 1, "https://a/b/no-extension"))
	assert.Equal(t, "000.webp", PageFilename(0, 1, "https://a/b/c.webp?raw=1"))
}

func Test_ComicInfo_PageTypes(t *testing.T) {
	doc := &Doc{URL: "https://telegra.ph/x"}

	info := NewComicInfo(doc, 3)
	require.Len(t, info.Pages, 3)
	assert.Equal(t, PageTypeFrontCover, info.Pages[0].Type)
	assert.Equal(t, PageTypeStory, info.Pages[1].Type)
	assert.Equal(t, PageTypeBackCover, info.Pages[2].Type)

	single := NewComicInfo(doc, 1)
	require.Len(t, single.Pages, 1)
	assert.Equal(t, PageTypeFrontCover, single.Pages[0].Type)
}

func Test_ComicInfo_Marshal(t *testing.T) {
	doc := &Doc{
		URL:    "https://telegra.ph/x",
		Title:  strPtr("My Title"),
		Writer: strPtr("Alice"),
	}

	raw, err := NewComicInfo(doc, 2).Marshal()
	require.NoError(t, err)

	rendered := string(raw)
	assert.True(t, strings.HasPrefix(rendered, `<?xml version="1.0" encoding="utf-8"?>`))
	assert.Contains(t, rendered, "<Title>My Title</Title>")
	assert.Contains(t, rendered, "<Writer>Alice</Writer>")
	assert.Contains(t, rendered, `<Page Image="0" Type="FrontCover">`)
	assert.NotContains(t, rendered, "<Series>", "absent optional fields must be omitted")
}

func Test_ComicInfo_TitleFallsBackToPageTitle(t *testing.T) {
	doc := &Doc{URL: "https://telegra.ph/x", PageTitle: strPtr("Page Title")}

	info := NewComicInfo(doc, 1)
	require.NotNil(t, info.Title)
	assert.Equal(t, "Page Title", *info.Title)
}
