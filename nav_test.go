package djvu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigationEncodeNilOmitsChunk(t *testing.T) {
	var nav *Navigation
	assert.Nil(t, nav.Encode())

	empty := &Navigation{}
	assert.Nil(t, empty.Encode())
}

func TestNavigationEncodeFlatList(t *testing.T) {
	nav := &Navigation{Bookmarks: []Bookmark{
		{Title: "Chapter 1", Dest: "#1"},
		{Title: "Chapter 2", Dest: "#5"},
	}}
	out := string(nav.Encode())
	require.True(t, strings.HasPrefix(out, "(bookmarks\n"))
	assert.Contains(t, out, `("Chapter 1" "#1")`)
	assert.Contains(t, out, `("Chapter 2" "#5")`)
	assert.True(t, strings.HasSuffix(out, ")\n"))
}

func TestNavigationEncodeNestedAndEscaped(t *testing.T) {
	nav := &Navigation{Bookmarks: []Bookmark{
		{
			Title: `Section "A"`,
			Dest:  "#1",
			Children: []Bookmark{
				{Title: `C:\notes`, Dest: "#2"},
			},
		},
	}}
	out := string(nav.Encode())
	assert.Contains(t, out, `"Section \"A\""`)
	assert.Contains(t, out, `"C:\\notes"`)
}

func TestDocumentNavigationChunkPresent(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	require.NoError(t, doc.SetNavigation(&Navigation{Bookmarks: []Bookmark{
		{Title: "Cover", Dest: "#1"},
	}}))
	require.NoError(t, doc.AddPage(Page{Index: 0, Width: 5, Height: 5}))
	out, err := doc.Finalize()
	require.NoError(t, err)
	assert.Contains(t, string(out), "NAVM")
	assert.Contains(t, string(out), "Cover")
}

func TestDocumentNoNavigationOmitsChunk(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	require.NoError(t, doc.AddPage(Page{Index: 0, Width: 5, Height: 5}))
	out, err := doc.Finalize()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "NAVM")
}
