package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileEntry_DecodeBackendListing(t *testing.T) {
	raw := `[
		{"id": 12, "name": "docs", "path": "/docs", "type": "folder", "size": 4096,
		 "createTime": "2024-03-01T08:00:00", "modifiedTime": null},
		{"id": "13", "name": "a.txt", "path": "/a.txt", "type": "file", "size": 5,
		 "createTime": "2024-03-01 09:30:00", "modifiedTime": 1709285400000}
	]`

	var entries []FileEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entries))
	require.Len(t, entries, 2)

	assert.Equal(t, ID("12"), entries[0].ID)
	assert.True(t, entries[0].IsFolder())
	assert.Equal(t, int64(0), entries[0].EffectiveSize())
	assert.True(t, entries[0].ModifiedTime.IsZero())
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), entries[0].CreateTime.Time)

	assert.Equal(t, ID("13"), entries[1].ID)
	assert.False(t, entries[1].IsFolder())
	assert.Equal(t, int64(5), entries[1].EffectiveSize())
	assert.Equal(t, int64(1709285400000), entries[1].ModifiedTime.UnixMilli())
}

func TestID_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`42`, "42"},
		{`"42"`, "42"},
		{`9007199254740993`, "9007199254740993"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(tt.in), &id), tt.in)
		assert.Equal(t, tt.want, id, tt.in)
	}

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestTimestamp_Roundtrip(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01T08:00:00.123"`), &ts))
	assert.Equal(t, 123*time.Millisecond, time.Duration(ts.Nanosecond()))

	out, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestCategory_Matches(t *testing.T) {
	file := func(name string) FileEntry { return FileEntry{Name: name, Type: TypeFile} }

	tests := []struct {
		cat  Category
		name string
		want bool
	}{
		{CategoryImages, "photo.JPG", true},
		{CategoryImages, "photo.jpg.txt", false},
		{CategoryVideos, "clip.mkv", true},
		{CategoryMusic, "song.flac", true},
		{CategoryDocuments, "notes.md", true},
		{CategoryDocuments, "README", false},
		{CategoryOthers, "README", true},
		{CategoryOthers, "archive.zip", true},
		{CategoryOthers, "photo.png", false},
		{CategoryOthers, "trailing.", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cat.Matches(file(tt.name)), "%s %s", tt.cat, tt.name)
	}

	folder := FileEntry{Name: "pics.png", Type: TypeFolder}
	for _, c := range []Category{CategoryImages, CategoryOthers} {
		assert.False(t, c.Matches(folder), "folders never match %s", c)
	}
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("Images")
	assert.True(t, ok)
	assert.Equal(t, CategoryImages, c)
	assert.Equal(t, "Images", c.Label())

	_, ok = ParseCategory("spreadsheets")
	assert.False(t, ok)
}

func TestParseSortOrder(t *testing.T) {
	o, err := ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortNameAsc, o)

	for _, want := range SortOrders() {
		got, err := ParseSortOrder(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ParseSortOrder("random")
	assert.Error(t, err)
}

func TestParseViewMode(t *testing.T) {
	v, err := ParseViewMode("")
	require.NoError(t, err)
	assert.Equal(t, ViewGrid, v)

	v, err = ParseViewMode("list")
	require.NoError(t, err)
	assert.Equal(t, ViewList, v)

	_, err = ParseViewMode("table")
	assert.Error(t, err)
}

func TestCloudInfo_UsedPercent(t *testing.T) {
	assert.InDelta(t, 25.0, CloudInfo{UsedCapacity: 25, TotalCapacity: 100}.UsedPercent(), 0.001)
	assert.Zero(t, CloudInfo{UsedCapacity: 25}.UsedPercent())
}
