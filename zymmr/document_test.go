package zymmr

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDocument(t *testing.T, raw string) Document {
	t.Helper()
	var d Document
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	return d
}

func TestDocumentAccessors(t *testing.T) {
	d := decodeDocument(t, `{
		"name": "WI-0001",
		"title": "Fix login",
		"story_point": 5,
		"estimate": 2.5,
		"is_billable": 1,
		"archived": 0,
		"start_date": "2024-03-01",
		"modified": "2024-03-02 10:15:30.123456",
		"sprint": null
	}`)

	assert.Equal(t, "WI-0001", d.Name())
	assert.Equal(t, "Fix login", d.String("title"))
	assert.Equal(t, "5", d.String("story_point"))
	assert.Equal(t, "", d.String("sprint"))
	assert.Equal(t, "", d.String("missing"))

	n, ok := d.Int("story_point")
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	_, ok = d.Int("title")
	assert.False(t, ok)

	f, ok := d.Float("estimate")
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)

	assert.True(t, d.Bool("is_billable"))
	assert.False(t, d.Bool("archived"))
	assert.False(t, d.Bool("missing"))

	start, ok := d.Date("start_date")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)

	modified, ok := d.Date("modified")
	require.True(t, ok)
	assert.Equal(t, 10, modified.Hour())

	_, ok = d.Date("sprint")
	assert.False(t, ok)

	assert.Equal(t, []string{"archived", "estimate", "is_billable", "modified", "name", "sprint", "start_date", "story_point", "title"}, d.Fields())
}

func TestDocumentClone(t *testing.T) {
	d := Document{"name": "A", "title": "x"}
	c := d.Clone()
	c["title"] = "y"
	assert.Equal(t, "x", d.String("title"))
}

func TestDocumentList(t *testing.T) {
	var list DocumentList
	require.NoError(t, json.Unmarshal([]byte(`[
		{"name": "WI-1", "status": "Open", "story_point": 3, "priority": "High"},
		{"name": "WI-2", "status": "Done", "story_point": 5, "priority": "Low"},
		{"name": "WI-3", "status": "Open", "story_point": 8, "priority": "High"}
	]`), &list))

	first, ok := list.First()
	require.True(t, ok)
	assert.Equal(t, "WI-1", first.Name())

	last, ok := list.Last()
	require.True(t, ok)
	assert.Equal(t, "WI-3", last.Name())

	assert.Equal(t, []string{"WI-1", "WI-2", "WI-3"}, list.Names())

	t.Run("filter by values", func(t *testing.T) {
		open := list.Filter(map[string]any{"status": "Open", "priority": "High"})
		assert.Equal(t, []string{"WI-1", "WI-3"}, open.Names())

		// Integers match decoded floats
		three := list.Filter(map[string]any{"story_point": 3})
		assert.Equal(t, []string{"WI-1"}, three.Names())

		none := list.Filter(map[string]any{"status": "Blocked"})
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("where expression", func(t *testing.T) {
		big, err := list.Where(`status == "Open" and story_point > 4`)
		require.NoError(t, err)
		assert.Equal(t, []string{"WI-3"}, big.Names())

		_, err = list.Where(`status ==`)
		assert.Error(t, err)
	})

	t.Run("records round trip", func(t *testing.T) {
		back := DocumentsFromRecords(list.Records())
		assert.Equal(t, list, back)
	})

	t.Run("empty list", func(t *testing.T) {
		var empty DocumentList
		_, ok := empty.First()
		assert.False(t, ok)
		_, ok = empty.Last()
		assert.False(t, ok)
	})
}
