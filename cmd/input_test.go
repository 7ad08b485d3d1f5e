package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/zymmr/zymmr"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		want    zymmr.Filters
		wantErr string
	}{
		{
			name:  "none",
			flags: nil,
			want:  nil,
		},
		{
			name:  "equality",
			flags: []string{"status=Open", " project=ZMR"},
			want:  zymmr.Filters{"status": "Open", "project": "ZMR"},
		},
		{
			name:  "operator",
			flags: []string{"story_point:>=:3"},
			want:  zymmr.Filters{"story_point": zymmr.Cond(">=", "3")},
		},
		{
			name:  "operator is case insensitive",
			flags: []string{"title:LIKE:%login%"},
			want:  zymmr.Filters{"title": zymmr.Cond("like", "%login%")},
		},
		{
			name:  "list operator",
			flags: []string{"status:not in:Done, Closed"},
			want:  zymmr.Filters{"status": zymmr.Cond("not in", []any{"Done", "Closed"})},
		},
		{
			name:  "value with colons",
			flags: []string{"modified:>:2024-01-01 10:00:00"},
			want:  zymmr.Filters{"modified": zymmr.Cond(">", "2024-01-01 10:00:00")},
		},
		{
			name:  "unknown operator falls back to equality",
			flags: []string{"title=a:b:c"},
			want:  zymmr.Filters{"title": "a:b:c"},
		},
		{
			name:    "missing value separator",
			flags:   []string{"status"},
			wantErr: "expected field=value",
		},
		{
			name:    "missing field",
			flags:   []string{"=Open"},
			wantErr: "expected field=value",
		},
		{
			name:    "missing field with operator",
			flags:   []string{":=:Open"},
			wantErr: "missing field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilters(tt.flags)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseData(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		doc, err := parseData(`{"title": "Website", "story_point": 3}`, nil)
		require.NoError(t, err)
		assert.Equal(t, "Website", doc.String("title"))
		assert.Equal(t, float64(3), doc["story_point"])
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"status": "Done"}`), 0o600))

		doc, err := parseData("@"+path, nil)
		require.NoError(t, err)
		assert.Equal(t, "Done", doc.String("status"))
	})

	t.Run("stdin", func(t *testing.T) {
		doc, err := parseData("@-", strings.NewReader(`{"key": "WEB"}`))
		require.NoError(t, err)
		assert.Equal(t, "WEB", doc.String("key"))
	})

	t.Run("errors", func(t *testing.T) {
		for _, raw := range []string{"", "null", "[1,2]", "{broken", "@" + filepath.Join(t.TempDir(), "missing.json")} {
			_, err := parseData(raw, nil)
			assert.Error(t, err, "input %q", raw)
		}
	})
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" y \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "Delete?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "Delete? [y/N]: ", out.String())
	}
}

func TestNeedsClient(t *testing.T) {
	assert.True(t, needsClient(listCmd))
	assert.True(t, needsClient(workItemsByProjectCmd))
	assert.False(t, needsClient(versionCmd))
	assert.False(t, needsClient(selfUpdateCmd))
}

func TestCurrentVersion(t *testing.T) {
	old := version
	t.Cleanup(func() { version = old })

	version = "v1.2.3"
	v, err := currentVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v.String())

	version = "dev"
	_, err = currentVersion()
	assert.Error(t, err)
}
