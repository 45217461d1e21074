package regex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		value   string
		want    bool
	}{
		{"lost_found_dir", `/lost\+found/`, "/data/lost+found/", true},
		{"lost_found_file", `/lost\+found/`, "/data/lost+found/file.bin/", true},
		{"no_match", `/lost\+found/`, "/data/found/file.bin/", false},
		{"lookahead", `\.(?!iso$)\w+$`, "/data/movie.mkv", true},
		{"lookahead_excluded", `\.(?!iso$)\w+$`, "/data/disc.iso", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			require.NoError(t, err)

			got, err := Check(tt.value, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`(`)
	assert.Error(t, err)
}

func TestCheck_NilPattern(t *testing.T) {
	got, err := Check("anything", nil)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCheckAny(t *testing.T) {
	patterns := []*Pattern{MustCompile(`^/tmp/`), MustCompile(`\.part$`)}

	got, err := CheckAny("/data/file.part", patterns)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = CheckAny("/data/file.bin", patterns)
	require.NoError(t, err)
	assert.False(t, got)
}
