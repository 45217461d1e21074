package expression

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAnyMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Movie.PART")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	info, err := os.Lstat(path)
	require.NoError(t, err)

	env := NewFileEnv(path, info, 1, time.Now().Add(2*time.Hour))

	tests := []struct {
		name        string
		expressions []string
		want        bool
	}{
		{"extension", []string{`Ext == ".part"`}, true},
		{"size", []string{`Size > 4096`}, false},
		{"age", []string{`AgeHours >= 1`}, true},
		{"suffix_helper", []string{`HasSuffix(Name, ".PART")`}, true},
		{"regex", []string{`RegexMatch("(?i)movie")`}, true},
		{"none_match", []string{`Nlink > 1`, `Contains(Dir, "/nowhere/")`}, false},
		{"second_matches", []string{`Nlink > 1`, `HasPrefix(Path, "` + filepath.ToSlash(dir) + `")`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := Compile(tt.expressions)
			require.NoError(t, err)

			got, reason, err := CheckAnyMatch(env, compiled)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile([]string{`Size +`})
	assert.Error(t, err)

	_, err = Compile([]string{`Size`})
	assert.Error(t, err, "non bool expressions are rejected")

	_, err = Compile([]string{`Unknown == 1`})
	assert.Error(t, err)
}
