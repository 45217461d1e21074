package hardlink

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/autobrr/prunetree/pkg/regex"
)

// TempMarker separates the original name from the random suffix of a relink temporary.
const TempMarker = ".prunetree-"

var tempPattern = regex.MustCompile(`\.prunetree-[0-9a-f]{8}$`)

// TempName returns a fresh sibling name path is parked under while it is relinked.
func TempName(path string) string {
	return path + TempMarker + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// IsTemp reports whether path looks like a relink temporary.
func IsTemp(path string) bool {
	match, err := regex.Check(filepath.Base(path), tempPattern)
	return err == nil && match
}

// Original returns the path a relink temporary was taken from.
func Original(temp string) (string, bool) {
	if !IsTemp(temp) {
		return "", false
	}

	idx := strings.LastIndex(temp, TempMarker)
	return temp[:idx], true
}
