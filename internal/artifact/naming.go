package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Artifact file names look like result_15102026_0930.csv. A second artifact
// created in the same minute gets a numeric suffix: result_15102026_0930_2.csv.
const (
	Prefix     = "result_"
	Ext        = ".csv"
	TimeLayout = "02012006_1504"
)

// FileName returns the artifact name for an execution persisted at t.
func FileName(t time.Time) string {
	return Prefix + t.Format(TimeLayout) + Ext
}

// IsArtifactName reports whether name follows the artifact naming
// convention. Only the prefix and extension are checked.
func IsArtifactName(name string) bool {
	return strings.HasPrefix(name, Prefix) && strings.HasSuffix(name, Ext) && len(name) > len(Prefix)+len(Ext)
}

// ParseTime extracts the creation time encoded in an artifact name. Names
// that match the convention but carry no parseable timestamp return false.
func ParseTime(name string) (time.Time, bool) {
	name = filepath.Base(name)
	if !IsArtifactName(name) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, Prefix), Ext)
	if len(stamp) < len(TimeLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimeLayout, stamp[:len(TimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// maxCollisions bounds the suffix search in uniqueName.
const maxCollisions = 1000

// uniqueName picks a name for t that exists in none of dirs.
func uniqueName(t time.Time, dirs ...string) (string, error) {
	base := strings.TrimSuffix(FileName(t), Ext)
	for n := 1; n <= maxCollisions; n++ {
		name := base + Ext
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", base, n, Ext)
		}
		taken := false
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			_, err := os.Lstat(filepath.Join(dir, name))
			if err == nil {
				taken = true
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return "", &StorageError{Op: "stat", Path: filepath.Join(dir, name), Err: err}
			}
		}
		if !taken {
			return name, nil
		}
	}
	return "", &StorageError{Op: "name", Path: base + Ext, Err: fmt.Errorf("more than %d artifacts in one minute", maxCollisions)}
}
