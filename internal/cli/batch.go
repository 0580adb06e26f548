package cli

import (
	"github.com/bmatcuk/doublestar/v4"
)

// ExpandBatch expands a doublestar glob into a sorted list of matching
// file paths, mirroring the teacher's scanner use of doublestar for
// pattern matching during directory walks.
func ExpandBatch(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern)
}
