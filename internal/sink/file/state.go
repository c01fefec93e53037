// Package file implements the File Sink: per-project rotated, archived
// log files on disk. See spec.md §4.4.
package file

import (
	"os"
	"time"
)

// projectFileState is the per-project ProjectFileState described in
// spec.md §3. It is exclusively owned by Sink; never shared across
// goroutines without Sink's mutex held.
type projectFileState struct {
	currentPath string
	openedAt    time.Time
	lineCount   int64
	handle      *os.File
}

func (s *projectFileState) open() bool {
	return s.handle != nil
}
