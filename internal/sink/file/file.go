package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acaciaworks/logship/internal/config"
	"github.com/acaciaworks/logship/internal/errs"
	"github.com/acaciaworks/logship/internal/record"
)

// archiveCandidate is a *.log file eligible for archival, paired with
// its modification time for count/age sweep decisions.
type archiveCandidate struct {
	path    string
	modTime time.Time
}

var logFormatReplacer = strings.NewReplacer(
	"{project}", "\x00project\x00",
	"{timestamp}", "\x00timestamp\x00",
	"{level}", "\x00level\x00",
	"{module}", "\x00module\x00",
	"{function}", "\x00function\x00",
	"{message}", "\x00message\x00",
	"{code}", "\x00code\x00",
)

// Sink is the File Sink described in spec.md §4.4: one projectFileState
// per project, synchronous write-then-flush on every record (the
// teacher's buffered-async writer is deliberately not reused here — see
// DESIGN.md), with rotation and background archival.
type Sink struct {
	cfg config.FilesConfig
	log zerolog.Logger

	mu     sync.Mutex
	states map[string]*projectFileState

	archiver *archiveWorker
}

// New constructs a File Sink bound to cfg. The archival worker pool is
// started immediately; it is idle until a rotation posts candidates.
func New(cfg config.FilesConfig, log zerolog.Logger) *Sink {
	return &Sink{
		cfg:      cfg,
		log:      log,
		states:   make(map[string]*projectFileState),
		archiver: newArchiveWorker(cfg.Archive, log),
	}
}

func (s *Sink) projectDir(project string) string {
	dir := strings.ReplaceAll(s.cfg.ProjectDirectory, "{project}", project)
	return filepath.Join(s.cfg.RootDirectory, dir)
}

func (s *Sink) archiveDir(project string) string {
	return filepath.Join(s.projectDir(project), s.cfg.Archive.Directory)
}

// Write appends r to project P's active file, rotating first if the
// configured trigger fires. Per spec.md §4.4, writes are flushed
// immediately and never buffered across calls.
func (s *Sink) Write(r *record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project := r.Project
	st, ok := s.states[project]
	if !ok {
		st = &projectFileState{}
		s.states[project] = st
	}

	if !st.open() {
		if err := s.openNewFile(project, st); err != nil {
			s.log.Error().Err(err).Str("project", project).Msg("file sink: open failed")
			delete(s.states, project)
			return
		}
	} else if s.shouldRotate(project, st) {
		if err := s.rotate(project, st); err != nil {
			s.log.Error().Err(err).Str("project", project).Msg("file sink: rotation failed")
			delete(s.states, project)
			return
		}
	}

	line := renderLogLine(s.cfg.LogFormat, s.cfg.DateLogFormat, r)
	if _, err := st.handle.WriteString(line + "\n"); err != nil {
		s.log.Error().Err(err).Str("project", project).Msg("file sink: write failed, forcing rotation and dropping record")
		st.handle.Close()
		st.handle = nil
		delete(s.states, project)
		return
	}
	if err := st.handle.Sync(); err != nil {
		s.log.Warn().Err(err).Str("project", project).Msg("file sink: fsync failed")
	}
	st.lineCount++
}

func renderLogLine(format, dateFormat string, r *record.Record) string {
	fields := map[string]string{
		"project":   r.Project,
		"timestamp": r.Timestamp.Format(dateFormat),
		"level":     strings.ToUpper(string(r.Level)),
		"module":    r.Module,
		"function":  r.Function,
		"message":   r.Message,
		"code":      strconv.Itoa(r.Code),
	}
	return expandTemplate(logFormatReplacer, format, fields)
}

func expandTemplate(replacer *strings.Replacer, format string, fields map[string]string) string {
	marked := replacer.Replace(format)
	var b strings.Builder
	for marked != "" {
		i := strings.IndexByte(marked, 0)
		if i < 0 {
			b.WriteString(marked)
			break
		}
		b.WriteString(marked[:i])
		marked = marked[i+1:]
		j := strings.IndexByte(marked, 0)
		if j < 0 {
			b.WriteString(marked)
			break
		}
		key := marked[:j]
		marked = marked[j+1:]
		if v, ok := fields[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString("{" + key + "}")
		}
	}
	return b.String()
}

func (s *Sink) shouldRotate(project string, st *projectFileState) bool {
	now := time.Now()
	r := s.cfg.Rotation

	switch r.Trigger {
	case config.RotationDaily:
		loc := s.timeZone()
		if now.In(loc).Format("15:04") == r.Daily && st.openedAt.In(loc).Format("2006-01-02") != now.In(loc).Format("2006-01-02") {
			return true
		}
	case config.RotationTime:
		if now.Sub(st.openedAt) >= time.Duration(r.Time)*time.Second {
			return true
		}
	case config.RotationLines:
		if st.lineCount >= r.Lines {
			return true
		}
	case config.RotationSize:
		if info, err := os.Stat(st.currentPath); err == nil && info.Size() >= r.Size {
			return true
		}
	}
	return false
}

func (s *Sink) timeZone() *time.Location {
	loc, err := time.LoadLocation(s.cfg.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// openNewFile creates the project's directories if needed, opens a
// fresh file, and writes its header. It does not close any previously
// open handle — callers rotating an existing state must call rotate.
func (s *Sink) openNewFile(project string, st *projectFileState) error {
	dir := s.projectDir(project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	if err := os.MkdirAll(s.archiveDir(project), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	now := time.Now()
	filename := strings.NewReplacer(
		"{project}", project,
		"{date}", now.Format(s.cfg.DateFileFormat),
	).Replace(s.cfg.Filename)
	path := filepath.Join(dir, filename)

	handle, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	st.handle = handle
	st.currentPath = path
	st.openedAt = now
	st.lineCount = 0

	loc := s.timeZone()
	if _, err := handle.WriteString(header(filename, project, now, loc)); err != nil {
		handle.Close()
		st.handle = nil
		return fmt.Errorf("write header: %w", err)
	}
	if err := handle.Sync(); err != nil {
		s.log.Warn().Err(err).Str("project", project).Msg("file sink: fsync header failed")
	}

	if s.cfg.Archive.Enabled {
		s.sweepArchival(project, st)
	}
	return nil
}

// rotate closes the current file with a footer and opens a new one,
// then triggers an archival sweep for the project.
func (s *Sink) rotate(project string, st *projectFileState) error {
	s.closeWithFooter(project, st)
	return s.openNewFile(project, st)
}

// closeWithFooter finalizes the active file per spec.md §4.3: close to
// get an accurate size, then re-open for append and write the footer.
func (s *Sink) closeWithFooter(project string, st *projectFileState) {
	if !st.open() {
		return
	}
	st.handle.Close()
	st.handle = nil

	info, err := os.Stat(st.currentPath)
	if err != nil {
		s.log.Warn().Err(err).Str("project", project).Msg("file sink: stat before footer failed")
		return
	}

	f, err := os.OpenFile(st.currentPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warn().Err(err).Str("project", project).Msg("file sink: reopen for footer failed")
		return
	}
	defer f.Close()

	loc := s.timeZone()
	if _, err := f.WriteString(footer(st.lineCount, info.Size(), loc)); err != nil {
		s.log.Warn().Err(err).Str("project", project).Msg("file sink: write footer failed")
	}
}

// sweepArchival enumerates *.log files in the project directory
// excluding the currently-open path and posts the archival candidate
// set to the background worker. Per spec.md §4.4 this never blocks the
// write path.
func (s *Sink) sweepArchival(project string, st *projectFileState) {
	dir := s.projectDir(project)
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Warn().Err(err).Str("project", project).Msg("file sink: archival sweep readdir failed")
		return
	}

	var files []archiveCandidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if path == st.currentPath {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, archiveCandidate{path, info.ModTime()})
	}

	archive := s.cfg.Archive
	var toArchive []string
	switch archive.Trigger {
	case config.ArchiveCount:
		if int64(len(files)) > archive.Count {
			sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
			excess := int64(len(files)) - archive.Count
			for i := int64(0); i < excess; i++ {
				toArchive = append(toArchive, files[i].path)
			}
		}
	case config.ArchiveAge:
		now := time.Now()
		cutoff := time.Duration(archive.Age) * time.Second
		for _, f := range files {
			if now.Sub(f.modTime) > cutoff {
				toArchive = append(toArchive, f.path)
			}
		}
	}

	if len(toArchive) == 0 {
		return
	}
	s.archiver.submit(archivalJob{
		project:    project,
		archiveDir: s.archiveDir(project),
		sources:    toArchive,
	})
}

// Reconfigure swaps the sink's config without forcing a rotation. Each
// project's current file stays open; the next Write renders with the new
// log format and evaluates the new rotation settings, while a changed
// directory or filename takes effect only when the file next rotates.
func (s *Sink) Reconfigure(cfg config.FilesConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.archiver.reconfigure(cfg.Archive)
}

// Close footers and closes every open project file, then waits for
// in-flight archival to complete, per spec.md §4.4's shutdown
// semantics.
func (s *Sink) Close() error {
	s.mu.Lock()
	for project, st := range s.states {
		s.closeWithFooter(project, st)
	}
	s.states = make(map[string]*projectFileState)
	s.mu.Unlock()

	if err := s.archiver.drainAndStop(30 * time.Second); err != nil {
		return &errs.StopError{Component: "file sink", Cause: err}
	}
	return nil
}
