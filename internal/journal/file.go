package journal

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// FileJournal stores one identifier per newline-terminated line. The file is
// read fully at open; appends hold an exclusive lock on a sibling lock file
// so concurrent processes never interleave partial lines.
type FileJournal struct {
	path string

	mu     sync.Mutex
	file   *os.File
	lock   *flock.Flock
	seen   map[string]struct{}
	closed bool
}

// OpenFile opens or creates <dir>/<name>.log.
func OpenFile(dir, name string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: ensure directory: %w", err)
	}
	path := filepath.Join(dir, name+".log")

	seen, partial, err := readLines(path)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	j := &FileJournal{
		path: path,
		file: file,
		lock: flock.New(path + ".lock"),
		seen: seen,
	}
	if partial {
		// Terminate a line cut short by a crash so the next append starts clean.
		if err := j.write([]byte("\n")); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return j, nil
}

// readLines loads complete lines. partial reports a trailing fragment without
// newline, which is ignored.
func readLines(path string) (map[string]struct{}, bool, error) {
	seen := make(map[string]struct{})
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return seen, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("journal: read %s: %w", path, err)
	}
	partial := len(data) > 0 && data[len(data)-1] != '\n'
	if partial {
		data = data[:bytes.LastIndexByte(data, '\n')+1]
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			seen[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("journal: scan %s: %w", path, err)
	}
	return seen, partial, nil
}

// Path returns the journal file location.
func (j *FileJournal) Path() string { return j.path }

// Contains reports whether id is recorded.
func (j *FileJournal) Contains(id string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.seen[id]
	return ok
}

// Append writes id followed by a newline and syncs the file.
func (j *FileJournal) Append(id string) error {
	if strings.ContainsAny(id, "\r\n") || id == "" {
		return fmt.Errorf("journal: invalid id %q", id)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if _, ok := j.seen[id]; ok {
		return nil
	}
	if err := j.write([]byte(id + "\n")); err != nil {
		return err
	}
	j.seen[id] = struct{}{}
	return nil
}

func (j *FileJournal) write(line []byte) error {
	if err := j.lock.Lock(); err != nil {
		return fmt.Errorf("journal: lock %s: %w", j.path, err)
	}
	defer func() { _ = j.lock.Unlock() }()
	if _, err := j.file.Write(line); err != nil {
		return fmt.Errorf("journal: append %s: %w", j.path, err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("journal: sync %s: %w", j.path, err)
	}
	return nil
}

// Len returns the number of recorded ids.
func (j *FileJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.seen)
}

// Close releases the file handle.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

func removeFile(dir, name string) error {
	path := filepath.Join(dir, name+".log")
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("journal: lock %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("journal: remove %s: %w", path, err)
	}
	return nil
}
