// Package logring is the coordinator's in-memory log tail: a bounded ring
// buffer the console reads from, backed by its own rotating daily files
// (apollo.YYYY-MM-DD.log, separate from glog's output) so nothing is lost
// once a session scrolls off the ring.
package logring

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
)

const (
	capacity   = 500
	maxAge     = 4 * 7 * 24 * time.Hour
	dateLayout = "2006-01-02"
)

// active is the ring every package-level Infof/Warningf/Errorf/Fatalf call
// feeds, in addition to glog's own output. nil until SetActive is called,
// so packages that log before the coordinator has opened its ring (or in
// tests) just fall through to glog alone.
var active *Ring

// SetActive registers r as the coordinator-wide logging sink. Called once
// from cmd/apollod after the ring is opened.
func SetActive(r *Ring) {
	active = r
}

// Infof logs through glog and, if a ring is active, appends the formatted
// line to it and its rotation file.
func Infof(format string, args ...interface{}) {
	glog.Infof(format, args...)
	feed(format, args...)
}

// Warningf logs through glog and feeds the active ring.
func Warningf(format string, args ...interface{}) {
	glog.Warningf(format, args...)
	feed(format, args...)
}

// Errorf logs through glog and feeds the active ring.
func Errorf(format string, args ...interface{}) {
	glog.Errorf(format, args...)
	feed(format, args...)
}

// Fatalf feeds the active ring, then logs through glog and exits the
// process (glog.Fatalf calls os.Exit after flushing).
func Fatalf(format string, args ...interface{}) {
	feed(format, args...)
	glog.Fatalf(format, args...)
}

func feed(format string, args ...interface{}) {
	if active == nil {
		return
	}
	active.Write(fmt.Sprintf(format, args...))
}

// Entry is one line recorded in the ring.
type Entry struct {
	At      time.Time
	Message string
}

// Ring is a fixed-capacity circular buffer of the most recent log entries,
// plus the daily rotating file each entry is also appended to.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	size    int

	dir         string
	currentDay  string
	currentFile *os.File
}

// New opens (or creates) today's rotation file under dir.
func New(dir string) (*Ring, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	r := &Ring{entries: make([]Entry, capacity), dir: dir}
	if err := r.rotateIfNeeded(time.Now()); err != nil {
		return nil, err
	}
	return r, nil
}

// Write appends message to the ring and to today's rotation file,
// rotating to a new file first if the day has changed.
func (r *Ring) Write(message string) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.rotateIfNeeded(now)

	idx := (r.start + r.size) % capacity
	r.entries[idx] = Entry{At: now, Message: message}
	if r.size < capacity {
		r.size++
	} else {
		r.start = (r.start + 1) % capacity
	}

	if r.currentFile != nil {
		fmt.Fprintf(r.currentFile, "%s %s\n", now.Format(time.RFC3339), message)
	}
}

// Snapshot returns every entry currently held, oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.start+i)%capacity]
	}
	return out
}

func (r *Ring) rotateIfNeeded(now time.Time) error {
	day := now.Format(dateLayout)
	if day == r.currentDay && r.currentFile != nil {
		return nil
	}
	if r.currentFile != nil {
		r.currentFile.Close()
	}
	path := filepath.Join(r.dir, "apollo."+day+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	r.currentFile = f
	r.currentDay = day
	return nil
}

// Close releases the current rotation file.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentFile == nil {
		return nil
	}
	return r.currentFile.Close()
}

// CleanupOldLogs removes rotation files under dir older than four weeks,
// run once at startup.
func CleanupOldLogs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "apollo.") || !strings.HasSuffix(name, ".log") {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, "apollo."), ".log")
		day, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

// Tail reads the last n lines written across all rotation files, newest
// file first, for the console's "show more history" path once the ring
// itself has scrolled something off.
func Tail(dir string, n int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "apollo.") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var lines []string
	for _, name := range names {
		if len(lines) >= n {
			break
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var fileLines []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fileLines = append(fileLines, scanner.Text())
		}
		f.Close()
		lines = append(fileLines, lines...)
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
