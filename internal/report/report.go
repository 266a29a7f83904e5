package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Failure is one file that could not be processed.
type Failure struct {
	Path string
	Err  string
}

// Report accumulates per-file outcomes for the end-of-run summary. Failures
// are never silently swallowed: they are counted, kept, and optionally
// appended to a log file. Safe for concurrent use.
type Report struct {
	mu           sync.Mutex
	succeeded    int
	bytesWritten int64
	failures     []Failure
	logFile      *os.File
}

// New creates a report; logPath == "" disables the log file.
func New(logPath string) (*Report, error) {
	r := &Report{}
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, fmt.Errorf("could not create log directory: %w", err)
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		r.logFile = f
	}
	return r, nil
}

// Success records one written file.
func (r *Report) Success(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded++
	r.bytesWritten += n
}

// Failure records one failed file and appends it to the log file when one
// is configured.
func (r *Report) Failure(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures = append(r.failures, Failure{Path: path, Err: err.Error()})
	if r.logFile != nil {
		line := fmt.Sprintf("%s | %s | %s\n",
			time.Now().Format(time.RFC3339), filepath.Base(path), err.Error())
		r.logFile.WriteString(line)
	}
}

// Succeeded returns the count of written files.
func (r *Report) Succeeded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded
}

// BytesWritten returns the total output size.
func (r *Report) BytesWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytesWritten
}

// Failures returns a copy of the recorded failures.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Close releases the log file, if any.
func (r *Report) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logFile != nil {
		return r.logFile.Close()
	}
	return nil
}

// HumanSize renders a byte count the way the summary prints it.
func HumanSize(n int64) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%d bytes", n)
	case n < 1<<20:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	case n < 1<<30:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
	}
}
