package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestReportCounts(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	r.Success(100)
	r.Success(250)
	r.Failure("/src/bad.dcm", errors.New("truncated value"))

	if got := r.Succeeded(); got != 2 {
		t.Errorf("Succeeded() = %d, want 2", got)
	}
	if got := r.BytesWritten(); got != 350 {
		t.Errorf("BytesWritten() = %d, want 350", got)
	}
	failures := r.Failures()
	if len(failures) != 1 {
		t.Fatalf("len(Failures()) = %d, want 1", len(failures))
	}
	if failures[0].Path != "/src/bad.dcm" || failures[0].Err != "truncated value" {
		t.Errorf("Failures()[0] = %+v", failures[0])
	}
}

func TestReportLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "errors.log")
	r, err := New(logPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r.Failure("/src/exam/bad.dcm", errors.New("truncated value"))
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "bad.dcm") || !strings.Contains(line, "truncated value") {
		t.Errorf("log line = %q", line)
	}
}

func TestReportConcurrentUse(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Success(10)
			r.Failure("/src/x", errors.New("boom"))
		}()
	}
	wg.Wait()

	if got := r.Succeeded(); got != 16 {
		t.Errorf("Succeeded() = %d, want 16", got)
	}
	if got := len(r.Failures()); got != 16 {
		t.Errorf("len(Failures()) = %d, want 16", got)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 bytes"},
		{512, "512 bytes"},
		{1536, "1.50 KB"},
		{5 << 20, "5.00 MB"},
		{3 << 30, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := HumanSize(tt.n); got != tt.want {
			t.Errorf("HumanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
