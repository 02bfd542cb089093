package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Exporter appends completed sessions to a per-day markdown log, giving a
// browsable record of results outside the database.
type Exporter struct {
	dir string
	mu  sync.Mutex
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

func (e *Exporter) Export(sess Session, answers []Answer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", e.dir, err)
	}

	date := sess.StartedAt.Format("2006-01-02")
	path := filepath.Join(e.dir, date+".md")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, formatSession(sess, answers)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (e *Exporter) CurrentPath() string {
	date := time.Now().Format("2006-01-02")
	return filepath.Join(e.dir, date+".md")
}

func formatSession(sess Session, answers []Answer) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Session %s (%s)\n", sess.ID, sess.StartedAt.Format("15:04"))
	fmt.Fprintf(&b, "- interview: %s\n", sess.InterviewID)
	if sess.ResultID != "" {
		fmt.Fprintf(&b, "- result: %s\n", sess.ResultID)
	}

	for _, a := range answers {
		fmt.Fprintf(&b, "%d. %s", a.QuestionIndex+1, a.Prompt)
		if a.ResultID != "" {
			fmt.Fprintf(&b, " (result %s)", a.ResultID)
		}
		b.WriteString("\n")
	}

	return b.String()
}
