package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[\\/*?":<>|]`)

// SanitizeFilename strips characters unsuitable for filenames and caps the
// length.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, " ", "_")
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}

// Capturer writes debug screenshots into a fixed directory.
type Capturer struct {
	dir string
}

func NewCapturer(dir string) (*Capturer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create debug images dir: %w", err)
	}
	return &Capturer{dir: dir}, nil
}

func (c *Capturer) Dir() string { return c.dir }

// Capture takes a screenshot named after the checkpoint. Failures are
// returned but callers treat them as non-fatal: a missing debug image never
// stops a checkout.
func (c *Capturer) Capture(pg Page, name string) (string, error) {
	file := fmt.Sprintf("%s_%s.png", SanitizeFilename(name), time.Now().Format("20060102150405"))
	path := filepath.Join(c.dir, file)
	if err := pg.Screenshot(path); err != nil {
		return "", err
	}
	return path, nil
}
