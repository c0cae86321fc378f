package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/dentaltracker/dentaltracker/internal/database"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"

	displayTimeLayout = "2006-01-02 15:04:05"
)

// photoView is the machine readable shape of a photo record.
type photoView struct {
	ID             int64   `json:"id" yaml:"id"`
	Day            int     `json:"day" yaml:"day"`
	CapturedAt     string  `json:"captured_at" yaml:"captured_at"`
	FilePath       string  `json:"file_path" yaml:"file_path"`
	AlignmentScore float64 `json:"alignment_score" yaml:"alignment_score"`
	Notes          string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func newPhotoView(rec database.PhotoRecord, day int) photoView {
	return photoView{
		ID:             rec.ID,
		Day:            day,
		CapturedAt:     rec.CapturedAt.Format(time.RFC3339),
		FilePath:       rec.FilePath,
		AlignmentScore: rec.AlignmentScore,
		Notes:          rec.Notes,
	}
}

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s (valid values: %s)", format, strings.Join(allowed, ", "))
}

func writeJSON(w io.Writer, v any) error {
	return writeJSONIndent(w, v, "  ")
}

func writeJSONIndent(w io.Writer, v any, indent string) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", indent)
	return encoder.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// wrapString wraps s to maxWidth display cells, counting wide runes as two.
func wrapString(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return s
	}

	s = strings.TrimSpace(s)
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}

	var result strings.Builder
	var line strings.Builder
	width := 0

	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if width+w > maxWidth && width > 0 {
			result.WriteString(line.String())
			result.WriteString("\n")
			line.Reset()
			width = 0
		}
		line.WriteRune(r)
		width += w
	}

	if line.Len() > 0 {
		result.WriteString(line.String())
	}

	return result.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
