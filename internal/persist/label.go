package persist

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const labelLayout = "2006-01-02 15:04:05.000"

// Label formats the annotation stamped on each persisted frame: the host
// name in title case, the capture time, and the sequence number.
func Label(host string, captured time.Time, seq uint64) string {
	var b strings.Builder
	if host = strings.TrimSpace(host); host != "" {
		host = strings.NewReplacer("-", " ", "_", " ").Replace(host)
		// Casers carry state and are not shared across goroutines.
		b.WriteString(cases.Title(language.Und).String(host))
		b.WriteString("  ")
	}
	if captured.IsZero() {
		captured = time.Now()
	}
	b.WriteString(captured.Format(labelLayout))
	b.WriteString("  #")
	b.WriteString(strconv.FormatUint(seq, 10))
	return b.String()
}
