package processing

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	tags       = regexp.MustCompile(`<[^>]*>`)
)

// StripMarkup removes HTML tags (search highlight <b> tags included), decodes
// entities and squeezes whitespace.
func StripMarkup(input string) string {
	if input == "" {
		return ""
	}

	var text string
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err == nil {
		text = doc.Text()
	} else {
		text = html.UnescapeString(tags.ReplaceAllString(input, ""))
	}

	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Fingerprint hashes the (title, url) pair used for duplicate detection and
// blacklist content ids.
func Fingerprint(title, url string) string {
	s := md5.Sum([]byte(strings.TrimSpace(title) + "|" + strings.TrimSpace(url)))
	return hex.EncodeToString(s[:])
}

// FormatRelative renders the age of ts relative to now the way the frontend
// shows it ("방금 전", "5분 전", "3시간 전", "2일 전").
func FormatRelative(ts, now time.Time) string {
	diff := now.Sub(ts)
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff >= 24*time.Hour:
		return fmt.Sprintf("%d일 전", int(diff/(24*time.Hour)))
	case diff >= time.Hour:
		return fmt.Sprintf("%d시간 전", int(diff/time.Hour))
	case diff >= time.Minute:
		return fmt.Sprintf("%d분 전", int(diff/time.Minute))
	default:
		return "방금 전"
	}
}

// WithinWindow reports whether ts is no older than window at now. The boundary
// is inclusive.
func WithinWindow(ts, now time.Time, window time.Duration) bool {
	return now.Sub(ts) <= window
}
