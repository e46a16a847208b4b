package upload

import (
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const maxNameLen = 100

// Sequence hands out strictly increasing nanosecond timestamps. Two callers
// in the same clock tick still get distinct values.
type Sequence struct {
	last atomic.Int64
	now  func() time.Time
}

// NewSequence returns a Sequence driven by the wall clock.
func NewSequence() *Sequence {
	return &Sequence{now: time.Now}
}

// Next returns a value greater than every value returned before it.
func (s *Sequence) Next() int64 {
	for {
		last := s.last.Load()
		next := s.now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if s.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// ObjectKey builds "{namespace}/{disambiguator}-{sanitized name}".
func ObjectKey(namespace string, disambiguator int64, hintName string) string {
	return strings.Trim(namespace, "/") + "/" + strconv.FormatInt(disambiguator, 10) + "-" + SanitizeName(hintName)
}

// SanitizeName reduces an untrusted client filename to a safe key segment:
// the base name only, with characters outside [A-Za-z0-9._-] replaced by '-',
// no leading dots, and a bounded length that keeps the extension.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	b.Grow(len(name))
	prevDash := false
	for _, r := range name {
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			r = '-'
		}
		if r == '-' && prevDash {
			continue
		}
		prevDash = r == '-'
		b.WriteRune(r)
	}

	s := strings.TrimLeft(b.String(), ".-")
	if len(s) > maxNameLen {
		ext := path.Ext(s)
		if len(ext) > 10 {
			ext = ""
		}
		s = s[:maxNameLen-len(ext)] + ext
	}
	if s == "" {
		return "upload"
	}
	return s
}
