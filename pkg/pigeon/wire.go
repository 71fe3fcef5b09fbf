package pigeon

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// LineSize bounds every wire line, in and out.
	LineSize = 128
	// AlignSize is the column width the path field is padded to.
	AlignSize = 4
)

// FormatLine renders one output line:
//
//	[<clock, 8 digits>|<path padded to a multiple of AlignSize>] <message>
//
// The path is the bare portal id when key is empty. The result never exceeds LineSize bytes.
func FormatLine(clock uint32, portalID, key, message string) string {
	path := joinPath(portalID, key)
	width := (len(path) + AlignSize - 1) / AlignSize * AlignSize
	return truncate(fmt.Sprintf("[%08d|%-*s] %s", clock, width, path, message), LineSize)
}

// Line is a decoded output line.
type Line struct {
	Clock   uint32
	Portal  string
	Key     string
	Message string
}

// Path returns the line's path as it appears on the wire, without padding.
func (l Line) Path() string {
	return joinPath(l.Portal, l.Key)
}

// ParseLine decodes a line produced by FormatLine. Trailing CR/LF is ignored.
func ParseLine(raw string) (Line, error) {
	raw = strings.TrimRight(raw, "\r\n")
	if !strings.HasPrefix(raw, "[") {
		return Line{}, fmt.Errorf("%w: missing '['", ErrMalformedLine)
	}

	bar := strings.IndexByte(raw, '|')
	end := strings.IndexByte(raw, ']')
	if bar < 0 || end < 0 || end < bar {
		return Line{}, fmt.Errorf("%w: missing '|' or ']'", ErrMalformedLine)
	}

	clock, err := strconv.ParseUint(raw[1:bar], 10, 32)
	if err != nil {
		return Line{}, fmt.Errorf("%w: bad clock %q", ErrMalformedLine, raw[1:bar])
	}

	path := strings.TrimSpace(raw[bar+1 : end])
	if path == "" {
		return Line{}, fmt.Errorf("%w: empty path", ErrMalformedLine)
	}
	portal, key := splitPath(path)

	message := raw[end+1:]
	message = strings.TrimPrefix(message, " ")

	return Line{
		Clock:   uint32(clock),
		Portal:  portal,
		Key:     key,
		Message: message,
	}, nil
}

// Request is a decoded input line.
type Request struct {
	Portal string
	Key    string
	// Body is the text after the path. An empty Body is still a set.
	Body string
}

// ParseRequest splits an input line into portal, key and body. Whitespace around the line and
// around the portal id and key is ignored.
func ParseRequest(line string) (Request, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Request{}, ErrEmptyRequest
	}

	path, body := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		path = line[:i]
		body = strings.TrimLeftFunc(line[i:], unicode.IsSpace)
	}

	portal, key := splitPath(path)
	return Request{Portal: portal, Key: key, Body: body}, nil
}

// FormatRequest builds an input line for portal.key with an optional body.
func FormatRequest(portalID, key, body string) string {
	path := joinPath(portalID, key)
	if body == "" {
		return path
	}
	return path + " " + body
}

func joinPath(portalID, key string) string {
	if key == "" {
		return portalID
	}
	return portalID + "." + key
}

func splitPath(path string) (portal, key string) {
	portal, key, _ = strings.Cut(path, ".")
	return strings.TrimSpace(portal), strings.TrimSpace(key)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
