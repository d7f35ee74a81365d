// Package xmlio implements the streaming XML writer and incremental parser
// shared by the device description, SCPD, SOAP, and eventing codecs.
//
// Both halves follow the same rule: never buffer a whole document. The
// writer emits directly into whatever sink the caller provides (usually
// io.Discard for sizing, then the real connection for sending); the parser
// consumes an append-only byte buffer and yields one event per call so a
// caller streaming an HTTP body can interleave reads and parses.
package xmlio

import (
	"io"
	"strconv"
	"strings"
)

// WritePreamble emits the standard XML declaration.
func WritePreamble(w io.Writer) (int, error) {
	return io.WriteString(w, `<?xml version="1.0" encoding="utf-8"?>`)
}

// OpenElement writes "<name attrs>" or "<prefix:name attrs>". attrs, if
// non-empty, is written verbatim (already escaped) with a leading space.
func OpenElement(w io.Writer, prefix, name, attrs string) (int, error) {
	var b strings.Builder
	b.WriteByte('<')
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(':')
	}
	b.WriteString(name)
	if attrs != "" {
		b.WriteByte(' ')
		b.WriteString(attrs)
	}
	b.WriteByte('>')
	return io.WriteString(w, b.String())
}

// CloseElement writes "</name>" or "</prefix:name>".
func CloseElement(w io.Writer, prefix, name string) (int, error) {
	var b strings.Builder
	b.WriteString("</")
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(':')
	}
	b.WriteString(name)
	b.WriteByte('>')
	return io.WriteString(w, b.String())
}

// SelfClosing writes "<name attrs/>" when the element has no content.
func SelfClosing(w io.Writer, prefix, name, attrs string) (int, error) {
	var b strings.Builder
	b.WriteByte('<')
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(':')
	}
	b.WriteString(name)
	if attrs != "" {
		b.WriteByte(' ')
		b.WriteString(attrs)
	}
	b.WriteString("/>")
	return io.WriteString(w, b.String())
}

// Leaf writes a complete "<name>text</name>" element, escaping text. An
// empty text value still gets an explicit close tag so readers can tell
// an empty-but-present element from an absent one.
func Leaf(w io.Writer, name, text string) (int, error) {
	total := 0
	n, err := OpenElement(w, "", name, "")
	total += n
	if err != nil {
		return total, err
	}
	n, err = WriteEscaped(w, text)
	total += n
	if err != nil {
		return total, err
	}
	n, err = CloseElement(w, "", name)
	total += n
	return total, err
}

// LeafInt writes a leaf element wrapping an integer value.
func LeafInt(w io.Writer, name string, value int) (int, error) {
	return Leaf(w, name, strconv.Itoa(value))
}

// NestedWriter produces the body of a nested element; it receives the same
// sink the caller is writing to plus an opaque context value, and returns
// the number of bytes it wrote.
type NestedWriter func(w io.Writer, ctx any) (int, error)

// Nested opens name, invokes body with ctx, and closes name, returning the
// total bytes written across all three steps. This is the writer-closure
// idiom used throughout the codec layer: call once into io.Discard to size
// a Content-Length header, then again into the real sink to send.
func Nested(w io.Writer, prefix, name, attrs string, body NestedWriter, ctx any) (int, error) {
	total := 0
	n, err := OpenElement(w, prefix, name, attrs)
	total += n
	if err != nil {
		return total, err
	}
	if body != nil {
		n, err = body(w, ctx)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = CloseElement(w, prefix, name)
	total += n
	return total, err
}

// escapeReplacer maps runes needing entity replacement. The replacement
// is a single pass over the input, so the "&" of an inserted entity is
// never escaped a second time.
var escapeReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// WriteEscaped rewrites &, <, >, ", ' to their named entity forms and
// forwards everything else unchanged. It reports the expanded length so
// callers sizing a Content-Length see the true wire size.
func WriteEscaped(w io.Writer, s string) (int, error) {
	if !strings.ContainsAny(s, `&<>"'`) {
		return io.WriteString(w, s)
	}
	escaped := escapeReplacer.Replace(s)
	return io.WriteString(w, escaped)
}

// EscapingWriter wraps any io.Writer and escapes everything written through
// it. Write reports the expanded (post-escape) byte count, matching the
// writer functions above, so a caller can compose EscapingWriter with
// io.Discard to size an attribute fragment before emitting it for real.
type EscapingWriter struct {
	W io.Writer
}

func (e EscapingWriter) Write(p []byte) (int, error) {
	n, err := WriteEscaped(e.W, string(p))
	return n, err
}
