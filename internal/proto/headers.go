package proto

import (
	"bytes"
	"strconv"
)

// HeaderVersion is the fixed first token of a header block's status line.
const HeaderVersion = "NATS/1.0"

// Header is an ordered multimap of string to string, preserving both
// insertion order and duplicate keys, matching the wire representation of a
// header block (repeated "Key: Value" lines are legal and meaningful).
type Header struct {
	keys   []string
	values []string
}

// NewHeader returns an empty Header.
func NewHeader() *Header { return &Header{} }

// Add appends a key/value pair, preserving any existing values for key.
func (h *Header) Add(key, value string) {
	h.keys = append(h.keys, key)
	h.values = append(h.values, value)
}

// Set replaces all existing values for key with a single value.
func (h *Header) Set(key, value string) {
	h.Del(key)
	h.Add(key, value)
}

// Get returns the first value for key, or "" if absent.
func (h *Header) Get(key string) string {
	for i, k := range h.keys {
		if k == key {
			return h.values[i]
		}
	}

	return ""
}

// Values returns every value recorded for key, in insertion order.
func (h *Header) Values(key string) []string {
	var out []string
	for i, k := range h.keys {
		if k == key {
			out = append(out, h.values[i])
		}
	}

	return out
}

// Del removes every value for key.
func (h *Header) Del(key string) {
	keys := h.keys[:0]
	values := h.values[:0]
	for i, k := range h.keys {
		if k != key {
			keys = append(keys, k)
			values = append(values, h.values[i])
		}
	}
	h.keys, h.values = keys, values
}

// Len returns the number of key/value pairs, counting duplicates.
func (h *Header) Len() int { return len(h.keys) }

// Range calls fn for every key/value pair in insertion order.
func (h *Header) Range(fn func(key, value string)) {
	for i, k := range h.keys {
		fn(k, h.values[i])
	}
}

var crlf = []byte("\r\n")

// parseHeaderBlock parses a header block per spec §4.1/§6:
//
//	NATS/1.0[ <status> [<reason>]]\r\n
//	Key: Value\r\n
//	...
//	\r\n
//
// It returns the parsed Header along with any status code/text found on the
// first line (0/"" if none).
func parseHeaderBlock(block []byte) (*Header, int, string, error) {
	lines := bytes.Split(block, crlf)
	if len(lines) == 0 {
		return nil, 0, "", protoErrf("empty header block")
	}

	first := lines[0]
	if !bytes.HasPrefix(first, []byte(HeaderVersion)) {
		return nil, 0, "", protoErrf("header block missing %s prefix", HeaderVersion)
	}

	status := 0
	statusText := ""
	rest := bytes.TrimSpace(first[len(HeaderVersion):])
	if len(rest) > 0 {
		parts := bytes.SplitN(rest, []byte(" "), 2)
		code, err := strconv.Atoi(string(parts[0]))
		if err != nil || code < 0 || code > 999 {
			return nil, 0, "", protoErrf("invalid status code %q", parts[0])
		}
		status = code
		if len(parts) == 2 {
			statusText = string(bytes.TrimSpace(parts[1]))
		}
	}

	h := NewHeader()
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			return nil, 0, "", protoErrf("malformed header line %q", line)
		}
		key := string(bytes.TrimSpace(line[:idx]))
		value := string(bytes.TrimSpace(line[idx+1:]))
		h.Add(key, value)
	}

	return h, status, statusText, nil
}

// writeHeaderBlock formats h (with an optional status line) into the wire
// representation, terminated by a trailing blank line.
func writeHeaderBlock(buf *bytes.Buffer, h *Header, status int, statusText string) {
	buf.WriteString(HeaderVersion)
	if status > 0 {
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(status))
		if statusText != "" {
			buf.WriteByte(' ')
			buf.WriteString(statusText)
		}
	}
	buf.Write(crlf)
	if h != nil {
		h.Range(func(k, v string) {
			buf.WriteString(k)
			buf.WriteString(": ")
			buf.WriteString(v)
			buf.Write(crlf)
		})
	}
	buf.Write(crlf)
}
