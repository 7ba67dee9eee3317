package jsoncedit

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound reports that a key path segment is absent from its
	// enclosing object.
	ErrKeyNotFound = errors.New("key not found")
	// ErrNotAnObject reports that a key's value is an array where an object
	// was required.
	ErrNotAnObject = errors.New("value is not an object")
	// ErrUnterminated reports a string, comment, or brace that never closes
	// before the end of the document.
	ErrUnterminated = errors.New("unterminated structure")
	// ErrMalformedReplacement reports a replacement payload that is not a
	// valid JSON object.
	ErrMalformedReplacement = errors.New("malformed replacement")
)

// Span is an inclusive (Start, End) byte-offset pair bounding a
// brace-delimited object: doc[Start] == '{' and doc[End] == '}'.
type Span struct {
	Start int
	End   int
}

// skipCommentOrString returns the offset just past the comment or string
// starting at i, or i unchanged when i does not start one. Line comments run
// to the next newline, block comments to the next "*/", and both single- and
// double-quoted strings honor backslash escapes. Unterminated constructs
// consume the rest of the document.
func skipCommentOrString(doc []byte, i int) int {
	n := len(doc)
	if i >= n {
		return i
	}

	if doc[i] == '/' && i+1 < n {
		switch doc[i+1] {
		case '/':
			if j := bytes.IndexByte(doc[i:], '\n'); j >= 0 {
				return i + j + 1
			}
			return n
		case '*':
			if j := bytes.Index(doc[i+2:], []byte("*/")); j >= 0 {
				return i + 2 + j + 2
			}
			return n
		}
	}

	if q := doc[i]; q == '"' || q == '\'' {
		for j := i + 1; j < n; {
			switch {
			case doc[j] == '\\' && j+1 < n:
				j += 2
			case doc[j] == q:
				return j + 1
			default:
				j++
			}
		}
		return n
	}

	return i
}

// findKey scans [start, end) for the exact double-quoted token "key",
// skipping comments and string literals so that occurrences inside them never
// match. Returns -1 when the window is exhausted. The token test runs before
// the skip: the key token is itself a string literal, and skipping it first
// would make every key unreachable. A match only counts when a colon follows;
// a string value equal to the token is followed by ',', '}', or ']' instead,
// and the skip consumes it like any other string.
func findKey(doc []byte, key string, start, end int) int {
	token := []byte(`"` + key + `"`)
	for i := start; i < end; {
		if i+len(token) <= end && bytes.HasPrefix(doc[i:], token) && colonAfter(doc, i+len(token), end) != -1 {
			return i
		}
		if j := skipCommentOrString(doc, i); j != i {
			i = j
			continue
		}
		i++
	}
	return -1
}

// colonAfter returns the offset of the colon following a key token that ends
// at i, stepping over whitespace and comments, or -1 when the next structural
// byte is anything else.
func colonAfter(doc []byte, i, end int) int {
	for i < end {
		switch doc[i] {
		case ' ', '\t', '\n', '\r':
			i++
		case ':':
			return i
		case '/':
			j := skipCommentOrString(doc, i)
			if j == i {
				return -1
			}
			i = j
		default:
			return -1
		}
	}
	return -1
}

// findObjectStart scans [from, end) for the first structural '{', skipping
// comments and strings. A structural '[' is a definitive negative: the value
// is an array, not an object.
func findObjectStart(doc []byte, from, end int) (int, error) {
	for i := from; i < end; {
		if j := skipCommentOrString(doc, i); j != i {
			i = j
			continue
		}
		switch doc[i] {
		case '{':
			return i, nil
		case '[':
			return -1, ErrNotAnObject
		}
		i++
	}
	return -1, ErrKeyNotFound
}

// findObjectEnd returns the offset of the brace matching the '{' at open,
// counting nested braces and skipping comments and strings. When no match
// exists it degrades to len(doc); callers must treat that as malformed input.
func findObjectEnd(doc []byte, open int) int {
	depth := 1
	for i := open + 1; i < len(doc); {
		if j := skipCommentOrString(doc, i); j != i {
			i = j
			continue
		}
		switch doc[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return len(doc)
}

// Resolve walks the key path from the document root and returns the span of
// the object that is the final key's value, braces included. Each segment
// narrows the search window to the interior of its object, so a key found
// outside the current object (a sibling) does not satisfy the path. When a
// key appears more than once at the same level the first occurrence in
// document order wins.
func Resolve(doc []byte, path ...string) (Span, error) {
	if len(path) == 0 {
		return Span{}, fmt.Errorf("jsoncedit: empty key path: %w", ErrKeyNotFound)
	}

	winStart, winEnd := 0, len(doc)
	var span Span
	for _, key := range path {
		keyPos := findKey(doc, key, winStart, winEnd)
		if keyPos == -1 {
			return Span{}, fmt.Errorf("jsoncedit: key %q: %w", key, ErrKeyNotFound)
		}
		objStart, err := findObjectStart(doc, keyPos, winEnd)
		if err != nil {
			return Span{}, fmt.Errorf("jsoncedit: key %q: %w", key, err)
		}
		objEnd := findObjectEnd(doc, objStart)
		if objEnd == len(doc) {
			return Span{}, fmt.Errorf("jsoncedit: object of key %q: %w", key, ErrUnterminated)
		}
		span = Span{Start: objStart, End: objEnd}
		winStart, winEnd = objStart+1, objEnd
	}
	return span, nil
}
