package jsoncedit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Replace substitutes the object at the key path with replacement, a complete
// pre-serialized "{...}" block that becomes the new value verbatim, braces
// included. Everything outside the resolved span — comments, whitespace, key
// order — is carried over byte for byte.
func Replace(doc, replacement []byte, path ...string) ([]byte, error) {
	if err := checkObjectText(replacement); err != nil {
		return nil, err
	}
	span, err := Resolve(doc, path...)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, span.Start+len(replacement)+len(doc)-span.End-1)
	out = append(out, doc[:span.Start]...)
	out = append(out, replacement...)
	out = append(out, doc[span.End+1:]...)
	return out, nil
}

// ReplaceBody substitutes the object at the key path with replacement,
// keeping the `"key":` prefix exactly as written and reformatting only the
// new body: it is reindented to the document's detected indent width and
// aligned with the key's own line. The replacement text's original formatting
// is not preserved.
func ReplaceBody(doc, replacement []byte, path ...string) ([]byte, error) {
	if err := checkObjectText(replacement); err != nil {
		return nil, err
	}
	span, err := Resolve(doc, path...)
	if err != nil {
		return nil, err
	}
	return spliceBody(doc, span, path[len(path)-1], replacement)
}

// Update marshals v and substitutes the object at the key path with the
// result, formatted as by ReplaceBody. v must marshal to a JSON object.
func Update(doc []byte, v any, path ...string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsoncedit: %w: %v", ErrMalformedReplacement, err)
	}
	return ReplaceBody(doc, b, path...)
}

// spliceBody rebuilds the document as prefix + " " + reindented body +
// suffix, where prefix ends at the colon following the nearest occurrence of
// the quoted key before span.Start.
func spliceBody(doc []byte, span Span, key string, body []byte) ([]byte, error) {
	token := []byte(`"` + key + `"`)
	keyPos, colon := 0, -1
	for searchEnd := span.Start; colon == -1; {
		keyPos = bytes.LastIndex(doc[:searchEnd], token)
		if keyPos == -1 {
			return nil, fmt.Errorf("jsoncedit: key %q: %w", key, ErrKeyNotFound)
		}
		// An occurrence inside a comment between the true key and the brace
		// has no colon after it; keep scanning backward.
		colon = colonAfter(doc, keyPos+len(token), span.Start)
		searchEnd = keyPos
	}
	cut := colon + 1

	formatted := reindent(body, indentString(doc), lineIndent(doc, keyPos))

	out := make([]byte, 0, cut+1+len(formatted)+len(doc)-span.End-1)
	out = append(out, doc[:cut]...)
	out = append(out, ' ')
	out = append(out, formatted...)
	out = append(out, doc[span.End+1:]...)
	return out, nil
}

// checkObjectText rejects replacement text that is not a valid JSON object.
// Validation happens before any splice so a malformed payload never produces
// a partial document.
func checkObjectText(replacement []byte) error {
	trimmed := bytes.TrimSpace(replacement)
	if len(trimmed) == 0 || trimmed[0] != '{' || !gjson.ValidBytes(trimmed) {
		return fmt.Errorf("jsoncedit: replacement is not a JSON object: %w", ErrMalformedReplacement)
	}
	return nil
}

// reindent pretty-prints body with the given indent unit, then shifts every
// line after the first by prefix so the block lines up under its key.
func reindent(body []byte, indent, prefix string) []byte {
	out := pretty.PrettyOptions(body, &pretty.Options{Width: 80, Indent: indent})
	out = bytes.TrimRight(out, "\n\t ")
	if prefix != "" {
		out = bytes.ReplaceAll(out, []byte("\n"), append([]byte("\n"), prefix...))
	}
	return out
}

// indentString returns the document's indent unit as a run of spaces.
func indentString(doc []byte) string {
	return strings.Repeat(" ", detectIndent(doc))
}

// lineIndent returns the leading whitespace of the line containing offset.
func lineIndent(doc []byte, offset int) string {
	start := bytes.LastIndexByte(doc[:offset], '\n') + 1
	i := start
	for i < offset && (doc[i] == ' ' || doc[i] == '\t') {
		i++
	}
	return string(doc[start:i])
}

// detectIndent guesses the document's indent width (2 or 4 spaces typically)
// as the GCD of all leading-space runs on non-blank, non-comment lines.
func detectIndent(b []byte) int {
	lines := bytes.Split(b, []byte("\n"))

	indents := []int{}
	for _, ln := range lines {
		trimmed := bytes.TrimLeft(ln, " \t")
		if len(trimmed) == 0 {
			continue
		}
		// Skip pure comment lines, including the interior of block comments.
		if trimmed[0] == '*' || bytes.HasPrefix(trimmed, []byte("//")) || bytes.HasPrefix(trimmed, []byte("/*")) {
			continue
		}

		n := leadingSpaces(ln)
		if n > 0 {
			indents = append(indents, n)
		}
	}

	if len(indents) == 0 {
		return 2
	}

	result := indents[0]
	for i := 1; i < len(indents); i++ {
		result = gcd(result, indents[i])
		if result == 1 {
			break
		}
	}

	if result > 0 && result <= 8 {
		return result
	}
	return 2
}

func gcd(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func leadingSpaces(line []byte) int {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}
