package jsoncedit

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ModelsPath is the key path of the nanoGPT models object in an OpenCode
// configuration file.
var ModelsPath = []string{"provider", "nanogpt", "models"}

// FindModels returns the span of the provider.nanogpt.models object.
func FindModels(doc []byte) (Span, error) {
	return Resolve(doc, ModelsPath...)
}

// ReplaceModels substitutes the models object with pre-serialized JSON text,
// reformatted to match the document's indentation.
func ReplaceModels(doc, models []byte) ([]byte, error) {
	return ReplaceBody(doc, models, ModelsPath...)
}

// UpdateModels substitutes the models object with the serialization of
// models, which must marshal to a JSON object.
func UpdateModels(doc []byte, models any) ([]byte, error) {
	return Update(doc, models, ModelsPath...)
}

// MergeModels applies an RFC 7386 merge patch to the models object and
// splices the result back in. The models object itself must be comment-free
// (its surroundings may carry comments freely); patch keys set to null delete
// the corresponding models.
func MergeModels(doc, patch []byte) ([]byte, error) {
	span, err := FindModels(doc)
	if err != nil {
		return nil, err
	}
	merged, err := jsonpatch.MergePatch(doc[span.Start:span.End+1], patch)
	if err != nil {
		return nil, fmt.Errorf("jsoncedit: merge models: %w: %v", ErrMalformedReplacement, err)
	}
	// A patch of literal null merges to null, which is not an object.
	if err := checkObjectText(merged); err != nil {
		return nil, err
	}
	return spliceBody(doc, span, "models", merged)
}

// SetModel sets a single entry of the models object, leaving sibling entries
// untouched. The models object itself must be comment-free.
func SetModel(doc []byte, id string, model any) ([]byte, error) {
	span, err := FindModels(doc)
	if err != nil {
		return nil, err
	}
	current := append([]byte(nil), doc[span.Start:span.End+1]...)
	updated, err := sjson.SetBytes(current, escapePathKey(id), model)
	if err != nil {
		return nil, fmt.Errorf("jsoncedit: set model %q: %w: %v", id, ErrMalformedReplacement, err)
	}
	return spliceBody(doc, span, "models", updated)
}

// Models returns the model IDs of the models object in document order.
func Models(doc []byte) ([]string, error) {
	span, err := FindModels(doc)
	if err != nil {
		return nil, err
	}
	var ids []string
	gjson.ParseBytes(doc[span.Start : span.End+1]).ForEach(func(key, _ gjson.Result) bool {
		ids = append(ids, key.String())
		return true
	})
	return ids, nil
}

// UpdateModelsFile rewrites the models object of the file at path with the
// serialization of models. The file is rewritten only when its bytes would
// actually change; the returned bool reports whether a write happened.
func UpdateModelsFile(path string, models any) (bool, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("jsoncedit: read %s: %w", path, err)
	}
	out, err := UpdateModels(doc, models)
	if err != nil {
		return false, err
	}
	if bytes.Equal(out, doc) {
		return false, nil
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, out, mode); err != nil {
		return false, fmt.Errorf("jsoncedit: write %s: %w", path, err)
	}
	return true, nil
}

// escapePathKey escapes a model ID for use as a single gjson/sjson path
// component; IDs like "zai-org/glm-4.7" contain path metacharacters.
func escapePathKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\', '|':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
