package jsoncedit

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

const exampleConfig = `{
  // OpenCode configuration
  "model": "zai-org/glm-4.7",
  "disabled_providers": ["opencode"],
  "provider": {
    "nanogpt": {
      "name": "NanoGPT",
      "npm": "@ai-sdk/openai-compatible",
      "options": {
        "baseURL": "https://nano-gpt.com/api/v1" // upstream
      },
      "models": {
        "zai-org/glm-4.7": {
          "name": "GLM 4.7",
          "limit": {
            "context": 200000,
            "output": 65535
          }
        }
      }
    }
  },
  /* local mcp servers */
  "mcp": {
    "nanogpt": {
      "type": "local",
      "enabled": true
    }
  }
}`

func TestFindModels(t *testing.T) {
	doc := []byte(exampleConfig)
	span, err := FindModels(doc)
	if err != nil {
		t.Fatalf("FindModels error: %v", err)
	}
	content := string(doc[span.Start : span.End+1])
	if !strings.Contains(content, `"GLM 4.7"`) {
		t.Fatalf("span does not cover the models object: %q", content)
	}
	// The mcp section also has a "nanogpt" key; the span must end before it.
	if strings.Contains(content, `"mcp"`) || strings.Contains(content, `"local"`) {
		t.Fatalf("span leaked past the models object: %q", content)
	}
}

func TestUpdateModelsPreservesComments(t *testing.T) {
	models := map[string]any{
		"openai/gpt-5": map[string]any{"name": "GPT 5"},
	}
	out, err := UpdateModels([]byte(exampleConfig), models)
	if err != nil {
		t.Fatalf("UpdateModels error: %v", err)
	}
	for _, keep := range []string{"// OpenCode configuration", "// upstream", "/* local mcp servers */", `"npm": "@ai-sdk/openai-compatible"`} {
		if !strings.Contains(string(out), keep) {
			t.Fatalf("expected %q to survive the update:\n%s", keep, out)
		}
	}
	ids, err := Models(out)
	if err != nil {
		t.Fatalf("Models error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "openai/gpt-5" {
		t.Fatalf("expected [openai/gpt-5], got %v", ids)
	}
}

func TestMergeModels(t *testing.T) {
	out, err := MergeModels([]byte(exampleConfig), []byte(`{"openai/gpt-5":{"name":"GPT 5"}}`))
	if err != nil {
		t.Fatalf("MergeModels error: %v", err)
	}
	ids, err := Models(out)
	if err != nil {
		t.Fatalf("Models error: %v", err)
	}
	if len(ids) != 2 || !containsID(ids, "zai-org/glm-4.7") || !containsID(ids, "openai/gpt-5") {
		t.Fatalf("expected existing and merged models, got %v", ids)
	}

	// A null value deletes the corresponding model.
	out, err = MergeModels(out, []byte(`{"zai-org/glm-4.7":null}`))
	if err != nil {
		t.Fatalf("MergeModels delete error: %v", err)
	}
	ids, err = Models(out)
	if err != nil {
		t.Fatalf("Models error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "openai/gpt-5" {
		t.Fatalf("expected [openai/gpt-5] after delete, got %v", ids)
	}
}

func TestSetModelKeepsSiblings(t *testing.T) {
	out, err := SetModel([]byte(exampleConfig), "openai/gpt-4.1", map[string]any{"name": "GPT 4.1"})
	if err != nil {
		t.Fatalf("SetModel error: %v", err)
	}
	ids, err := Models(out)
	if err != nil {
		t.Fatalf("Models error: %v", err)
	}
	if !containsID(ids, "zai-org/glm-4.7") || !containsID(ids, "openai/gpt-4.1") {
		t.Fatalf("expected both models present, got %v", ids)
	}

	span, err := FindModels(out)
	if err != nil {
		t.Fatalf("FindModels on output error: %v", err)
	}
	name := gjson.GetBytes(out[span.Start:span.End+1], `openai/gpt-4\.1.name`)
	if name.String() != "GPT 4.1" {
		t.Fatalf("expected new model name, got %q", name.String())
	}
}

func TestModelsList(t *testing.T) {
	ids, err := Models([]byte(exampleConfig))
	if err != nil {
		t.Fatalf("Models error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "zai-org/glm-4.7" {
		t.Fatalf("expected [zai-org/glm-4.7], got %v", ids)
	}
}

func TestUpdateModelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opencode.jsonc")
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	models := map[string]any{
		"zai-org/glm-4.7": map[string]any{"name": "GLM 4.7 (updated)"},
	}
	changed, err := UpdateModelsFile(path, models)
	if err != nil {
		t.Fatalf("UpdateModelsFile error: %v", err)
	}
	if !changed {
		t.Fatalf("expected first update to report a change")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Contains(after, []byte("// OpenCode configuration")) {
		t.Fatalf("comments lost on file update:\n%s", after)
	}
	if !bytes.Contains(after, []byte("GLM 4.7 (updated)")) {
		t.Fatalf("updated model missing:\n%s", after)
	}

	// Same payload again: no bytes change, no rewrite.
	changed, err = UpdateModelsFile(path, models)
	if err != nil {
		t.Fatalf("second UpdateModelsFile error: %v", err)
	}
	if changed {
		t.Fatalf("expected second update to be a no-op")
	}
	unchanged, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(unchanged, after) {
		t.Fatalf("file changed on no-op update:\n%s", unifiedDiff(string(after), string(unchanged)))
	}
}

func TestUpdateModelsFileMissingSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opencode.jsonc")
	original := []byte(`{"provider":{"other":{}}}`)
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := UpdateModelsFile(path, map[string]any{}); err == nil {
		t.Fatalf("expected error for missing models section")
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(after, original) {
		t.Fatalf("file modified despite failed resolution")
	}
}

func containsID(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
