package peft

import (
	"path/filepath"
	"sort"
	"strings"
)

// canonicalModels maps well-known local model directory names to their
// canonical hub identifiers.
var canonicalModels = map[string]string{
	"Llama-3.2-1B-Instruct":     "meta-llama/Llama-3.2-1B-Instruct",
	"Llama-3.2-3B-Instruct":     "meta-llama/Llama-3.2-3B-Instruct",
	"Llama-3.1-8B-Instruct":     "meta-llama/Llama-3.1-8B-Instruct",
	"Mistral-7B-Instruct-v0.3":  "mistralai/Mistral-7B-Instruct-v0.3",
	"Qwen2.5-Coder-7B-Instruct": "Qwen/Qwen2.5-Coder-7B-Instruct",
	"gemma-2-9b-it":             "google/gemma-2-9b-it",
}

// quantSuffixes are local-only naming decorations that never appear in a
// canonical identifier.
var quantSuffixes = []string{"-4bit", "-8bit", "-bf16", "-fp16", "-mlx", "-MLX"}

// baseModelID maps a local base-model path to the identifier recorded in
// the synthesized config: exact match first, then substring match, then a
// cleaned fallback of the directory name. Caller-supplied mappings take
// precedence over the built-in table.
func (c *Converter) baseModelID(baseModelPath string) string {
	name := filepath.Base(filepath.Clean(baseModelPath))

	if id, ok := c.Mappings[name]; ok {
		return id
	}
	if id, ok := canonicalModels[name]; ok {
		return id
	}

	// Substring match, in sorted key order so the choice is deterministic.
	keys := make([]string, 0, len(canonicalModels))
	for k := range canonicalModels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(name, k) {
			return canonicalModels[k]
		}
	}

	return cleanModelName(name)
}

// cleanModelName strips local quantization decorations from a directory
// name that matched nothing.
func cleanModelName(name string) string {
	for _, suffix := range quantSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.ReplaceAll(name, "_", "-")
}
