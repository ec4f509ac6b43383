/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls JSON content out of model response text that may wrap it
// in a markdown code fence. It looks for a ```json fence first, then falls
// back to stripping any surrounding fence markers.
func ExtractJSON(responseText string) string {
	lines := strings.Split(responseText, "\n")
	var b strings.Builder
	inBlock := false
	found := false

	for _, line := range lines {
		if !inBlock && strings.TrimSpace(line) == "```json" {
			inBlock = true
			found = true
			continue
		}
		if inBlock && strings.TrimSpace(line) == "```" {
			break
		}
		if inBlock {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(line)
		}
	}

	if found {
		return strings.TrimSpace(b.String())
	}

	// No fenced block; strip stray fence markers and whitespace.
	text := strings.TrimSpace(responseText)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Extract unmarshals the JSON content of a model response into T.
func Extract[T any](responseText string) (T, error) {
	var out T
	content := ExtractJSON(responseText)
	if content == "" {
		return out, fmt.Errorf("response contains no JSON content")
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, fmt.Errorf("decoding response JSON: %w", err)
	}
	return out, nil
}

// ExtractRaw returns the JSON content of a model response as a raw message,
// validating that it parses.
func ExtractRaw(responseText string) (json.RawMessage, error) {
	content := ExtractJSON(responseText)
	if content == "" {
		return nil, fmt.Errorf("response contains no JSON content")
	}
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return json.RawMessage(content), nil
}
