package notify

import "strings"

// Alert bodies are "Key: value" lines (Run, Status, Error, ...).
type field struct {
	key   string
	value string
}

func parseFields(text string) []field {
	var out []field
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			out = append(out, field{key: "Note", value: line})
			continue
		}
		out = append(out, field{key: k, value: v})
	}
	return out
}

func snake(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
}
