package hdl

import (
	"regexp"
	"strings"
)

// Model replies usually arrive wrapped in markdown fences despite the
// system prompt asking otherwise. Extraction tries the language-tagged
// fence first, then any bare fence, then falls back to the trimmed text.

var (
	verilogFenceRe = regexp.MustCompile("(?s)```(?:verilog|systemverilog|v)\\s*\n(.*?)\n\\s*```")
	bareFenceRe    = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\s*\n(.*?)\n\\s*```")
	moduleNameRe   = regexp.MustCompile(`(?m)^\s*module\s+([a-zA-Z_][a-zA-Z0-9_$]*)`)
)

// ExtractCode pulls Verilog source out of a model reply.
func ExtractCode(text string) string {
	if m := verilogFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ExtractJSON pulls a JSON payload out of a model reply. A fenced block is
// unwrapped first; then the slice between the first '{' and the last '}' is
// returned so prose around the payload does not break decoding.
func ExtractJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	if m := bareFenceRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		return cleaned[start : end+1]
	}
	return cleaned
}

// ModuleName returns the first declared module name in code, or "".
func ModuleName(code string) string {
	if m := moduleNameRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return ""
}

// ModuleNames returns every declared module name in code, in order.
func ModuleNames(code string) []string {
	var names []string
	for _, m := range moduleNameRe.FindAllStringSubmatch(code, -1) {
		names = append(names, m[1])
	}
	return names
}
