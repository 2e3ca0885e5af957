// Package workspace owns the on-disk layout: per-attempt build areas
// under the workspace root and timestamped saved designs under the
// designs root.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chipwright/internal/orchestrate"
	"chipwright/internal/verify"
)

// maxNameLen bounds the prompt-derived directory name.
const maxNameLen = 40

// SafeName turns a free-text prompt into a filesystem- and
// Verilog-friendly name: lowercased, non-alphanumeric runs collapsed
// to single underscores, truncated.
func SafeName(prompt string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(prompt)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= maxNameLen {
			break
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "design"
	}
	return name
}

// SaveDesign persists a verified run: the integrated design, every
// module with its testbench, and a run summary. Returns the created
// directory.
func SaveDesign(designsDir string, res *orchestrate.DesignResult) (string, error) {
	if !res.Verified() {
		return "", fmt.Errorf("refusing to save a %s run", res.Status)
	}

	stamp := time.Now().Format("20060102_150405")
	dir := filepath.Join(designsDir, stamp+"_"+SafeName(res.Prompt))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating design directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "design.v"), []byte(res.TopLevel), 0644); err != nil {
		return "", fmt.Errorf("writing integrated design: %w", err)
	}

	for _, m := range res.Modules {
		if m.State != verify.StateVerified {
			continue
		}
		name := m.Node.Name
		if err := os.WriteFile(filepath.Join(dir, name+".v"), []byte(m.Design), 0644); err != nil {
			return "", fmt.Errorf("writing module %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name+"_tb.v"), []byte(m.Bench), 0644); err != nil {
			return "", fmt.Errorf("writing testbench %s: %w", name, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(summary(res)), 0644); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}
	return dir, nil
}

// summary renders the saved run's README.
func summary(res *orchestrate.DesignResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", SafeName(res.Prompt))
	fmt.Fprintf(&b, "Prompt: %s\n\n", res.Prompt)
	fmt.Fprintf(&b, "- Run: %s\n- Top module: `%s`\n- Duration: %s\n\n", res.RunID, res.Top, res.Duration)
	b.WriteString("| Module | Attempts |\n|---|---|\n")
	for _, m := range res.Modules {
		fmt.Fprintf(&b, "| `%s` | %d |\n", m.Node.Name, len(m.Attempts))
	}
	b.WriteString("\nSimulate with Icarus Verilog:\n\n```sh\niverilog -o design.out <module>.v <module>_tb.v && vvp design.out\n```\n")
	return b.String()
}

// CleanBuildDir removes per-attempt build areas left behind by a run.
// Best-effort; a missing directory is not an error.
func CleanBuildDir(workDir string) error {
	if workDir == "" || workDir == "/" {
		return fmt.Errorf("refusing to clean %q", workDir)
	}
	err := os.RemoveAll(workDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cleaning build directory: %w", err)
	}
	return nil
}
