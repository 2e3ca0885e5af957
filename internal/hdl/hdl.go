// Package hdl holds the small Verilog text model shared by the planner,
// the verifier, and the prompts: port interfaces, identifier hygiene, and
// snippet rendering. Generated code is otherwise treated as opaque text.
package hdl

import (
	"fmt"
	"regexp"
	"strings"
)

// Direction of a module port.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
	Inout  Direction = "inout"
)

// ParseDirection normalizes a direction string from model output.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "in":
		return Input, nil
	case "output", "out":
		return Output, nil
	case "inout":
		return Inout, nil
	default:
		return "", fmt.Errorf("unknown port direction %q", s)
	}
}

// Port is one wire of a module interface.
type Port struct {
	Name      string    `json:"name" yaml:"name"`
	Width     int       `json:"width" yaml:"width"` // bits; 0 is treated as 1
	Direction Direction `json:"direction" yaml:"direction"`
}

// EffectiveWidth returns the port width with the zero value mapped to 1.
func (p Port) EffectiveWidth() int {
	if p.Width <= 0 {
		return 1
	}
	return p.Width
}

// rangeSpec renders the vector range, empty for single-bit ports.
func (p Port) rangeSpec() string {
	w := p.EffectiveWidth()
	if w == 1 {
		return ""
	}
	return fmt.Sprintf("[%d:0] ", w-1)
}

// String renders the port as it appears in a declaration, e.g.
// "input [7:0] data".
func (p Port) String() string {
	return fmt.Sprintf("%s %s%s", p.Direction, p.rangeSpec(), p.Name)
}

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// verilogKeywords are identifiers the planner must not accept as module or
// port names. Subset of the Verilog-2001 reserved words that realistically
// collide with model-invented names.
var verilogKeywords = map[string]bool{
	"always": true, "assign": true, "begin": true, "case": true,
	"endcase": true, "else": true, "end": true, "endmodule": true,
	"for": true, "if": true, "initial": true, "inout": true,
	"input": true, "integer": true, "module": true, "negedge": true,
	"output": true, "parameter": true, "posedge": true, "reg": true,
	"wire": true, "while": true,
}

// ValidIdentifier reports whether s is usable as a Verilog identifier.
func ValidIdentifier(s string) bool {
	return identRe.MatchString(s) && !verilogKeywords[strings.ToLower(s)]
}

// Declaration renders a module header for the given interface, the form
// dependency interfaces take inside generation prompts.
func Declaration(name string, ports []Port) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s (\n", name)
	for i, p := range ports {
		b.WriteString("    ")
		b.WriteString(p.String())
		if i < len(ports)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String()
}

// Instantiation renders a named-port instantiation template for a module,
// wiring every port to a net of the same name.
func Instantiation(name string, ports []Port) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s u_%s (\n", name, name)
	for i, p := range ports {
		fmt.Fprintf(&b, "    .%s(%s)", p.Name, p.Name)
		if i < len(ports)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String()
}
