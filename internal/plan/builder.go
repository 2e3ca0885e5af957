package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chipwright/internal/hdl"
	"chipwright/internal/llm"
)

const decompositionSystem = "You are a digital design architect. You decompose hardware requests " +
	"into small hierarchies of synthesizable Verilog-2001 modules and answer only with JSON."

// Builder asks the generation backend for a decomposition and validates it
// into a Graph.
type Builder struct {
	client llm.Client
	logger *zap.Logger
}

// NewBuilder creates a plan builder.
func NewBuilder(client llm.Client, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{client: client, logger: logger}
}

// rawPlan mirrors the JSON shape the decomposition prompt demands.
type rawPlan struct {
	Modules []rawModule `json:"modules"`
}

type rawModule struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Ports       []rawPort `json:"ports"`
	DependsOn   []string  `json:"depends_on"`
}

type rawPort struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Width     int    `json:"width"`
}

// Build decomposes the request into a validated Graph. Unparsable JSON is
// re-prompted once with the parse error; graph invariant violations are
// fatal immediately.
func (b *Builder) Build(ctx context.Context, req Request) (*Graph, error) {
	prompt := b.decompositionPrompt(req)

	resp, err := b.client.CompleteWithSystem(ctx, decompositionSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("decomposition failed: %w", err)
	}

	raw, parseErr := parseRawPlan(resp)
	if parseErr != nil {
		b.logger.Warn("decomposition reply was not valid JSON, re-prompting once",
			zap.Error(parseErr))

		resp, err = b.client.Complete(ctx, b.repairPrompt(resp, parseErr))
		if err != nil {
			return nil, fmt.Errorf("decomposition re-prompt failed: %w", err)
		}
		raw, parseErr = parseRawPlan(resp)
		if parseErr != nil {
			return nil, planErrorf(UnparsableDecomposition, "decomposition JSON invalid after re-prompt: %v", parseErr)
		}
	}

	nodes, err := rawToNodes(raw)
	if err != nil {
		return nil, err
	}

	graph, err := NewGraph(nodes)
	if err != nil {
		return nil, err
	}

	b.logger.Info("plan built",
		zap.Int("modules", graph.Len()),
		zap.String("top", graph.Top()),
		zap.Strings("order", graph.TopologicalOrder()))
	return graph, nil
}

func parseRawPlan(resp string) (*rawPlan, error) {
	cleaned := hdl.ExtractJSON(resp)
	var raw rawPlan
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func rawToNodes(raw *rawPlan) ([]Node, error) {
	nodes := make([]Node, 0, len(raw.Modules))
	for _, m := range raw.Modules {
		ports := make([]hdl.Port, 0, len(m.Ports))
		for _, p := range m.Ports {
			dir, err := hdl.ParseDirection(p.Direction)
			if err != nil {
				return nil, planErrorf(UnparsableDecomposition, "module %q: %v", m.Name, err)
			}
			ports = append(ports, hdl.Port{Name: p.Name, Width: p.Width, Direction: dir})
		}
		nodes = append(nodes, Node{
			Name:        m.Name,
			Description: strings.TrimSpace(m.Description),
			Ports:       ports,
			DependsOn:   m.DependsOn,
		})
	}
	return nodes, nil
}

func (b *Builder) decompositionPrompt(req Request) string {
	var ctxb strings.Builder

	ctxb.WriteString(fmt.Sprintf("GOAL: %s\n\n", req.Prompt))

	if len(req.Hints) > 0 {
		ctxb.WriteString("INTERFACE HINTS:\n")
		for _, hint := range req.Hints {
			ctxb.WriteString(fmt.Sprintf("- %s\n", hint))
		}
		ctxb.WriteString("\n")
	}

	return fmt.Sprintf(`Decompose the following hardware request into Verilog modules.

%sRules:
- Propose 1 to 8 modules: leaf utilities first, exactly one top-level module that instantiates the others.
- The top module is the only module no other module depends on.
- Module and port names are snake_case Verilog-2001 identifiers.
- depends_on lists the module names a module instantiates; leaf modules use [].
- Every port needs name, direction (input|output|inout) and width in bits (1 for scalars).
- Descriptions must be behavioral and self-contained; each module is generated from its description alone.

Output JSON:
{
  "modules": [
    {
      "name": "half_adder",
      "description": "Combinational half adder: sum is a XOR b, carry is a AND b.",
      "ports": [
        {"name": "a", "direction": "input", "width": 1},
        {"name": "b", "direction": "input", "width": 1},
        {"name": "sum", "direction": "output", "width": 1},
        {"name": "carry", "direction": "output", "width": 1}
      ],
      "depends_on": []
    }
  ]
}

Output ONLY valid JSON:`, ctxb.String())
}

func (b *Builder) repairPrompt(badReply string, parseErr error) string {
	return fmt.Sprintf(`The following reply was supposed to be a JSON module decomposition but failed to parse.

PARSE ERROR:
%v

REPLY:
%s

Fix it. Output ONLY valid JSON with a top-level "modules" array:`, parseErr, limitString(badReply, 4000))
}

// limitString truncates s to max runes.
func limitString(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
