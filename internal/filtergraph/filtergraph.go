// Package filtergraph models the external engine's filter graph as a
// typed DAG of tagged node variants with explicit labeled edges. The
// graph is built and validated structurally, then serialized to the
// engine's textual filter_complex syntax only at the process boundary,
// keeping label wiring and execution order testable on their own.
package filtergraph

import (
	"fmt"
	"strings"
)

// Node is one tagged filter variant. Each variant knows only its own
// textual form; wiring lives in the graph.
type Node interface {
	filterText() string
}

// ColorSource synthesizes a solid-color canvas of a fixed size and
// duration. It consumes no inputs.
type ColorSource struct {
	Color    string // #RRGGBB
	Width    int
	Height   int
	Duration float64 // seconds
}

func (n ColorSource) filterText() string {
	return fmt.Sprintf("color=c=%s:s=%dx%d:d=%s", n.Color, n.Width, n.Height, formatSeconds(n.Duration))
}

// Scale resizes a video stream to an exact pixel box.
type Scale struct {
	Width  int
	Height int
}

func (n Scale) filterText() string {
	return fmt.Sprintf("scale=%d:%d", n.Width, n.Height)
}

// Rotate spins a stream by an angle, on an output canvas padded so the
// rotated corners are never clipped. The fill outside the rotated image
// is fully transparent so the layer beneath shows through.
type Rotate struct {
	Degrees float64
	PaddedW int
	PaddedH int
}

func (n Rotate) filterText() string {
	return fmt.Sprintf("rotate=%s*PI/180:ow=%d:oh=%d:c=black@0",
		formatNumber(n.Degrees), n.PaddedW, n.PaddedH)
}

// Overlay composites the second input onto the first at a fixed pixel
// anchor, enabled only inside the clip's timeline window. Outside the
// window the underlying canvas passes through untouched.
type Overlay struct {
	X           int
	Y           int
	EnableStart float64
	EnableEnd   float64
}

func (n Overlay) filterText() string {
	return fmt.Sprintf("overlay=%d:%d:enable='between(t,%s,%s)'",
		n.X, n.Y, formatSeconds(n.EnableStart), formatSeconds(n.EnableEnd))
}

// Delay shifts an audio stream by a whole number of milliseconds,
// applied uniformly across all channels.
type Delay struct {
	Milliseconds int
}

func (n Delay) filterText() string {
	return fmt.Sprintf("adelay=%d:all=1", n.Milliseconds)
}

// Mix combines N audio inputs, stretching to the longest input.
type Mix struct {
	Inputs int
}

func (n Mix) filterText() string {
	return fmt.Sprintf("amix=inputs=%d:duration=longest", n.Inputs)
}

// Raw is an escape hatch for filters with no dedicated variant.
type Raw struct {
	Text string
}

func (n Raw) filterText() string { return n.Text }

type statement struct {
	inputs []string
	node   Node
	output string
}

// Graph accumulates filter statements in execution order. The engine's
// syntax is order-sensitive, so statements serialize exactly as added.
type Graph struct {
	statements []statement
	produced   map[string]bool
	nextLabel  map[string]int
}

func New() *Graph {
	return &Graph{
		produced:  make(map[string]bool),
		nextLabel: make(map[string]int),
	}
}

// Label mints a fresh unique label with the given prefix.
func (g *Graph) Label(prefix string) string {
	n := g.nextLabel[prefix]
	g.nextLabel[prefix] = n + 1
	return fmt.Sprintf("%s%d", prefix, n)
}

// Add appends one statement: node applied to inputs, producing output.
// Inputs may be graph labels or engine input references like "0:v" /
// "2:a". Returns the output label for chaining.
func (g *Graph) Add(node Node, inputs []string, output string) string {
	g.statements = append(g.statements, statement{inputs: inputs, node: node, output: output})
	g.produced[output] = true
	return output
}

// Validate checks the structural invariants the engine enforces at run
// time: every consumed label must be produced by an earlier statement
// (or be an input reference), and no label may be produced twice.
func (g *Graph) Validate() error {
	available := make(map[string]bool)
	for i, st := range g.statements {
		for _, in := range st.inputs {
			if isInputRef(in) {
				continue
			}
			if !available[in] {
				return fmt.Errorf("statement %d consumes undefined label %q", i, in)
			}
			// A filter pad can only be consumed once.
			delete(available, in)
		}
		if available[st.output] {
			return fmt.Errorf("statement %d redefines label %q", i, st.output)
		}
		available[st.output] = true
	}
	return nil
}

// Serialize renders the graph in the engine's textual syntax:
// statements joined by ';', each as [in...]filter[out].
func (g *Graph) Serialize() string {
	parts := make([]string, 0, len(g.statements))
	for _, st := range g.statements {
		var b strings.Builder
		for _, in := range st.inputs {
			b.WriteString("[" + in + "]")
		}
		b.WriteString(st.node.filterText())
		b.WriteString("[" + st.output + "]")
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ";")
}

// Len returns the number of statements in the graph.
func (g *Graph) Len() int { return len(g.statements) }

// isInputRef reports whether a label references an engine input stream
// ("0:v", "3:a") rather than a graph-internal pad.
func isInputRef(label string) bool {
	return strings.ContainsRune(label, ':')
}

// formatSeconds renders a duration without trailing zeros, matching
// the compact style the engine accepts.
func formatSeconds(v float64) string {
	return formatNumber(v)
}

func formatNumber(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
