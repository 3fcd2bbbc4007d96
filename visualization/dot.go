// Package visualization renders tickfsm machines as Graphviz diagrams
package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/anggasct/tickfsm"
	"github.com/anggasct/tickfsm/pkg/states"
)

// DOTGenerator generates Graphviz DOT format representations of state machines
type DOTGenerator struct {
	machine *tickfsm.Machine
	options DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowGuardConditions bool
	ShowDescriptions    bool
	ShowPayloadTypes    bool
	HighlightActive     bool
	// InitialState is marked as the entry point; defaults to the active state
	InitialState    string
	RankDirection   string // "TB", "LR", "BT", "RL"
	NodeShape       string
	TransitionStyle string
	FinalStateShape string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowDescriptions:    false,
		ShowPayloadTypes:    true,
		HighlightActive:     true,
		RankDirection:       "TB",
		NodeShape:           "box",
		TransitionStyle:     "solid",
		FinalStateShape:     "doublecircle",
	}
}

// NewDOTGenerator creates a new DOT generator for the given machine
func NewDOTGenerator(machine *tickfsm.Machine, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		machine: machine,
		options: opts,
	}
}

// Generate creates a DOT representation of the state machine
func (g *DOTGenerator) Generate() (string, error) {
	if g.machine == nil {
		return "", tickfsm.NewConfigurationError("DOTGenerator", "machine is nil")
	}

	var dot strings.Builder

	fmt.Fprintf(&dot, "digraph %q {\n", g.machine.Name())
	fmt.Fprintf(&dot, "  rankdir=%s;\n", g.options.RankDirection)
	fmt.Fprintf(&dot, "  node [shape=%s];\n", g.options.NodeShape)
	dot.WriteString("  edge [fontsize=10];\n\n")

	if err := g.generateStates(&dot); err != nil {
		return "", fmt.Errorf("failed to generate states: %w", err)
	}

	if err := g.generateTransitions(&dot); err != nil {
		return "", fmt.Errorf("failed to generate transitions: %w", err)
	}

	dot.WriteString("}\n")

	return dot.String(), nil
}

func (g *DOTGenerator) activeName() string {
	active, err := g.machine.ActiveState()
	if err != nil {
		return ""
	}
	return active.Name()
}

func (g *DOTGenerator) generateStates(dot *strings.Builder) error {
	active := g.activeName()
	initial := g.options.InitialState
	if initial == "" {
		initial = active
	}

	dot.WriteString("  // States\n")

	if initial != "" {
		dot.WriteString("  \"__start\" [shape=point];\n")
	}

	for _, name := range g.machine.StateNames() {
		state, err := g.machine.GetState(name)
		if err != nil {
			return err
		}
		g.generateStateNode(dot, state, name == initial, g.options.HighlightActive && name == active)
	}

	if initial != "" {
		fmt.Fprintf(dot, "  \"__start\" -> %q;\n", initial)
	}

	return nil
}

func (g *DOTGenerator) generateStateNode(dot *strings.Builder, state tickfsm.State, isInitial, isActive bool) {
	shape := g.options.NodeShape
	fillColor := "lightblue"
	label := strconv.Quote(state.Name())

	if isInitial {
		fillColor = "lightgreen"
		label = label[:len(label)-1] + `\n(initial)"`
	}

	if states.IsFinal(state) {
		shape = g.options.FinalStateShape
		fillColor = "lightcoral"
	}

	penWidth := 1
	if isActive {
		fillColor = "gold"
		penWidth = 3
	}

	fmt.Fprintf(dot, "  %q [shape=%s style=\"filled\" fillcolor=%s penwidth=%d label=%s];\n",
		state.Name(), shape, fillColor, penWidth, label)
}

func (g *DOTGenerator) generateTransitions(dot *strings.Builder) error {
	dot.WriteString("  // Transitions\n")

	for _, from := range g.machine.StateNames() {
		transitions, err := g.machine.Transitions(from)
		if err != nil {
			return err
		}
		for _, t := range transitions {
			label := g.edgeLabel(t)
			if label == "" {
				fmt.Fprintf(dot, "  %q -> %q [style=%s];\n", t.From, t.To, g.options.TransitionStyle)
				continue
			}
			fmt.Fprintf(dot, "  %q -> %q [style=%s label=%q];\n", t.From, t.To, g.options.TransitionStyle, label)
		}
	}

	return nil
}

func (g *DOTGenerator) edgeLabel(t *tickfsm.Transition) string {
	var parts []string

	if g.options.ShowGuardConditions && t.HasGuard() {
		guard := t.GuardName()
		if guard == "" {
			guard = "guard"
		}
		parts = append(parts, "["+guard+"]")
	}

	if g.options.ShowPayloadTypes && t.PayloadType() != "" {
		parts = append(parts, "<"+t.PayloadType()+">")
	}

	if g.options.ShowDescriptions && t.Description != "" {
		parts = append(parts, t.Description)
	}

	return strings.Join(parts, " ")
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0o644) //nolint:gosec // diagrams are not secret
}

// SVGGenerator generates SVG representations by calling Graphviz
type SVGGenerator struct {
	dotGenerator *DOTGenerator
	command      string
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator(machine *tickfsm.Machine, options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{
		dotGenerator: NewDOTGenerator(machine, options...),
		command:      "dot",
	}
}

// Generate creates an SVG representation of the state machine
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command(g.command, "-Tsvg") //nolint:gosec // fixed binary name
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

// GenerateSVG creates an SVG representation of the state machine
func (g *DOTGenerator) GenerateSVG() (string, error) {
	svgGen := &SVGGenerator{dotGenerator: g, command: "dot"}
	return svgGen.Generate()
}
