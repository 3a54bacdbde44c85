// Package graph renders test-case step trees as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/pkg/domain"
)

// Overlay marks the steps a run went through.
type Overlay struct {
	Visited []string
	Failed  []string
}

// OverlayFromReport collects visited and failed steps from a run report.
func OverlayFromReport(r *domain.RunReport) *Overlay {
	o := &Overlay{}
	for _, p := range r.PathHistory {
		o.Visited = append(o.Visited, p.StepID)
	}
	for _, res := range r.Results {
		o.Visited = append(o.Visited, res.StepID)
		if !res.Success {
			o.Failed = append(o.Failed, res.StepID)
		}
	}
	return o
}

type edge struct {
	from  string
	label string
}

type renderer struct {
	sb     strings.Builder
	parser *expr.Parser
	seq    int
}

// GenerateMermaid draws tc top-down. Conditions are diamonds, loops are
// subroutines with a dotted back edge, variable steps are parallelograms.
func GenerateMermaid(tc *domain.TestCase, overlay *Overlay) string {
	r := &renderer{parser: expr.NewParser()}
	r.sb.WriteString("graph TD\n")
	r.sb.WriteString(fmt.Sprintf("    start((%q))\n", escape(tc.Name)))

	pending := r.chain(tc.Steps, []edge{{from: "start"}})
	r.sb.WriteString("    finish((\"end\"))\n")
	r.link(pending, "finish")

	if overlay != nil {
		r.overlay(overlay)
	}
	return r.sb.String()
}

// chain draws steps and returns the open edges leaving the last one.
func (r *renderer) chain(steps []domain.Step, in []edge) []edge {
	for _, s := range steps {
		if s == nil {
			continue
		}
		id := r.node(s)
		r.link(in, id)

		switch st := s.(type) {
		case *domain.ConditionStep:
			out := r.chain(st.Then, []edge{{from: id, label: "then"}})
			out = append(out, r.chain(st.Else, []edge{{from: id, label: "else"}})...)
			in = out
		case *domain.LoopStep:
			back := r.chain(st.Body, []edge{{from: id, label: "each"}})
			for _, e := range back {
				r.sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", e.from, id))
			}
			in = []edge{{from: id, label: "done"}}
		default:
			in = []edge{{from: id}}
		}
	}
	return in
}

func (r *renderer) link(in []edge, to string) {
	for _, e := range in {
		if e.label == "" {
			r.sb.WriteString(fmt.Sprintf("    %s --> %s\n", e.from, to))
		} else {
			r.sb.WriteString(fmt.Sprintf("    %s -- %s --> %s\n", e.from, e.label, to))
		}
	}
}

func (r *renderer) node(s domain.Step) string {
	id := nodeID(s.StepID())
	if s.StepID() == "" {
		r.seq++
		id = fmt.Sprintf("step_%d", r.seq)
	}
	var open, close, label string
	switch st := s.(type) {
	case *domain.ActionStep:
		open, close = "[", "]"
		label = strings.TrimSpace(st.Action + " " + st.Target)
	case *domain.ConditionStep:
		open, close = "{", "}"
		label = st.Expression
		if label == "" && st.Condition != nil {
			label = r.parser.Format(st.Condition)
		}
	case *domain.LoopStep:
		open, close = "[[", "]]"
		label = st.Expression
		if label == "" {
			label = string(st.Loop.Type)
		}
	case *domain.VariableStep:
		open, close = "[/", "/]"
		label = strings.TrimSpace(string(st.Operation.Type) + " " + st.Operation.Name)
	}
	r.sb.WriteString(fmt.Sprintf("    %s%s%q%s\n", id, open, escape(label), close))
	return id
}

func (r *renderer) overlay(o *Overlay) {
	r.sb.WriteString("\n    %% Run overlay\n")
	r.sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	r.sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:3px,color:#000;\n")

	seen := make(map[string]bool)
	for _, id := range o.Visited {
		nid := nodeID(id)
		if id == "" || seen[nid] {
			continue
		}
		seen[nid] = true
		r.sb.WriteString(fmt.Sprintf("    class %s visited;\n", nid))
	}
	for _, id := range o.Failed {
		if id != "" {
			r.sb.WriteString(fmt.Sprintf("    class %s failed;\n", nodeID(id)))
		}
	}
}

var idReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_", ":", "_")

// nodeID prefixes ids so they never collide with Mermaid keywords such as end.
func nodeID(id string) string {
	return "s_" + idReplacer.Replace(id)
}

func escape(label string) string {
	return strings.ReplaceAll(label, `"`, "'")
}
