package dump

import (
	"refldump/reflection"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"
)

// Hierarchy records which class derives from which while a dump runs
type Hierarchy struct {
	graph lattice.Graph
	nodes map[string]struct{}
}

func NewHierarchy() *Hierarchy {
	return &Hierarchy{nodes: make(map[string]struct{})}
}

func (h *Hierarchy) node(name string) {
	if _, ok := h.nodes[name]; ok {
		return
	}
	h.nodes[name] = struct{}{}
	h.graph.Nodes = append(h.graph.Nodes, name)
}

// Add records class and, when it has one, the edge to its parent
func (h *Hierarchy) Add(class *reflection.DecodedClass) {
	h.node(class.Name)
	if class.Parent == "" {
		return
	}
	h.node(class.Parent)
	h.graph.Edges = append(h.graph.Edges, lattice.Edge{
		Caller: class.Name,
		Callee: class.Parent,
	})
}

// Graph returns the collected graph with duplicate edges removed
func (h *Hierarchy) Graph() *lattice.Graph {
	h.graph.Dedup()
	return &h.graph
}

// DOT renders the hierarchy as a Graphviz graph, edges point from class to parent
func (h *Hierarchy) DOT(title string) string {
	return render.DOT(h.Graph(), title)
}
