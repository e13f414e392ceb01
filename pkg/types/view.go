package types

// SchemaView is the read-only surface of a schema that backends consume.
type SchemaView interface {
	Name() string
	Nodes() []Node
	Edges() []Edge
	OutEdges(n NodeID) []Edge
	Equations() []Equation
	NodeAt(n NodeID) Node
	EdgeAt(e EdgeID) Edge
	FormatPath(p Path) string
}

// InstanceView enumerates carriers and looks up edge functions.
type InstanceView interface {
	Name() string
	Schema() *Schema
	Carrier(n NodeID) []Element
	Lookup(edge EdgeID, e Element) (Element, bool)
	Attr(edge EdgeID, e Element) (Value, bool)
}

// MappingView exposes the image of every source node and edge.
type MappingView interface {
	Name() string
	Source() *Schema
	Target() *Schema
	NodeImage(n NodeID) (NodeID, bool)
	EdgeImage(e EdgeID) (Path, bool)
}

var (
	_ SchemaView   = (*Schema)(nil)
	_ InstanceView = (*Instance)(nil)
	_ MappingView  = (*Mapping)(nil)
)
