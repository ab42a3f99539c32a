package appserver

import (
	"strings"
)

// Structural paths read by a Container. The first segment names the root node.
const (
	ReceiverPath = "/container/receiver"
	WorkerPath   = "/container/receiver/worker"
	ThreadPath   = "/container/receiver/thread"
)

// ConfigNode is a single node of a container configuration tree.
type ConfigNode interface {
	// Name returns the element name used for path matching.
	Name() string

	// Type returns the type name attribute, verbatim.
	Type() string

	// Param returns a named parameter attached to the node.
	Param(key string) (string, bool)
}

// ContainerConfiguration is a read-only, path-addressable configuration tree.
// Children returns every node matching path in document order; callers that need
// a single node take the first.
type ContainerConfiguration interface {
	Children(path string) []ConfigNode
}

// Node is the in-memory ContainerConfiguration used by the server and the config
// loader. A Node is treated as immutable once handed to a Container.
type Node struct {
	name     string
	typeName string
	params   map[string]string
	children []*Node
}

// NewNode creates a node with the given element name and type attribute.
func NewNode(name, typeName string, children ...*Node) *Node {
	return &Node{
		name:     name,
		typeName: typeName,
		params:   make(map[string]string),
		children: children,
	}
}

// WithParam sets a parameter and returns the node for chaining.
func (n *Node) WithParam(key, value string) *Node {
	n.params[key] = value
	return n
}

// WithParams copies all params onto the node.
func (n *Node) WithParams(params map[string]string) *Node {
	for k, v := range params {
		n.params[k] = v
	}
	return n
}

// Append adds child nodes after any existing children.
func (n *Node) Append(children ...*Node) *Node {
	n.children = append(n.children, children...)
	return n
}

func (n *Node) Name() string { return n.name }
func (n *Node) Type() string { return n.typeName }

func (n *Node) Param(key string) (string, bool) {
	v, ok := n.params[key]
	return v, ok
}

// Params returns a copy of the node's parameters.
func (n *Node) Params() map[string]string {
	out := make(map[string]string, len(n.params))
	for k, v := range n.params {
		out[k] = v
	}
	return out
}

// Children resolves an absolute slash-separated path against the tree rooted at n.
// The first segment must match the root's name; each following segment selects all
// children with that name from every node matched so far.
func (n *Node) Children(path string) []ConfigNode {
	if n == nil {
		return nil
	}
	segments := splitPath(path)
	if len(segments) == 0 || segments[0] != n.name {
		return nil
	}

	current := []*Node{n}
	for _, segment := range segments[1:] {
		var next []*Node
		for _, node := range current {
			for _, child := range node.children {
				if child.name == segment {
					next = append(next, child)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}

	out := make([]ConfigNode, len(current))
	for i, node := range current {
		out[i] = node
	}
	return out
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// firstChild returns the first node under path or ErrConfigurationResolution.
func firstChild(cfg ContainerConfiguration, path string) (ConfigNode, error) {
	if cfg == nil {
		return nil, ErrConfigurationNil
	}
	nodes := cfg.Children(path)
	if len(nodes) == 0 || nodes[0] == nil {
		return nil, &ResolutionError{Path: path}
	}
	return nodes[0], nil
}

// ResolutionError reports a structural path with no matching node.
type ResolutionError struct {
	Path string
}

func (e *ResolutionError) Error() string {
	return ErrConfigurationResolution.Error() + ": no node at " + e.Path
}

// Is makes errors.Is(err, ErrConfigurationResolution) hold.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrConfigurationResolution
}
