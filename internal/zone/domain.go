// Package zone implements the authoritative zone store: an in-memory
// domain-name trie per class, populated from master files, that answers
// questions with the RRsets attached to each name (RFC 1035 §3, §7.1).
package zone

import (
	"sort"
	"strings"

	"github.com/mirelon/adnsd/internal/message"
	"github.com/mirelon/adnsd/internal/protocol"
)

// domainTree is a node in the domain name space (RFC 1035 §3.1): each node
// owns the RRsets attached directly at its name, plus a label-sorted set
// of children one label closer to a leaf. The root node's own label is
// unused.
type domainTree struct {
	label    string
	children []*domainTree
	records  map[protocol.Type][]message.ResourceRecord
}

func newDomainTree() *domainTree {
	return &domainTree{}
}

// insert attaches rr at the node identified by name, creating any missing
// ancestors along the way. Labels are walked most-significant-first: the
// owner name "a.b.c." descends through "c", then "b", then "a", matching
// the left-to-right presentation order read right to left.
func (t *domainTree) insert(name message.Name, rr message.ResourceRecord) {
	node := t
	for i := len(name) - 1; i >= 0; i-- {
		node = node.child(name[i], true)
	}
	if node.records == nil {
		node.records = make(map[protocol.Type][]message.ResourceRecord)
	}
	node.records[rr.Type] = append(node.records[rr.Type], rr)
}

// child locates the immediate child labeled label, comparing
// case-insensitively per RFC 1035 §3.1. When create is true, a missing
// child is inserted in label-sorted order rather than appended, so
// enumerate can do a plain pre-order walk.
func (t *domainTree) child(label string, create bool) *domainTree {
	lower := strings.ToLower(label)
	i := sort.Search(len(t.children), func(i int) bool {
		return strings.ToLower(t.children[i].label) >= lower
	})
	if i < len(t.children) && strings.EqualFold(t.children[i].label, label) {
		return t.children[i]
	}
	if !create {
		return nil
	}
	child := &domainTree{label: label}
	t.children = append(t.children, nil)
	copy(t.children[i+1:], t.children[i:])
	t.children[i] = child
	return child
}

// lookup walks name's labels and returns the RRsets attached to the
// terminal node, keyed by TYPE, and whether that node exists at all (a
// node can exist with no records of its own, e.g. a pure delegation
// point), distinguishing NXDOMAIN from a name that exists but has no
// record of the requested type.
func (t *domainTree) lookup(name message.Name) (map[protocol.Type][]message.ResourceRecord, bool) {
	node := t
	for i := len(name) - 1; i >= 0; i-- {
		node = node.child(name[i], false)
		if node == nil {
			return nil, false
		}
	}
	return node.records, true
}

// enumerate yields every record in the tree in canonical owner-name order:
// a node's own records (sorted by TYPE for determinism), then its children
// in label-sorted order, depth-first.
func (t *domainTree) enumerate() []message.ResourceRecord {
	var out []message.ResourceRecord
	t.walk(&out)
	return out
}

func (t *domainTree) walk(out *[]message.ResourceRecord) {
	for _, typ := range sortedTypes(t.records) {
		*out = append(*out, t.records[typ]...)
	}
	for _, c := range t.children {
		c.walk(out)
	}
}

func sortedTypes(m map[protocol.Type][]message.ResourceRecord) []protocol.Type {
	types := make([]protocol.Type, 0, len(m))
	for typ := range m {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
