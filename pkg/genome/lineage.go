package genome

import (
	"fmt"
	"sort"
)

// Node is one version or challenger in a lineage DAG.
type Node struct {
	SortKey    string
	Kind       KeyKind
	Hash       string
	ParentHash string
	State      DeploymentState
	Attempt    int
	Name       string
}

// Lineage is the explicit version DAG of one lineage: nodes are version and
// challenger sort keys, edges run from parent_hash to version_hash.
//
// A promoted version carries the hash of the challenger it was minted from,
// so a hash may name several nodes. Lookups by hash prefer top-level
// versions over challengers.
type Lineage struct {
	nodes  map[string]*Node
	byHash map[string][]*Node
	order  []string
}

// NewLineage builds the DAG from the versions and challengers of a
// partition. Items that are neither versions nor challengers are ignored.
func NewLineage(items []*Version) *Lineage {
	l := &Lineage{
		nodes:  make(map[string]*Node),
		byHash: make(map[string][]*Node),
	}
	for _, v := range items {
		if v == nil {
			continue
		}
		key, err := ParseKey(v.SortKey)
		if err != nil || (key.Kind != KindVersion && key.Kind != KindChallenger) {
			continue
		}
		n := &Node{
			SortKey:    v.SortKey,
			Kind:       key.Kind,
			Hash:       v.Metadata.VersionHash,
			ParentHash: v.Metadata.ParentHash,
			State:      v.Metadata.DeploymentState,
			Attempt:    key.Attempt,
			Name:       v.Metadata.Name,
		}
		if _, dup := l.nodes[n.SortKey]; dup {
			continue
		}
		l.nodes[n.SortKey] = n
		l.order = append(l.order, n.SortKey)
		if n.Hash != "" {
			l.byHash[n.Hash] = append(l.byHash[n.Hash], n)
		}
	}
	sort.Strings(l.order)
	return l
}

// Len returns the number of nodes.
func (l *Lineage) Len() int { return len(l.nodes) }

// Node returns the node with the given sort key.
func (l *Lineage) Node(sk string) (*Node, bool) {
	n, ok := l.nodes[sk]
	return n, ok
}

// Nodes returns all nodes in sort-key order.
func (l *Lineage) Nodes() []*Node {
	out := make([]*Node, 0, len(l.order))
	for _, sk := range l.order {
		out = append(out, l.nodes[sk])
	}
	return out
}

// Parent returns the node whose version_hash equals the parent_hash of sk.
// For challengers the nesting version is preferred when it carries that hash.
func (l *Lineage) Parent(sk string) (*Node, bool) {
	n, ok := l.nodes[sk]
	if !ok || n.ParentHash == "" {
		return nil, false
	}
	if n.Kind == KindChallenger {
		if owner, err := OwningVersion(sk); err == nil {
			if p, ok := l.nodes[owner]; ok && p.Hash == n.ParentHash {
				return p, true
			}
		}
	}
	return l.byHashPreferVersion(n.ParentHash, sk)
}

func (l *Lineage) byHashPreferVersion(hash, exclude string) (*Node, bool) {
	var fallback *Node
	for _, c := range l.byHash[hash] {
		if c.SortKey == exclude {
			continue
		}
		if c.Kind == KindVersion {
			return c, true
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback, fallback != nil
}

// Children returns the nodes whose parent_hash equals the version_hash of
// sk, in sort-key order.
func (l *Lineage) Children(sk string) []*Node {
	n, ok := l.nodes[sk]
	if !ok || n.Hash == "" {
		return nil
	}
	var out []*Node
	for _, key := range l.order {
		c := l.nodes[key]
		if c.SortKey != sk && c.ParentHash == n.Hash {
			out = append(out, c)
		}
	}
	return out
}

// Ancestry returns the chain of parents of sk, nearest first. Cycles in
// malformed data stop the walk.
func (l *Lineage) Ancestry(sk string) []*Node {
	seen := map[string]bool{sk: true}
	var out []*Node
	cur := sk
	for {
		p, ok := l.Parent(cur)
		if !ok || seen[p.SortKey] {
			return out
		}
		seen[p.SortKey] = true
		out = append(out, p)
		cur = p.SortKey
	}
}

// Verify checks that every challenger's parent_hash equals the
// version_hash of the version it is nested under.
func (l *Lineage) Verify() error {
	for _, sk := range l.order {
		n := l.nodes[sk]
		if n.Kind != KindChallenger {
			continue
		}
		owner, err := OwningVersion(sk)
		if err != nil {
			return err
		}
		p, ok := l.nodes[owner]
		if !ok {
			return fmt.Errorf("challenger %s: parent version %s missing", sk, owner)
		}
		if n.ParentHash != p.Hash {
			return fmt.Errorf("challenger %s: parent_hash %q does not match %s version_hash %q",
				sk, n.ParentHash, owner, p.Hash)
		}
	}
	return nil
}
