// Package unionfind provides the disjoint-set structure the consolidator
// uses to close merge decisions transitively: if A merges with B and B merges
// with C, all three land in one component regardless of pair order.
package unionfind

import "sort"

// DisjointSet is a union-find over string IDs with path compression and
// union by rank.  Not safe for concurrent use; the consolidator runs merging
// single-threaded.
type DisjointSet struct {
	parent map[string]string
	rank   map[string]int
}

// New returns an empty DisjointSet.
func New() *DisjointSet {
	return &DisjointSet{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// Add registers id as its own singleton component.  Adding an existing id is
// a no-op.
func (d *DisjointSet) Add(id string) {
	if _, ok := d.parent[id]; !ok {
		d.parent[id] = id
	}
}

// Find returns the representative of id's component, registering id first if
// unknown.
func (d *DisjointSet) Find(id string) string {
	d.Add(id)
	root := id
	for d.parent[root] != root {
		root = d.parent[root]
	}
	// Path compression.
	for d.parent[id] != root {
		id, d.parent[id] = d.parent[id], root
	}
	return root
}

// Union merges the components of a and b.
func (d *DisjointSet) Union(a, b string) {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return
	}
	if d.rank[ra] < d.rank[rb] {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	if d.rank[ra] == d.rank[rb] {
		d.rank[ra]++
	}
}

// Connected reports whether a and b share a component.
func (d *DisjointSet) Connected(a, b string) bool {
	return d.Find(a) == d.Find(b)
}

// Components returns every component with two or more members.  Members are
// sorted and each component is keyed by its smallest member, so iteration
// over the result is deterministic.
func (d *DisjointSet) Components() map[string][]string {
	byRoot := make(map[string][]string)
	for id := range d.parent {
		root := d.Find(id)
		byRoot[root] = append(byRoot[root], id)
	}

	out := make(map[string][]string)
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		out[members[0]] = members
	}
	return out
}
