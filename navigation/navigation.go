package navigation

import "sort"

// Route is a flat navigation entry as returned by the backend, either from
// GET /navigation or embedded as "modules" in the login response.
// ParentID 0 marks a top level entry.
type Route struct {
	ID              int    `json:"id"`
	ParentID        int    `json:"parentId,omitempty"`
	ExternalRouteID string `json:"externalRouteId,omitempty"`
	Title           string `json:"title"`
	Icon            string `json:"icon,omitempty"`
	IsGroupHeader   bool   `json:"isGroupHeader,omitempty"`
}

// Node is one entry of the navigation tree the operator is allowed to see.
type Node struct {
	ID              int    `json:"id"`
	ExternalRouteID string `json:"externalRouteId,omitempty"`
	Title           string `json:"title"`
	IconRef         string `json:"iconRef,omitempty"`
	Children        []Node `json:"children"`
	IsGroupHeader   bool   `json:"isGroupHeader,omitempty"`
}

// BuildTree turns a flat route list into a hierarchy.
//
// Siblings are ordered by ID ascending. The first route wins when an ID is
// repeated. Routes whose parent is not in the list become roots, and routes
// that only reach a cycle are dropped. Leaves have nil Children.
func BuildTree(routes []Route) []Node {
	byID := make(map[int]Route, len(routes))
	order := make([]int, 0, len(routes))
	for _, r := range routes {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = r
		order = append(order, r.ID)
	}

	children := make(map[int][]int)
	var roots []int
	for _, id := range order {
		parentID := byID[id].ParentID
		if _, ok := byID[parentID]; parentID == 0 || parentID == id || !ok {
			roots = append(roots, id)
			continue
		}
		children[parentID] = append(children[parentID], id)
	}

	visited := make(map[int]bool, len(order))
	var build func(ids []int) []Node
	build = func(ids []int) []Node {
		if len(ids) == 0 {
			return nil
		}
		sort.Ints(ids)
		nodes := make([]Node, 0, len(ids))
		for _, id := range ids {
			if visited[id] {
				continue
			}
			visited[id] = true
			r := byID[id]
			nodes = append(nodes, Node{
				ID:              r.ID,
				ExternalRouteID: r.ExternalRouteID,
				Title:           r.Title,
				IconRef:         r.Icon,
				IsGroupHeader:   r.IsGroupHeader,
				Children:        build(children[id]),
			})
		}
		return nodes
	}

	tree := build(roots)
	if tree == nil {
		return []Node{}
	}
	return tree
}

// Walk visits every node depth first, parents before children. Returning
// false from fn stops the walk.
func Walk(tree []Node, fn func(n Node, depth int) bool) {
	var walk func(nodes []Node, depth int) bool
	walk = func(nodes []Node, depth int) bool {
		for _, n := range nodes {
			if !fn(n, depth) {
				return false
			}
			if !walk(n.Children, depth+1) {
				return false
			}
		}
		return true
	}
	walk(tree, 0)
}

// Count returns the number of nodes in the tree.
func Count(tree []Node) int {
	total := 0
	Walk(tree, func(Node, int) bool {
		total++
		return true
	})
	return total
}

// Find returns the node with the given ID.
func Find(tree []Node, id int) (Node, bool) {
	var found Node
	var ok bool
	Walk(tree, func(n Node, _ int) bool {
		if n.ID == id {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}

// Clone deep copies a tree.
func Clone(tree []Node) []Node {
	if tree == nil {
		return nil
	}
	out := make([]Node, len(tree))
	for i, n := range tree {
		out[i] = n
		out[i].Children = Clone(n.Children)
	}
	return out
}
