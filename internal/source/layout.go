package source

import "github.com/roach88/exprjit/internal/ir"

// layoutCycles finds structs that contain themselves by value, directly or
// through other structs. Such a type has no finite layout. Class fields break
// a cycle because they hold a reference.
//
// Each result is a closed path, e.g. ["A", "B", "A"].
func layoutCycles(types []*ir.Type) [][]string {
	graph := make(map[string][]string)
	var order []string
	for _, t := range types {
		if t.Kind() != ir.KindStruct {
			continue
		}
		order = append(order, t.Name())
		graph[t.Name()] = nil
		for _, m := range t.Members() {
			if m.IsField() && m.Type().Kind() == ir.KindStruct {
				graph[t.Name()] = append(graph[t.Name()], m.Type().Name())
			}
		}
	}

	var cycles [][]string
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, cyclePath(scc, graph))
		}
	}
	return cycles
}

func hasSelfLoop(node string, graph map[string][]string) bool {
	for _, n := range graph[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of graph, visiting
// roots in order so results are deterministic.
func tarjanSCC(graph map[string][]string, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks edges inside scc from its root back to the root.
func cyclePath(scc []string, graph map[string][]string) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := scc[len(scc)-1]
	path := []string{start}
	visited := map[string]bool{start: true}
	for cur := start; ; {
		next := ""
		for _, n := range graph[cur] {
			if n == start || (members[n] && !visited[n]) {
				next = n
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		cur = next
	}
}
