package migrate

// topologicalSort orders items so each item appears after everything it
// depends on, using DFS with three-color marking to detect cycles. Ported
// unchanged in shape from the teacher's schema/tsort.go topologicalSort
// (github.com/k0kubun/sqldef): it was already schema-agnostic (items + a
// dependency map + an id-getter), so no behavioural change was needed to
// reuse it here. A circular dependency collapses the result to nil rather
// than panicking, matching the teacher's "abandon sort" behaviour.
func topologicalSort[T any](items []T, dependencies map[string][]string, getID func(T) string) []T {
	var sorted []T
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	itemMap := make(map[string]T)

	for _, item := range items {
		itemMap[getID(item)] = item
	}

	var visit func(string) bool
	visit = func(id string) bool {
		if visiting[id] {
			return false
		}
		if visited[id] {
			return true
		}
		visiting[id] = true
		for _, dep := range dependencies[id] {
			if _, exists := itemMap[dep]; exists {
				if !visit(dep) {
					return false
				}
			}
		}
		visiting[id] = false
		visited[id] = true
		if item, exists := itemMap[id]; exists {
			sorted = append(sorted, item)
		}
		return true
	}

	for _, item := range items {
		id := getID(item)
		if !visited[id] {
			if !visit(id) {
				return nil
			}
		}
	}
	return sorted
}

// OrderTables sorts tables so a table referencing another (via its
// References list — FK columns, join/side-table parents) is created
// after what it depends on, extended from the teacher's
// SortTablesByDependencies (schema/ddl_ordering.go) "tables by FK,
// views by view dependency" rule to also cover this engine's implicit
// join/side/view/delta tables, which reference their owning scheme's
// main table the same way a FK column does.
func OrderTables(tables []Table) []Table {
	deps := make(map[string][]string, len(tables))
	for _, t := range tables {
		deps[t.Name] = t.References
	}
	ordered := topologicalSort(tables, deps, func(t Table) string { return t.Name })
	if ordered == nil {
		// Circular dependency: fall back to declaration order rather than
		// dropping tables, since self-referential Object FKs (a scheme
		// referencing itself) are a legal, expected cycle.
		return tables
	}
	return ordered
}
