package diff

import (
	"sort"
)

// sortByDependency orders keys so that every key comes after the keys it
// depends on. deps may name keys outside the set; those are ignored. Cycles
// are broken by taking the next unprocessed key in insertion order.
func sortByDependency(keys []string, deps func(string) []string) []string {
	if len(keys) <= 1 {
		return keys
	}

	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	inDegree := make(map[string]int, len(keys))
	adjList := make(map[string][]string, len(keys))
	for _, k := range keys {
		inDegree[k] = 0
		adjList[k] = []string{}
	}

	// if a depends on b, add edge b -> a
	for _, a := range keys {
		seen := map[string]bool{}
		for _, b := range deps(a) {
			if !present[b] || a == b || seen[b] {
				continue
			}
			seen[b] = true
			adjList[b] = append(adjList[b], a)
			inDegree[a]++
		}
	}

	// Kahn's algorithm with deterministic cycle breaking
	var queue []string
	var result []string
	processed := make(map[string]bool, len(keys))

	for k, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, k)
		}
	}
	sort.Strings(queue)

	for len(result) < len(keys) {
		if len(queue) == 0 {
			// Cycle: treat the next key in insertion order as free. Callers
			// never need the cyclic edge at creation time, foreign keys are
			// added after every table exists.
			next := nextInOrder(keys, processed)
			if next == "" {
				break
			}
			queue = append(queue, next)
			inDegree[next] = 0
		}

		current := queue[0]
		queue = queue[1:]
		if processed[current] {
			continue
		}
		processed[current] = true
		result = append(result, current)

		neighbors := append([]string(nil), adjList[current]...)
		sort.Strings(neighbors)

		for _, neighbor := range neighbors {
			inDegree[neighbor]--
			// processed keys can drop to zero again after a cycle break
			if inDegree[neighbor] <= 0 && !processed[neighbor] {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}
	return result
}

// reverseSlice returns a new slice with elements in reverse order
func reverseSlice[T any](slice []T) []T {
	reversed := make([]T, len(slice))
	for i, v := range slice {
		reversed[len(slice)-1-i] = v
	}
	return reversed
}

func nextInOrder(order []string, processed map[string]bool) string {
	for _, key := range order {
		if !processed[key] {
			return key
		}
	}
	return ""
}
