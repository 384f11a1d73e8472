package chunker

import "strings"

// PageIndex tags every word of the concatenated document with the 1-based
// number of the page it came from. The result is parallel to
// strings.Fields(strings.Join(pages, " ")).
func PageIndex(pages []string) []int {
	var index []int
	for i, page := range pages {
		n := len(strings.Fields(page))
		for range n {
			index = append(index, i+1)
		}
	}
	return index
}

// MajorityPage returns the page occurring most often in pages[start:start+n].
// Ties go to the page seen first within that range. The range is clamped to
// the bounds of pages; ok is false when nothing remains after clamping.
func MajorityPage(pages []int, start, n int) (page int, ok bool) {
	start = max(start, 0)
	end := min(start+n, len(pages))
	if start >= end {
		return 0, false
	}

	counts := make(map[int]int)
	var order []int
	for _, p := range pages[start:end] {
		if _, seen := counts[p]; !seen {
			order = append(order, p)
		}
		counts[p]++
	}

	best := order[0]
	for _, p := range order[1:] {
		if counts[p] > counts[best] {
			best = p
		}
	}
	return best, true
}
