package listing

// PageCount returns ceil(count / limit).
func PageCount(count, limit int) int {
	if limit <= 0 || count <= 0 {
		return 0
	}
	return (count + limit - 1) / limit
}

// PageVisible reports whether page index p gets a numbered link. The strip
// keeps the first pages near the start, the last pages near the end and a
// window of three on each side of the current page otherwise. Clusters may
// be disjoint; no ellipsis is inserted.
func PageVisible(p, offset, pages int) bool {
	return offset <= 2 && p <= 6 ||
		offset >= pages-3 && p >= pages-7 ||
		abs(p-offset) <= 3
}

// VisiblePages lists the page indexes in [0, pages) that get a link.
func VisiblePages(offset, pages int) []int {
	visible := make([]int, 0, 8)
	for p := 0; p < pages; p++ {
		if PageVisible(p, offset, pages) {
			visible = append(visible, p)
		}
	}
	return visible
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
