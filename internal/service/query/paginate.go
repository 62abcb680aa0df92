package query

// Page is one page of a read result. Pages are 1-based and the total
// always reflects the whole result set, not the page.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Count int `json:"count"`
	Total int `json:"total"`
}

const defaultPageSize = 20

// paginate slices the full result set. Every item lands on exactly one
// page and the per-page item counts sum to the set's size.
func paginate[T any](items []T, page, count int) Page[T] {
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = defaultPageSize
	}

	total := len(items)
	start := (page - 1) * count
	if start > total {
		start = total
	}
	end := start + count
	if end > total {
		end = total
	}
	return Page[T]{
		Items: items[start:end],
		Page:  page,
		Count: count,
		Total: total,
	}
}
