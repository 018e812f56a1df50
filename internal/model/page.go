package model

// Page is one page of a collection.
type Page[T any] struct {
	Page       int  `json:"page"`
	PageCount  int  `json:"pageCount"`
	TotalCount int  `json:"totalCount"`
	PrevPage   *int `json:"prevPage"`
	NextPage   *int `json:"nextPage"`
	Collection []T  `json:"collection"`
}

// NewPage builds a Page from the requested page, its size and the total count.
// A nil collection is rendered as an empty list.
func NewPage[T any](items []T, page, size, total int) *Page[T] {
	if items == nil {
		items = []T{}
	}

	pageCount := 0
	if size > 0 {
		pageCount = (total + size - 1) / size
	}

	p := &Page[T]{
		Page:       page,
		PageCount:  pageCount,
		TotalCount: total,
		Collection: items,
	}

	if page > 1 {
		prev := page - 1
		p.PrevPage = &prev
	}
	if page < pageCount {
		next := page + 1
		p.NextPage = &next
	}

	return p
}

// Offset is the row offset of a 1-based page.
func Offset(page, size int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * size
}
