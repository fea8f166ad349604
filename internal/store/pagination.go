package store

type OffsetPage struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

func (p *OffsetPage) HasPrevious() bool { return p.Page > 1 }
func (p *OffsetPage) HasNext() bool     { return p.Page < p.TotalPages }
func (p *OffsetPage) PreviousPage() int { return p.Page - 1 }
func (p *OffsetPage) NextPage() int     { return p.Page + 1 }

// TotalPages never reports fewer than one page, so an empty listing still has
// a valid first page.
func TotalPages(total int64, pageSize int) int {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}
	return totalPages
}

// ClampPage moves an out-of-range page number to the nearest valid page.
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
