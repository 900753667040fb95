package shared

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination builds page metadata for total rows. Page is at least 1 and a
// non-positive perPage falls back to 20.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	page = max(page, 1)
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: (max(total, 0) + perPage - 1) / perPage}
}

// Offset is the number of rows before page when pages hold perPage rows.
func Offset(page, perPage int) int {
	if page <= 1 || perPage <= 0 {
		return 0
	}
	return (page - 1) * perPage
}
