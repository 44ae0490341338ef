package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultPageSize = 50
const maxPageSize = 100

type PaginationParams struct {
	Page  int
	Limit int
}

// PaginatedResponse is the envelope for every paginated listing.
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int64       `json:"total,omitempty"`
	Count int         `json:"count,omitempty"`
}

// ParsePagination reads page and limit from the query string, clamping
// limit to the page-size cap.
func ParsePagination(c *gin.Context) PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return PaginationParams{Page: page, Limit: limit}
}
