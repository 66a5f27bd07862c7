package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// parsePage reads page and page_size, falling back to sane defaults.
func parsePage(c *gin.Context) Page {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return Page{Number: page, Size: size}
}

func paginated(data interface{}, total int64, p Page) models.PaginatedResponse {
	pages := int((total + int64(p.Size) - 1) / int64(p.Size))
	return models.PaginatedResponse{
		Data:        data,
		TotalRows:   total,
		TotalPages:  pages,
		CurrentPage: p.Number,
		PageSize:    p.Size,
	}
}
