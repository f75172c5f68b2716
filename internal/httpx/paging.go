package httpx

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page is the envelope for paginated list responses.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

type Paging struct {
	Page     int
	PageSize int
	Order    string
}

// ParsePaging reads ?page=&page_size=&sort=&order=. sort must be a key of
// columns (api name -> column); anything else falls back to defaultOrder.
func ParsePaging(c *fiber.Ctx, columns map[string]string, defaultOrder string) Paging {
	p := Paging{Page: 1, PageSize: DefaultPageSize, Order: defaultOrder}

	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 {
		if n > MaxPageSize {
			n = MaxPageSize
		}
		p.PageSize = n
	}
	if col, ok := columns[c.Query("sort")]; ok {
		dir := "ASC"
		if strings.EqualFold(c.Query("order"), "desc") {
			dir = "DESC"
		}
		p.Order = col + " " + dir + ", id " + dir
	}
	return p
}

func (p Paging) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Apply adds ordering, limit and offset to q.
func (p Paging) Apply(q *gorm.DB) *gorm.DB {
	return q.Order(p.Order).Limit(p.PageSize).Offset(p.Offset())
}

// FindPage counts q, then loads one page of it into a Page.
func FindPage[T any](q *gorm.DB, p Paging) (Page[T], error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page[T]{}, err
	}
	items := make([]T, 0)
	if err := p.Apply(q.Session(&gorm.Session{})).Find(&items).Error; err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}, nil
}
