package httpx

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Page struct {
	Page    int
	PerPage int
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}

type PageResponse[T any] struct {
	Data    []T   `json:"data"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

func NewPageResponse[T any](data []T, total int64, p Page) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{Data: data, Total: total, Page: p.Page, PerPage: p.PerPage}
}

// ParsePage reads page/per_page, default 1/20, per_page capped at 100.
func ParsePage(c *fiber.Ctx) Page {
	p := Page{Page: c.QueryInt("page", 1), PerPage: c.QueryInt("per_page", 20)}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 20
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
	return p
}

// ParamID parses a positive numeric path parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" geçersiz")
	}
	return uint(id), nil
}

// QueryUint returns nil when the query parameter is absent.
func QueryUint(c *fiber.Ctx, name string) (*uint, error) {
	s := c.Query(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, name+" geçersiz")
	}
	u := uint(v)
	return &u, nil
}

// QueryDate parses a YYYY-MM-DD query parameter. Absent means nil.
func QueryDate(c *fiber.Ctx, name string) (*time.Time, error) {
	s := c.Query(name)
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, name+" tarihi geçersiz, 'YYYY-MM-DD' olmalı")
	}
	return &d, nil
}
