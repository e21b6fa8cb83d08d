package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/neexbeast/destinations/internal/destination"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// Link is a hypermedia reference. Method is set for non-GET actions.
type Link struct {
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

// Links maps relation names to references.
type Links map[string]Link

// Pagination describes the page window of a collection response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes the window for total items.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// PageParams reads page and limit from a query string. Missing, zero or
// unparsable values fall back to the defaults; the rest are clamped.
func PageParams(q url.Values) (page, limit int) {
	page = atoiOr(q.Get("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	limit = atoiOr(q.Get("limit"), defaultLimit)
	switch {
	case limit < 1:
		limit = 1
	case limit > maxLimit:
		limit = maxLimit
	}
	return page, limit
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n == 0 {
		return fallback
	}
	return n
}

// PageLinks builds self, first, prev, next and last links for a collection.
// filters are repeated on every link so navigation keeps the same result set.
func PageLinks(base, path string, filters url.Values, p Pagination) Links {
	href := func(page int) string {
		q := url.Values{}
		for k, vs := range filters {
			for _, v := range vs {
				if v != "" {
					q.Add(k, v)
				}
			}
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(p.Limit))
		return base + path + "?" + q.Encode()
	}

	links := Links{"self": {Href: href(p.Page)}}
	if p.Page > 1 {
		links["first"] = Link{Href: href(1)}
		links["prev"] = Link{Href: href(p.Page - 1)}
	}
	if p.Page < p.TotalPages {
		links["next"] = Link{Href: href(p.Page + 1)}
		links["last"] = Link{Href: href(p.TotalPages)}
	}
	return links
}

// BaseURL reconstructs the scheme and host the client used to reach us.
func BaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

func cityLinks(base string, c destination.City) Links {
	self := base + "/cities/" + c.ID
	return Links{
		"self":    {Href: self},
		"seasons": {Href: self + "/seasons"},
		"update":  {Href: self, Method: http.MethodPut},
		"delete":  {Href: self, Method: http.MethodDelete},
	}
}

func seasonLinks(base string, s destination.Season) Links {
	self := base + "/seasons/" + s.ID
	return Links{
		"self":   {Href: self},
		"city":   {Href: base + "/cities/" + s.CityID},
		"update": {Href: self, Method: http.MethodPut},
		"delete": {Href: self, Method: http.MethodDelete},
	}
}

func jobHref(base, id string) string {
	return base + "/jobs/" + id
}
