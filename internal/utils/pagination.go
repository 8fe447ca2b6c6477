// Package utils holds query-string helpers for the read API.
package utils

import "strconv"

// AtoiDefault parses s as a decimal int, returning def when s is empty or
// not a valid int. Whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page is a bounded page request.
type Page struct {
	Number int
	Size   int
}

// Offset is the number of rows to skip for p.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages returns how many pages of size p.Size cover total rows.
func (p Page) TotalPages(total int64) int {
	if p.Size <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// ParsePage reads raw page and page_size values. Unparsable values take the
// defaults (page 1, defSize); the page is at least 1 and the size is kept
// within [1, maxSize].
func ParsePage(page, size string, defSize, maxSize int) Page {
	p := Page{
		Number: AtoiDefault(page, 1),
		Size:   AtoiDefault(size, defSize),
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 1
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}
