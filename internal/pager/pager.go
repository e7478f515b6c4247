// Package pager derives fixed-size pages from a newest-first transaction
// history. It is stateless: callers hold the current page number and feed it
// back through the clamping helpers.
package pager

import "github.com/turgut5534/amic-card-app/internal/fuelcard"

// DefaultPageSize matches the history screens of the app.
const DefaultPageSize = 20

// Pager slices a history into fixed-size pages with 1-based numbering.
type Pager struct {
	Size int
}

// New returns a pager with the given page size, falling back to
// DefaultPageSize for non-positive sizes.
func New(size int) Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return Pager{Size: size}
}

// TotalPages reports the number of pages for n records. An empty history
// still has one (empty) page.
func (p Pager) TotalPages(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + p.Size - 1) / p.Size
}

// Clamp forces page into [1, TotalPages(n)].
func (p Pager) Clamp(page, n int) int {
	total := p.TotalPages(n)
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// Page returns the records of the requested page and the effective page
// number after clamping. The returned slice aliases history.
func (p Pager) Page(history []fuelcard.Transaction, page int) ([]fuelcard.Transaction, int) {
	page = p.Clamp(page, len(history))
	start := (page - 1) * p.Size
	if start > len(history) {
		start = len(history)
	}
	end := start + p.Size
	if end > len(history) {
		end = len(history)
	}
	return history[start:end], page
}

// Next advances one page, staying within bounds.
func (p Pager) Next(page, n int) int { return p.Clamp(page+1, n) }

// Prev goes back one page, staying within bounds.
func (p Pager) Prev(page, n int) int { return p.Clamp(page-1, n) }

// Jump moves to an arbitrary page, staying within bounds.
func (p Pager) Jump(page, n int) int { return p.Clamp(page, n) }
