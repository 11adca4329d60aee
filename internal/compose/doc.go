// Package compose renders a book's interior and cover wrap into print-ready
// PDF documents. Both renderers are driven by the derived print geometry
// and are deterministic for unchanged input, so regenerating an order's
// documents reproduces the same pages.
package compose
