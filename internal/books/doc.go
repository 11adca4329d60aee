// Package books exposes the book data the print pipeline consumes: book
// metadata, cover design, and ordered content pages with their resolved
// raster images.
//
// The editing subsystem owns this data; the pipeline treats it as
// read-only. Seeding helpers exist so tests and CLI fixtures can build
// books without that subsystem.
package books
