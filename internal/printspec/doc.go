// Package printspec computes the physical geometry of a printed book from
// its content page count.
//
// Everything here is pure arithmetic: printed page counts (front and back
// matter, vendor minimums, even-page padding), spine widths from the
// vendor's step table, and full wrap-around cover dimensions with exact
// panel offsets. Rendering code consumes a Spec and never re-derives
// dimensions inline, so the invariants (even page counts, monotonic spine
// widths, gap-free panel tiling) are testable in one place.
//
// All lengths are in inches, matching the vendor's published package
// specification.
package printspec
