// Package artifacts stores generated print documents and hands out
// vendor-fetchable URLs for them. References are write-once; regenerating
// a document produces a new reference rather than overwriting an old one.
package artifacts
