// Package services holds the cross-cutting helpers shared by pipeline
// components: the sentinel error taxonomy used to classify generation,
// storage, and vendor failures; context annotation for correlation data;
// and the single bounded backoff policy every vendor call site uses.
package services
