// Package lulu talks to the print fulfillment vendor's HTTP API: token
// exchange, print job submission, and job status polling. Vendor status
// names are mapped to order statuses through a fixed table; anything
// outside the table is ignored rather than guessed at.
package lulu
