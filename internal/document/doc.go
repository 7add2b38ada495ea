// Package document reads scene documents: a sequence of YAML records, each
// introduced by a "--- !u!<class> &<id>" header line.
//
// Split breaks the raw text into chunks and ParseChunk turns one chunk into
// an ir.Record. Parse does both for a whole document. The package does no
// cross-record resolution; that is the compiler's job.
package document
