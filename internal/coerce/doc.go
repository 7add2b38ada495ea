// Package coerce converts weakly typed attribute values into the strongly
// typed values a live field expects.
//
// Values arrive as ir.IRValue, mostly strings with their source text. The
// destination type comes from a Registry lookup. Coerce either returns a
// value ready for assignment, a *SkipError when the value cannot be used
// for that field, or an asset resolution error.
package coerce
