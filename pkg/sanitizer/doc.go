// Package sanitizer provides input normalization for booking data.
//
// All normalization functions are idempotent: applying them multiple times
// produces the same result. Invalid input is handled by returning empty
// strings or empty slices rather than errors, so validation runs afterwards
// on the normalized value.
//
// Normalization includes:
//   - Single-line text (titles): collapse whitespace, trim
//   - Free text (justification, notes): normalize line endings, drop control
//     characters, trim each line, collapse runs of blank lines
//   - Identifiers (resource ids): trim, drop inner whitespace
//   - Slices: remove duplicates and empty values after normalization
package sanitizer
