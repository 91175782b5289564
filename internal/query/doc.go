// Package query describes commitment listings as a small predicate tree and
// compiles it to parameterised SQLite.
//
// Only a closed set of columns may be filtered on. Values are always bound
// as parameters, never interpolated, and every compiled statement carries an
// ORDER BY with a binary-collated tiebreaker so listings are deterministic.
package query
