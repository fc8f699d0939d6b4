// Package jsonfile provides the VectorStore backed by a single JSON file.
//
// The file holds a schema version, the established dimensionality and an
// ordered list of chunk records. It always contains a sentinel record so an
// empty store is still a well-formed file. Every write rewrites the whole
// file through a temporary file and an atomic rename.
package jsonfile
