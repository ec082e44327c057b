// Package magni implements the storage engine of an embedded single-file
// relational database: a bounded page cache over a block-addressed file, a
// variable-length cell codec, a disk-resident B+ tree keyed by row
// identifier, and a schema catalog built on top of that same tree.
//
// The package deliberately stops at the storage layer. It exposes no SQL
// parser, no statement executor and no REPL; those are meant to be built on
// top of BTree, Cursor and Schema.
package magni
