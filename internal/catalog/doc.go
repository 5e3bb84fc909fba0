// Package catalog defines the entity models of the TERYT reference
// catalogs: administrative units (TERC), localities (SIMC), and
// streets (ULIC).
//
// Entities are built from registry row fields through explicit
// constructors and patched through explicit overlay methods; there is
// no reflective field copying. Each entity derives the business key it
// is cached under (administrative code, locality symbol, street
// symbol). Cross-catalog references stay symbolic — name resolution
// happens at read time against the referenced catalog's cache.
package catalog
