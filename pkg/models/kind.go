// Package models defines the core domain models for node-based workflow automation.
package models

// DataKind identifies the declared kind of value a data port carries.
type DataKind string

const (
	KindString  DataKind = "string"
	KindInteger DataKind = "integer"
	KindFloat   DataKind = "float"
	KindBoolean DataKind = "boolean"
	KindList    DataKind = "list"
	KindMapping DataKind = "mapping"
	KindAny     DataKind = "any"
	// KindHandle carries an opaque domain handle, such as a browser page or
	// desktop window reference produced by an automation node.
	KindHandle DataKind = "handle"
)

var dataKinds = map[DataKind]bool{
	KindString:  true,
	KindInteger: true,
	KindFloat:   true,
	KindBoolean: true,
	KindList:    true,
	KindMapping: true,
	KindAny:     true,
	KindHandle:  true,
}

// Valid reports whether k is a declared data kind.
func (k DataKind) Valid() bool {
	return dataKinds[k]
}

// CompatibleKinds reports whether a value produced on a port of kind src may
// flow over a data edge into a port of kind dst. The any kind matches
// everything; integers widen losslessly into floats.
func CompatibleKinds(src, dst DataKind) bool {
	if src == KindAny || dst == KindAny {
		return true
	}

	if src == KindInteger && dst == KindFloat {
		return true
	}

	return src == dst
}
