// Package ir provides the canonical intermediate representation for warp.
//
// A scene document is reduced to flat Records by the document package and
// then assembled into a tree of NodeRecords by the compiler. The tree is the
// only thing the reconciliation engine consumes and the only thing that is
// written to disk as the intermediate JSON form.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Attribute values are an explicit sealed union (IRValue), never any
//   - Numbers stay textual until a destination field type is known
//   - References keep their target stable id; "0" means absent
//   - All JSON tags use snake_case
package ir
