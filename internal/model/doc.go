// Package model provides the value types of the knowledge graph.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - Object ids and sorting indices share one signed 64-bit domain bounded
//     by MinID and MaxID. Zero is never a valid object id.
//   - Attributes are a closed set of forms. Every form is a concrete type
//     implementing Attribute; new forms must be added to Forms.
//   - Optional values are pointers; tri-state flags use *bool.
package model
