// Package ir provides the expression-tree intermediate representation compiled
// by exprjit, together with the type descriptors and runtime values it talks about.
//
// This package contains no compilation logic. All other internal packages
// import ir; ir imports nothing internal. This keeps the tree model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - The node set is closed: Node is sealed and every stage dispatches on the
//     concrete variants with a type switch.
//   - Nodes are immutable once constructed and may be shared between
//     compilations and goroutines.
//   - Static types are checked at construction time. A malformed tree is
//     reported as *TypeMismatchError and never reaches the compiler.
//   - Members are resolved to a fixed offset or accessor when the tree is
//     built; nothing downstream looks members up by name.
package ir
