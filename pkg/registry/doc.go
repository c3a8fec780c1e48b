// Package registry holds the static catalog of tool categories.
//
// Invariants:
// - Method names are unique across every category.
// - Every method a bucket lists belongs to the same category.
// - Declaration order is preserved by every listing.
package registry
