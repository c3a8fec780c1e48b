// Package permission resolves category and bucket grants into tool sets.
//
// A grant maps category names to buckets. Each bucket is either a boolean or,
// for dynamic buckets, a list of resource keys that produce one synthesized
// tool per matching account resource.
package permission
