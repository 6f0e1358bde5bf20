// Package options owns experiment parameter identity and resolution.
//
// Ownership boundary:
// - the closed option registry (name, value kind, scope class, default)
// - the hierarchical resolver (global -> group -> owner -> group+owner)
// - scope and value validation errors
//
// Option values are scalars. Owners are opaque to this package; a flow-like
// owner advertises its source through the Sourced interface and picks up
// the two extra resolution tiers that come with it.
package options
