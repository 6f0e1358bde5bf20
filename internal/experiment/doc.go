// Package experiment owns the experiment pipeline.
//
// Ownership boundary:
// - the experiment object model (cores, flows, groups, option access)
// - record-list derivation shared by compile and decode
// - per-core instruction-stream compilation
// - run orchestration over a transport
// - decoding and aggregation into result tables
//
// Lifecycle order:
// - describe (cores, flows, groups, options)
// - prepare (place, derive record lists, compile)
// - run (load, barrier per group, read back)
// - decode (faults, tables)
//
// Placement and routing are collaborator concerns behind the Placer
// interface; the bundled SimplePlacer is a first-fit packer, not a real
// router.
package experiment
