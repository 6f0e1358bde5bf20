// Package mesh owns the coordinate model of the target machine.
//
// Ownership boundary:
// - chip coordinates and processor locations
// - machine extent and dead-chip bookkeeping
// - allocation spans and routing paths
package mesh
