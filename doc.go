// Package patchpairs turns per-slide pair-index shards into one flat,
// randomly-addressable paired dataset.
//
// Mining (package miner) classifies patch pairs of a whole-slide image as
// similar or dissimilar by physical distance and persists one immutable
// shard per slide (package shard). Opening a Dataset reads only the shard
// headers, builds a global bucket index over the flat pair space, and then
// serves unbounded concurrent random access:
//
//	store := shard.NewStore(blobs)
//	ds, err := patchpairs.Open(ctx, store)
//	if err != nil { ... }
//
//	slideID, category, local, err := ds.Resolve(7)
//	ref, err := ds.Pair(ctx, 7) // the two patch indices
//
// Patch pixels live in a separate keyed store; Get dereferences a pair into
// two image lookups through the PatchStore collaborator.
package patchpairs
