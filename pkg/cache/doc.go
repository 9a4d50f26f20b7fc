// Package cache implements the distributed cache-versioning protocol.
//
// # Overview
//
// Every cacheable entity has a monotonically increasing version counter in
// Redis. Cache keys are suffixed with the current version, so invalidation
// is a single atomic INCR: the bump orphans every previously cached entry
// without an explicit delete, and stale entries simply age out by TTL.
// There is no "delete arrived before write" race by construction.
//
// # Invalidation
//
// A mutation that changes the meaning of cached reads calls Bus.Invalidate,
// which first bumps the relevant version keys (the authoritative
// invalidation, required to succeed before the mutation reports success)
// and then publishes a best-effort broadcast so process-local caches on
// other instances evict proactively. Total loss of broadcasts degrades
// performance, never correctness.
//
// # Reading
//
//	member, err := cache.GetOrCompute(ctx, reader, cache.MembershipKey(uid, wid),
//		func(ctx context.Context) (*store.WorkspaceMember, error) {
//			return members.GetMember(ctx, uid, wid)
//		})
//
// # Related Packages
//
//   - pkg/authz: caches membership rows through the Reader
//   - pkg/workspaces: invalidates through the Bus on every mutation
package cache
