// Package syncer runs one refresh of the asset mirror.
//
// A run walks a fixed sequence of phases:
//
//	CHECK -> END                                   (mirror unchanged)
//	CHECK -> FETCH_META -> SYNC_PRIMARY -> [SYNC_FALLBACK]
//	      -> GENERATE -> SAVE_STATE -> END         (mirror changed)
//
// The fallback phase runs only when the primary source failed for at least
// one file or downloaded nothing. A failed update check is treated as a
// change, so the next run retries instead of silently skipping.
//
// Failure policy:
//   - metadata fetch failure aborts the run, the state is left untouched and
//     the exit code is 1
//   - image download failures are counted, never fatal
//   - manifest generation failure is logged and the run continues
//   - when neither image listing can be read the run completes but does not
//     advance last_updated, and the exit code is 1
//
// The Syncer does not load state itself: Run receives the previous State and
// returns the next one, which it has already persisted.
package syncer
