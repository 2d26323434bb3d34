// Package ritual provides the shared domain types for the service ritual.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ritual; ritual imports nothing internal.
//
// Key design constraints:
//   - Entries are immutable once created and only ever appended
//   - Every stored Entry is Verified; rejected submissions are never stored
//   - No original text is persisted, only hashes and lossy fingerprints
//   - All JSON tags use snake_case
package ritual
