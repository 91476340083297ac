// Package ir provides the shared types for chaindb.
//
// This package contains type definitions and their encodings only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// storage word, the column type tags and the journal records in one
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Storage values are fixed-width 32-byte words (Word); there is no
//     dynamic value representation below the codec.
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - Identifiers written to the journal are content-addressed (hash.go)
package ir
