// Package filtering selects catalog families by name.
//
// Patterns are globs compiled with gobwas/glob: '*' and '?' wildcards,
// character classes '[...]' and alternatives '{a,b}'. Examples:
//
//   - "Noto Sans*" matches "Noto Sans", "Noto Sans Mono"
//   - "{Roboto,Lato} Mono" matches "Roboto Mono" and "Lato Mono"
//   - "*Pixel?" matches "Tiny Pixel5" but not "Pixel"
//
// Both include and exclude patterns may be given:
//
//  1. A name matching an exclude pattern is dropped (exclude takes precedence)
//  2. A name matching an include pattern is kept
//  3. With include patterns, a name matching none of them is dropped
//  4. With only exclude patterns, a name matching none of them is kept
//  5. Without patterns every name is kept
//
// Every decision comes with a reason, logged at debug level by callers.
package filtering
