// Package output renders review rounds and sessions.
//
// Text (coloured on terminals) and markdown are written round by round while
// the session runs. JSON, YAML and SARIF describe the whole session and are
// written once it ends. Every format keeps the same order within a round:
// each lens's raw findings, Must Fix, Should Fix, Refactoring Opportunities,
// the executive summary and the final verdict token.
//
// UI carries the coloured status prefixes and table styling used by the
// CLI's non-review commands.
package output
