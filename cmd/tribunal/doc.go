// Command tribunal reviews the changes between two git branches with several
// independent LLM reviewer lenses and consolidates their findings into a
// single verdict: must fix, should fix, refactoring opportunities and a final
// APPROVE, REQUEST_CHANGES or NEEDS_DISCUSSION decision.
//
// Usage:
//
//	tribunal review -s <source-branch> -t <target-branch> [flags]
//	tribunal branches
//	tribunal config init|set|show
//	tribunal models list|doctor
//	tribunal cache show|clear
//	tribunal sessions list|show
//
// After the first round the session stays open: type follow-up feedback to
// run another round, or q, quit, exit, done or an empty line to finish.
package main
