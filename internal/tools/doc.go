// Package tools is the read-only view of a repository that reviewers and the
// coordinator work from.
//
// A [Provider] shells out to git for the merge-base diff between two
// branches, the changed file list, and the branch names. It also reads files
// under the repository root with a size cap and searches for files with
// doublestar globs. Every operation is side-effect free.
//
// Failures are typed: [GitError] for a bad repository or ref, and
// [ValidationError] for a path that escapes the repository or a file over the
// cap. Callers treat a ValidationError as a denied read and carry on.
package tools
