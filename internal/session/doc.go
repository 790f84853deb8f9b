// Package session runs the interactive review loop.
//
// The first round is a full review of the diff. After each round the loop
// prompts for follow-up feedback; any input other than q, quit, exit, done
// or an empty line starts another round, and end of input ends the session.
// When every reviewer fails, the user may retry the round or end the session;
// a round is never skipped silently.
package session
