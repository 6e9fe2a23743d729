// Package confirm guards destructive bridge operations (logout, session
// replacement) behind short-lived signed tokens and a Redis single-flight
// lock, so an operator must explicitly confirm an action and two racing
// confirmations cannot both run.
package confirm
