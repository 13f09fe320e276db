// Package integration runs font-sources end to end against local git
// repositories: a catalog checkout that is created, reused and updated, and
// upstream font repositories probed with every git based strategy.
package integration
