// Package probe decides whether an upstream font repository follows the
// source/config.yaml build convention.
//
// A Prober never fails: authentication errors, missing repositories, network
// trouble, rate limiting and timeouts all produce OutcomeUnreachable with a
// diagnostic in Result.Error. Transient failures are retried first according
// to a RetryPolicy.
//
// Three strategies are available:
//
//   - shallow: a depth 1 clone held in memory and discarded after inspection
//   - checkout: a depth 1 clone kept under a cache directory and fetched on reuse
//   - github: the GitHub contents API, with shallow used for other hosts
//
// WithCache wraps a Prober so each repository is probed at most once per Cache.
package probe
