// Package testutil provides testing utilities for mmapio.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic data generation so round-trip tests can verify
// byte-exact copies without storing fixtures.
//
//	rng := testutil.NewRNG(seed)
//	buf := rng.Bytes(1 << 20)
//
//	pattern := testutil.Pattern(1<<20, 0)
package testutil
