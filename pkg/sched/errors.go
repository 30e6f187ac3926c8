package sched

import "errors"

var (
	// ErrNoCapacity means every eligible node is full (or the fleet is
	// empty). Retrying immediately will not help; capacity has to be
	// freed or added first.
	ErrNoCapacity = errors.New("insufficient capacity in node selection")

	// ErrNoEligibleNode means the requirements filter left nothing to
	// choose from, regardless of capacity.
	ErrNoEligibleNode = errors.New("no node satisfies task requirements")

	// ErrStoreUnavailable wraps transient snapshot/bind failures. The
	// caller may retry the whole schedule call.
	ErrStoreUnavailable = errors.New("cluster store unavailable")

	// ErrUnknownPolicy is returned for a scheduler name outside the
	// registry. Fatal at startup.
	ErrUnknownPolicy = errors.New("unknown scheduler policy")
)
