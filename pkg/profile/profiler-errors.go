package profile

import (
	"github.com/pkg/errors"
)

var (
	// ErrEventsRingFull reports a failed slot reservation: the
	// streaming channel is saturated and the sample is lost.
	ErrEventsRingFull = errors.New("events ring is full")
)
