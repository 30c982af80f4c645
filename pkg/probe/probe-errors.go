package probe

import (
	"github.com/pkg/errors"
)

var (
	ErrNoHandlers       = errors.New("no handlers attached")
	ErrNoExecutionUnits = errors.New("no online execution units found")
)
