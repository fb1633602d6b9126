package controller

import (
	"github.com/hyp3rd/ewrap"
)

// Common errors for the controller package.
var (
	// ErrShutDown is returned when operating on a controller that has
	// already been shut down.
	ErrShutDown = ewrap.New("controller is shut down")
)
