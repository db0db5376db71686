package service

import (
	"errors"
)

var (
	// ErrNoSuchMap is returned for a map that isn't configured
	ErrNoSuchMap = errors.New("no such map")
	// ErrNotOwner is returned for an operation on a partition
	// this node doesn't hold
	ErrNotOwner = errors.New("partition is not owned by this node")
	// ErrClosed is returned after the service shut down
	ErrClosed = errors.New("map service is shut down")
)
