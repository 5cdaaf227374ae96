package mtsp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any routing work when the request is malformed.
	ErrInvalidInput = errors.New("mtsp: invalid input")
	// ErrUnreachable is returned by a Router when no path exists between two points.
	ErrUnreachable = errors.New("mtsp: unreachable")
	// ErrInfeasible matches every *InfeasibleError.
	ErrInfeasible = errors.New("mtsp: infeasible")
	// ErrAssembly matches every *AssemblyError.
	ErrAssembly = errors.New("mtsp: assembly failure")
)

// InfeasibleError reports a group that cannot be closed without an unreachable edge.
type InfeasibleError struct {
	Group   int
	Indices []int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("mtsp: infeasible: group %d cannot form a closed tour over %v", e.Group, e.Indices)
}

func (e *InfeasibleError) Is(target error) bool { return target == ErrInfeasible }

// AssemblyError reports a segment the router refused while stitching a solved tour.
// It means the cost matrix was stale relative to the router.
type AssemblyError struct {
	Tour     int
	From, To int
	cause    error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("mtsp: assembly failure: tour %d edge %d->%d: %v", e.Tour, e.From, e.To, e.cause)
}

func (e *AssemblyError) Is(target error) bool { return target == ErrAssembly }

func (e *AssemblyError) Unwrap() error { return e.cause }

// RouterError wraps a router failure other than ErrUnreachable.
type RouterError struct {
	Op       string
	From, To int
	cause    error
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("mtsp: router %s %d->%d: %v", e.Op, e.From, e.To, e.cause)
}

func (e *RouterError) Unwrap() error { return e.cause }
