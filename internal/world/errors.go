package world

import "fmt"

// InvalidObjectIdError reports a reference to an object that does not exist.
type InvalidObjectIdError struct {
	Id Id
}

func (e *InvalidObjectIdError) Error() string {
	return fmt.Sprintf("invalid object id %s", e.Id)
}

// CyclicHierarchyError reports a move that would make an object its own
// ancestor.
type CyclicHierarchyError struct {
	Child  Id
	Parent Id
}

func (e *CyclicHierarchyError) Error() string {
	return fmt.Sprintf("moving child %s to parent %s causes a cycle", e.Child, e.Parent)
}

// NotLivePackageError reports a live-package write addressed at a key that
// is not a live package.
type NotLivePackageError struct {
	Kind Kind
}

func (e *NotLivePackageError) Error() string {
	return fmt.Sprintf("package %s is not a live package", e.Kind)
}
