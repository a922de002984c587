package vcsgw

import "fmt"

// RefNotFoundError is returned by ResolveRef when the ref does not exist.
type RefNotFoundError struct {
	Ref string
}

func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("ref not found: %s", e.Ref)
}

// CasFailedError is returned by UpdateRefCas/DeleteRefCas when the ref's
// current value does not match the expected precondition.
type CasFailedError struct {
	Ref      string
	Expected string
	Actual   string
}

func (e *CasFailedError) Error() string {
	return fmt.Sprintf("cas failed for %s: expected %s, found %s", e.Ref, e.Expected, e.Actual)
}

// ObjectNotFoundError is returned when an oid does not resolve to any object.
type ObjectNotFoundError struct {
	Oid string
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("object not found: %s", e.Oid)
}

// NotARepositoryError is returned by Open when path is not a VCS working copy.
type NotARepositoryError struct {
	Path string
}

func (e *NotARepositoryError) Error() string {
	return fmt.Sprintf("not a repository: %s", e.Path)
}

// InvalidRefNameError is returned when a ref name fails validation.
type InvalidRefNameError struct {
	Name string
}

func (e *InvalidRefNameError) Error() string {
	return fmt.Sprintf("invalid ref name: %s", e.Name)
}
