package registry

import "fmt"

// NotFoundError reports that a package, or a version of it matching the
// requested descriptor, could not be obtained from the registry.
type NotFoundError struct {
	Name       string
	Descriptor string
	Reason     string
	Err        error
}

func (e *NotFoundError) Error() string {
	spec := e.Name
	if e.Descriptor != "" {
		spec = fmt.Sprintf("%s@%s", e.Name, e.Descriptor)
	}
	msg := fmt.Sprintf("package not found: %s", spec)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}
