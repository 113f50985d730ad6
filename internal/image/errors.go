package imagepkg

import "fmt"

// LoadError reports that an image source could not be read or decoded.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CompositeError reports invalid geometry or settings found while compositing.
type CompositeError struct {
	Reason string
	Err    error
}

func (e *CompositeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("composite: %s: %v", e.Reason, e.Err)
	}
	return "composite: " + e.Reason
}

func (e *CompositeError) Unwrap() error { return e.Err }

// EncodeError wraps a failure of the output encoder.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
