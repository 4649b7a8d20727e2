package httpexec

// Result is the tagged union every terminal operation of the executor
// returns: either Success carrying a value, or Failure carrying an
// *Error from the taxonomy. Exactly one variant is populated. The
// executor never lets an error escape as a panic or a raw error value;
// callers branch on Ok() before touching Value() or Err().
//
//	res := client.Request("GetUser").Get(ctx, "/users/1")
//	if !res.Ok() {
//	    switch res.Err().Kind {
//	    case httpexec.KindTimeout:
//	        // ...
//	    }
//	}
type Result[T any] struct {
	ok    bool
	value T
	fail  *Error
}

// Success wraps a value in the success variant.
func Success[T any](value T) Result[T] {
	return Result[T]{ok: true, value: value}
}

// Failure wraps an *Error in the failure variant.
func Failure[T any](err *Error) Result[T] {
	return Result[T]{fail: err}
}

// Ok reports whether the result is the success variant.
func (r Result[T]) Ok() bool {
	return r.ok
}

// Value returns the success payload. It is the zero value when the
// result is a failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure payload, or nil for a success.
func (r Result[T]) Err() *Error {
	return r.fail
}

// Get unpacks both variants at once for callers that prefer the
// conventional two-value form.
func (r Result[T]) Get() (T, *Error) {
	return r.value, r.fail
}
