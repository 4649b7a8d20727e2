package httpexec

import (
	"io"
	"net/url"
	"reflect"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

// validate is the process-wide schema validator. Struct tags follow
// go-playground/validator conventions:
//
//	type User struct {
//	    ID    string `json:"id" validate:"required,uuid4"`
//	    Email string `json:"email" validate:"required,email"`
//	}
var validate = validator.New(validator.WithRequiredStructEnabled())

// Text decodes a successful result's body as a string.
func Text(res Result[*Response]) Result[string] {
	if !res.Ok() {
		return Failure[string](res.Err())
	}
	body, err := res.Value().Text()
	if err != nil {
		return Failure[string](newError(KindParseBody, "failed to read response body", err))
	}
	return Success(body)
}

// Bytes decodes a successful result's body as raw bytes.
func Bytes(res Result[*Response]) Result[[]byte] {
	if !res.Ok() {
		return Failure[[]byte](res.Err())
	}
	body, err := res.Value().Bytes()
	if err != nil {
		return Failure[[]byte](newError(KindParseBody, "failed to read response body", err))
	}
	return Success(body)
}

// Form decodes a successful result's body as URL-encoded form values.
func Form(res Result[*Response]) Result[url.Values] {
	if !res.Ok() {
		return Failure[url.Values](res.Err())
	}
	body, err := res.Value().Text()
	if err != nil {
		return Failure[url.Values](newError(KindParseBody, "failed to read response body", err))
	}
	values, err := url.ParseQuery(body)
	if err != nil {
		return Failure[url.Values](newError(KindParseBody, "failed to parse form body", err))
	}
	return Success(values)
}

// Stream exposes a successful result's body as a stream. If the body has
// not been read yet the caller owns closing the returned reader.
func Stream(res Result[*Response]) Result[io.ReadCloser] {
	if !res.Ok() {
		return Failure[io.ReadCloser](res.Err())
	}
	return Success(res.Value().Reader())
}

// JSON decodes a successful result's body as JSON into T. A body that
// does not parse yields a ParseBody failure; the transport is never
// re-invoked for a decode failure.
func JSON[T any](res Result[*Response]) Result[T] {
	if !res.Ok() {
		return Failure[T](res.Err())
	}

	body, err := res.Value().Bytes()
	if err != nil {
		return Failure[T](newError(KindParseBody, "failed to read response body", err))
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return Failure[T](newError(KindParseBody, "failed to parse response body", err))
	}
	return Success(out)
}

// ValidatedJSON decodes a successful result's body as JSON into T and
// then checks it against T's validate struct tags. A parse failure and a
// schema failure are distinct kinds so callers can treat a malformed
// body differently from a well-formed but invalid one.
func ValidatedJSON[T any](res Result[*Response]) Result[T] {
	decoded := JSON[T](res)
	if !decoded.Ok() {
		return decoded
	}

	value := decoded.Value()
	if !validatable(value) {
		return decoded
	}
	if err := validate.Struct(&value); err != nil {
		return Failure[T](newError(KindValidation, "response failed validation", err))
	}
	return Success(value)
}

// validatable reports whether v is a struct (possibly behind pointers),
// the only shape the schema validator understands.
func validatable(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct
}
