package codec

import "fmt"

// DecodeError means the input bytes could not be read as an image.
// It is a client-input problem, never retried.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError means the encoder rejected the image or parameters.
// Unlike an over-budget output this is a hard fault and aborts the
// whole request.
type EncodeError struct {
	Format string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
