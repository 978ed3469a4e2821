package sequence

import "errors"

var (
	// ErrReadFile indicates that the sequence file can't be read.
	ErrReadFile = errors.New("cannot read the sequence file")

	// ErrInvalidSyntax indicates that the sequence data is not valid JSON (or YAML).
	ErrInvalidSyntax = errors.New("sequence data is not valid")
)

// Schema violations. Each rule has its own error so callers can tell which constraint failed.
var (
	// ErrNotArray indicates that the top-level value is not an array.
	ErrNotArray = errors.New("sequence is not an array")

	// ErrEntryNotObject indicates that an array element is not an object.
	ErrEntryNotObject = errors.New("entry is not an object")

	// ErrTextNotString indicates that the "text" field is missing or not a string.
	ErrTextNotString = errors.New("text is missing or not a string")

	// ErrTextEmpty indicates that the "text" field is an empty string.
	ErrTextEmpty = errors.New("text is empty")

	// ErrDelayNotNumber indicates that the "delay" field is missing or not a number.
	ErrDelayNotNumber = errors.New("delay is missing or not a number")

	// ErrDelayNotPositiveInt indicates that the "delay" field has a fractional part or is not greater than zero.
	ErrDelayNotPositiveInt = errors.New("delay is not a positive integer")
)
