package upload

import "fmt"

// Kind classifies why an upload failed.
type Kind int

const (
	MissingBoundary Kind = iota + 1
	MalformedBody
	MissingFilename
	DestinationUnwritable
	UnexpectedEndOfData
)

func (k Kind) String() string {
	switch k {
	case MissingBoundary:
		return "missing_boundary"
	case MalformedBody:
		return "malformed_body"
	case MissingFilename:
		return "missing_filename"
	case DestinationUnwritable:
		return "destination_unwritable"
	case UnexpectedEndOfData:
		return "unexpected_end_of_data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified upload failure. Msg is shown to the client.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	errNoBoundary  = &Error{Kind: MissingBoundary, Msg: "Content-Type header doesn't contain boundary"}
	errNoLength    = &Error{Kind: MalformedBody, Msg: "Content-Length header is required"}
	errNotBoundary = &Error{Kind: MalformedBody, Msg: "Content NOT begin with boundary"}
	errNoFilename  = &Error{Kind: MissingFilename, Msg: "Can't find out file name..."}
	errEndOfData   = &Error{Kind: UnexpectedEndOfData, Msg: "Unexpect Ends of data."}
)

func unwritable(err error) *Error {
	return &Error{Kind: DestinationUnwritable, Msg: "Can't create file to write, do you have permission to write?", Err: err}
}

// Outcome is the result of one upload attempt: either a success carrying the
// resolved path, or a failure carrying a reason.
type Outcome struct {
	OK     bool
	Path   string // resolved destination, set on success
	Bytes  int64  // payload bytes written
	BLAKE3 string // hex digest of the payload, set on success
	Err    *Error // set on failure
}

func success(path string, n int64, digest string) Outcome {
	return Outcome{OK: true, Path: path, Bytes: n, BLAKE3: digest}
}

func failure(err *Error) Outcome {
	return Outcome{Err: err}
}

// Result is the page label: "Success" or "Failed".
func (o Outcome) Result() string {
	if o.OK {
		return "Success"
	}
	return "Failed"
}

// Message is the human-readable outcome text.
func (o Outcome) Message() string {
	if o.OK {
		return fmt.Sprintf("File '%s' upload success!", o.Path)
	}
	if o.Err == nil {
		return ""
	}
	return o.Err.Msg
}

// Kind returns the failure kind, or 0 on success.
func (o Outcome) Kind() Kind {
	if o.Err == nil {
		return 0
	}
	return o.Err.Kind
}
