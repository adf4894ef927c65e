// Package errs defines the error kinds shared by every espcodec package.
//
// Each kind is a sentinel usable with errors.Is. Decode and encode paths wrap
// a kind in an *Error so failures carry the file, the record/subrecord
// context, and the byte offset where the codec gave up.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTruncatedRead is returned when fewer bytes remain than a read needs.
	ErrTruncatedRead = errors.New("truncated read")
	// ErrOutOfBounds is returned when a seek lands before the start or past the end.
	ErrOutOfBounds = errors.New("offset out of bounds")
	// ErrUnknownRecordType is returned for a header tag the game does not define.
	ErrUnknownRecordType = errors.New("unknown record type")
	// ErrUnknownSubrecord is returned for a subrecord tag the schema does not handle.
	ErrUnknownSubrecord = errors.New("unexpected subrecord")
	// ErrSizeMismatch is returned when a declared size disagrees with the data.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrUnresolvedMaster is returned when a long FormID names a file missing from the master list.
	ErrUnresolvedMaster = errors.New("unresolved master")
	// ErrPackingError is returned when a record in long FormID form is packed.
	ErrPackingError = errors.New("packing error: formids in long format")
	// ErrEncoding is returned when a string cannot be represented in the target encoding.
	ErrEncoding = errors.New("string encoding error")

	// ErrUnknownField is returned when a field name is not declared by the schema.
	ErrUnknownField = errors.New("unknown field")
	// ErrFieldType is returned when a field holds a value of an unexpected type.
	ErrFieldType = errors.New("unexpected field type")
	// ErrInvalidLayout is returned for a malformed struct format string.
	ErrInvalidLayout = errors.New("invalid struct layout")
	// ErrMixedRepresentation is returned when short and long FormIDs meet in one record.
	ErrMixedRepresentation = errors.New("mixed formid representation")
	// ErrOpaqueRecord is returned when the ids inside a record without a schema would have to be remapped.
	ErrOpaqueRecord = errors.New("opaque record ids cannot be remapped")
	// ErrInvalidProfile is returned for an incomplete or inconsistent game profile.
	ErrInvalidProfile = errors.New("invalid game profile")
	// ErrInvalidArchive is returned for a malformed archive header or directory.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrFileNotFound is returned when an archive does not contain the requested path.
	ErrFileNotFound = errors.New("file not found in archive")
	// ErrInvalidStringTable is returned for a malformed string table.
	ErrInvalidStringTable = errors.New("invalid string table")
)

// Error is a structured codec failure.
//
// Kind is one of the sentinels above; errors.Is(err, errs.ErrTruncatedRead)
// matches through Unwrap.
type Error struct {
	Kind    error
	File    string // file name being read, if known
	Context string // record type and subrecord tag, e.g. "SPEL.EFIT"
	Offset  int64  // byte offset in the stream, -1 if not applicable
	Detail  string
}

// New creates a structured error of the given kind.
//
// Parameters:
//   - kind: One of the sentinel errors of this package
//   - file: Name of the file being processed (may be empty)
//   - context: Record/subrecord context string (may be empty)
//   - offset: Byte offset of the failure, or -1
//   - format: Detail message format, fmt.Sprintf style
//
// Returns:
//   - *Error: The populated error
func New(kind error, file, context string, offset int64, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		File:    file,
		Context: context,
		Offset:  offset,
		Detail:  fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Context != "" {
		sb.WriteString(e.Context)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.Error())
	if e.Offset >= 0 {
		fmt.Fprintf(&sb, " at offset %d", e.Offset)
	}
	if e.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Detail)
		sb.WriteString(")")
	}

	return sb.String()
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// WithFile returns err with its file name set, when err is an *Error lacking one.
// Other errors are returned unchanged.
func WithFile(err error, file string) error {
	var e *Error
	if errors.As(err, &e) && e.File == "" {
		e.File = file
	}

	return err
}

// IsRecordLocal reports whether err invalidates only the current record,
// leaving the stream position trustworthy for a skip to the next one.
func IsRecordLocal(err error) bool {
	return errors.Is(err, ErrUnknownSubrecord) || errors.Is(err, ErrUnknownRecordType)
}
