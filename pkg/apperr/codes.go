package apperr

// Code classifies an error for callers that need to react differently
// to "absent", "forbidden", "retry later" and "fix your input".
type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
)

// Retryable reports whether an operation that failed with this code is
// safe to retry as-is. Only transient I/O qualifies.
func (c Code) Retryable() bool {
	return c == CodeUnavailable
}
