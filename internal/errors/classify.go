package errors

// Category represents the type of error for display and handling purposes.
type Category int

const (
	// CategoryUnknown is the default for unclassified errors.
	CategoryUnknown Category = iota
	// CategoryUser indicates an error the user can fix (bad input).
	CategoryUser
	// CategoryStorage indicates the embedded database could not be used at all.
	CategoryStorage
	// CategoryWrite indicates a durable write failed; the action may be retried.
	CategoryWrite
	// CategoryPermission indicates the delivery channel refused permission.
	CategoryPermission
	// CategoryLifecycle indicates an action issued before boot or after shutdown.
	CategoryLifecycle
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryUser:
		return "user"
	case CategoryStorage:
		return "storage"
	case CategoryWrite:
		return "write"
	case CategoryPermission:
		return "permission"
	case CategoryLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// Classify determines the category of an error.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	switch {
	case IsUserError(err):
		return CategoryUser
	case IsWriteError(err):
		return CategoryWrite
	case Is(err, ErrStorageUnavailable):
		return CategoryStorage
	case Is(err, ErrPermissionDenied):
		return CategoryPermission
	case Is(err, ErrNotBooted), Is(err, ErrShutdown):
		return CategoryLifecycle
	}

	if IsSystemError(err) {
		return CategoryStorage
	}
	return CategoryUnknown
}

// IsRetryable returns true if repeating the same action may succeed.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case CategoryWrite, CategoryLifecycle:
		return !Is(err, ErrShutdown)
	default:
		return false
	}
}
