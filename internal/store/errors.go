package store

import "errors"

// User-facing validation messages.
const (
	MsgFillAllFields    = "Please fill all fields."
	MsgStartAfterEnd    = "Start date cannot be after end date."
	MsgInvalidDate      = "Dates must use the YYYY-MM-DD format."
	FieldName           = "name"
	FieldDate           = "date"
	FieldStartDate      = "startDate"
	FieldEndDate        = "endDate"
	FieldDateRangeOrder = "startDate,endDate"
)

// ValidationError blocks an add. It carries the message shown to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	// ErrDuplicateID marks an import candidate whose id is already live.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrPersist wraps failures of the blob store. The in-memory mutation
	// is kept when it is returned.
	ErrPersist = errors.New("persist store")
)

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
