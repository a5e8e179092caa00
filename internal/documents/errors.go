package documents

import "errors"

// InputError is a rejected upload. Nothing is stored when one is returned.
type InputError struct {
	Code    string
	Message string
}

func (e *InputError) Error() string { return e.Message }

const (
	CodeMissingFile = "missing_file"
	CodeNotPDF      = "unsupported_type"
	CodeEmptyFile   = "empty_file"
	CodeTooLarge    = "file_too_large"
	CodeUnreadable  = "unreadable_pdf"
	CodeInvalidName = "invalid_file_name"
)

func inputError(code, msg string) error {
	return &InputError{Code: code, Message: msg}
}

// AsInputError reports whether err is (or wraps) an InputError.
func AsInputError(err error) (*InputError, bool) {
	var ie *InputError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
