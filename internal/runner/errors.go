package runner

import "errors"

// Sentinel errors for the runner package.
var (
	// ErrUnsupportedFileType is returned when no launch plan exists for a file.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrInvalidRule is returned for a remediation rule that cannot be compiled.
	ErrInvalidRule = errors.New("invalid remediation rule")

	// ErrControllerClosed is returned by operations on a closed controller.
	ErrControllerClosed = errors.New("controller is closed")
)
