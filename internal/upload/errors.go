package upload

import "fmt"

// RejectionKind identifies which validation stage refused an upload attempt.
type RejectionKind string

const (
	InvalidFileType    RejectionKind = "invalid_file_type"
	FileTooSmall       RejectionKind = "file_too_small"
	FileTooLarge       RejectionKind = "file_too_large"
	InvalidFormat      RejectionKind = "invalid_format"
	SecurityScanFailed RejectionKind = "security_scan_failed"

	// ValidationFailed marks file-system faults during validation (file
	// vanished, unreadable), as opposed to policy rejections.
	ValidationFailed RejectionKind = "validation_failed"
)

// Rejection is a terminal validation verdict for one attempt. It carries the
// diagnostics the pipeline surfaces to the client.
type Rejection struct {
	Kind      RejectionKind
	Message   string
	SizeBytes int64    // measured size, set for size-bound rejections
	Detected  string   // sniffed content type, set for format rejections
	Threats   []string // set for scan rejections
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// IsRejection reports whether err is a policy rejection rather than an
// internal fault, and unwraps it.
func IsRejection(err error) (*Rejection, bool) {
	rej, ok := err.(*Rejection)
	if !ok {
		return nil, false
	}
	return rej, rej.Kind != ValidationFailed
}
