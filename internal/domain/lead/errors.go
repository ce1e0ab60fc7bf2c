package lead

import "errors"

var (
	ErrImportJobNotFound      = errors.New("import job not found")
	ErrLeadNotFound           = errors.New("lead not found")
	ErrRowSetNotFound         = errors.New("import row set not found")
	ErrInvalidTransition      = errors.New("invalid import job status transition")
	ErrInvalidFieldValue      = errors.New("invalid custom field value")
	ErrUnknownFieldType       = errors.New("unknown custom field type")
	ErrInvalidDuplicatePolicy = errors.New("invalid duplicate policy")
	ErrMissingName            = errors.New("lead name is required")

	// ErrBulkRejected marks a bulk write that the store refused because of
	// individual rows (constraint or data errors), so a per-row retry can
	// isolate the offending rows.
	ErrBulkRejected = errors.New("bulk write rejected")
)
