package lead

import "errors"

var (
	ErrEmptyFile              = errors.New("csv file has no data rows")
	ErrInvalidHeader          = errors.New("csv header contains an empty column name")
	ErrFileTooLarge           = errors.New("csv file exceeds the upload limit")
	ErrMissingRequiredMapping = errors.New("a column must be mapped to the name field")
	ErrDuplicateNameMapping   = errors.New("only one column may be mapped to the name field")
	ErrUnknownTargetField     = errors.New("mapping targets an unknown field")
	ErrInvalidImportRequest   = errors.New("invalid import request")
	ErrStartImport            = errors.New("failed to start import")
	ErrPrepareCustomFields    = errors.New("failed to prepare custom fields")
	ErrInvalidJobID           = errors.New("invalid import job id")
	ErrInvalidTeamID          = errors.New("invalid team id")
	ErrImportJobNotFound      = errors.New("import job not found")
	ErrGetImportJob           = errors.New("failed to get import job")
	ErrListImportJobs         = errors.New("failed to list import jobs")
	ErrNotResumable           = errors.New("only failed imports can be resumed")
	ErrCannotResume           = errors.New("cannot resume import: original rows were not preserved")
	ErrResumeImport           = errors.New("failed to resume import")
)
