package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	app "github.com/leadflow/lead-import/internal/application/lead"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var appErrors = []errorMapping{
	{app.ErrInvalidTeamID, http.StatusBadRequest, "invalid_team_id"},
	{app.ErrInvalidJobID, http.StatusBadRequest, "invalid_job_id"},
	{app.ErrEmptyFile, http.StatusBadRequest, "empty_file"},
	{app.ErrInvalidHeader, http.StatusBadRequest, "invalid_header"},
	{app.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{app.ErrMissingRequiredMapping, http.StatusBadRequest, "missing_name_mapping"},
	{app.ErrDuplicateNameMapping, http.StatusBadRequest, "duplicate_name_mapping"},
	{app.ErrUnknownTargetField, http.StatusBadRequest, "unknown_target_field"},
	{app.ErrInvalidImportRequest, http.StatusBadRequest, "invalid_request"},
	{app.ErrImportJobNotFound, http.StatusNotFound, "not_found"},
	{app.ErrNotResumable, http.StatusConflict, "not_resumable"},
	{app.ErrCannotResume, http.StatusConflict, "cannot_resume"},
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, apiResponse{Error: &errorBody{Code: code, Message: message}})
}

// failWith maps an application error onto the response envelope. Unknown
// errors become a 500 carrying fallback instead of the internal detail.
func failWith(c echo.Context, err error, fallback string) error {
	for _, m := range appErrors {
		if errors.Is(err, m.target) {
			return fail(c, m.status, m.code, err.Error())
		}
	}
	c.Logger().Errorf("%s: %v", fallback, err)
	return fail(c, http.StatusInternalServerError, "internal_error", fallback)
}
