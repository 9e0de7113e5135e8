package errmsg

import "net/http"

var (
	OperatorNotConfigured = NewStatusError(
		http.StatusInternalServerError,
		"operator credentials are not configured",
	)
	OperatorNoToken = NewStatusError(
		http.StatusUnauthorized,
		"no token has been provided",
	)
	OperatorInvalidToken = NewStatusError(
		http.StatusUnauthorized,
		"token is invalid or expired",
	)
	OperatorWrongPassword = NewStatusError(
		http.StatusUnauthorized,
		"username or password is incorrect",
	)
	OperatorInvalidPayload = NewStatusError(
		http.StatusBadRequest,
		"username and password must be provided",
	)
)
