package errmsg

import "net/http"

var (
	MetricsInvalidRepo = NewStatusError(
		http.StatusBadRequest,
		"repository id must be a number",
	)
	MetricsInvalidDate = NewStatusError(
		http.StatusBadRequest,
		"dates must be formatted YYYY-MM-DD",
	)
	BackfillNotConfigured = NewStatusError(
		http.StatusInternalServerError,
		"GITHUB_TOKEN and GITHUB_REPO must be configured for backfill",
	)
)
