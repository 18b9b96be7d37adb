package api

import (
	"errors"
	"net/http"
)

type cancelParams struct {
	Identifier string
}

type cancelResult struct {
	Cancelled int
}

// rpcCancel stops every in-flight stream of the named archive. Stopped
// streams are aborted, so their clients see an incomplete download.
func (h *Handler) rpcCancel(_ *http.Request, params cancelParams) (code int, body any) {
	if params.Identifier == "" {
		return http.StatusBadRequest, errors.New("identifier required")
	}

	n := h.sessions.Cancel(params.Identifier)
	h.logger.Infof("Cancelled %d stream(s) of %q", n, params.Identifier)
	return http.StatusOK, cancelResult{Cancelled: n}
}
