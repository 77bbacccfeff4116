package httpadapter

import (
	"net/http"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// mapErrorToHTTPStatus checks ErrReconciliationFailed first: it wraps whatever
// broke mid-run, and a mid-run not-found is still a server-side failure.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrReconciliationFailed):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrBidNotFound), domain.IsKind(err, domain.ErrTenderNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidState):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
