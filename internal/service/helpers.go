package service

import (
	"errors"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
)

// fromAuthzErr maps policy-core failures onto typed API errors. Cross-stream
// read denials become not-found so a resource's existence in another stream
// never leaks through the status code.
func fromAuthzErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, authz.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	if errors.Is(err, authz.ErrDatabaseUnavailable) {
		return appErrors.Wrap(err, appErrors.ErrDatabaseUnavailable.Code, appErrors.ErrDatabaseUnavailable.Status, appErrors.ErrDatabaseUnavailable.Message)
	}
	if denied, ok := authz.AsDenied(err); ok {
		if authz.HidesExistence(denied.Action, denied.Reason) {
			return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
		}
		return appErrors.Clone(appErrors.ErrForbidden, "operation not permitted")
	}
	return err
}

// denyToErr converts a refusing decision into the API error a handler
// should surface, honoring existence hiding for single reads.
func denyToErr(action authz.Action, d authz.Decision, notFoundMsg string) error {
	if authz.HidesExistence(action, d.Reason) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	return appErrors.Clone(appErrors.ErrForbidden, "operation not permitted")
}

func paginationFor(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
