package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"inventory-dashboard/internal/metrics"
	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/normalize"
	"inventory-dashboard/internal/services"
)

// FromError maps engine and loader errors onto API errors. Malformed
// workbooks and bad filters are the caller's fault; anything unrecognised is
// internal.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var sheetErr *normalize.SheetError
	if stderrors.As(err, &sheetErr) {
		e := ValidationWrap(err, "workbook is malformed")
		e.Details = sheetErr.Error()
		return e
	}

	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return Wrap(err, CodeTooLarge, "upload exceeds the size limit")
	case stderrors.Is(err, normalize.ErrSheetCount), stderrors.Is(err, normalize.ErrInvalidLayout):
		e := ValidationWrap(err, "workbook does not match the layout")
		e.Details = err.Error()
		return e
	case stderrors.Is(err, services.ErrInvalidFilters),
		stderrors.Is(err, models.ErrUnknownPeriod),
		stderrors.Is(err, metrics.ErrWindowLength):
		e := ValidationWrap(err, "invalid filters")
		e.Details = err.Error()
		return e
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(err, CodeServiceUnavail, "request was cancelled")
	}

	return InternalWrap(err, "An unexpected error occurred")
}
