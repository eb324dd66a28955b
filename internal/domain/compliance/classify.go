package compliance

import "github.com/m-mizutani/goerr/v2"

// Result is the classification of one requirement instance as of a reference date.
type Result struct {
	Status   Status `json:"status"`
	DaysLeft *int   `json:"daysLeft"`
}

// Classify assigns a requirement instance to exactly one bucket.
//
// A waiver wins over everything else and a missing validTo means nothing was recorded.
// Expiry on asOf itself already counts as overdue; the warning window is inclusive on its
// far edge. Negative windows are treated as zero; use ClassifyChecked to reject them.
func Classify(validTo *Date, waived bool, asOf Date, warningWindowDays int) Result {
	if warningWindowDays < 0 {
		warningWindowDays = 0
	}

	var daysLeft *int
	if validTo != nil {
		days := asOf.DaysUntil(*validTo)
		daysLeft = &days
	}

	switch {
	case waived:
		return Result{Status: StatusWaived, DaysLeft: daysLeft}
	case validTo == nil:
		return Result{Status: StatusMissing}
	case !validTo.After(asOf):
		return Result{Status: StatusOverdue, DaysLeft: daysLeft}
	case !validTo.After(asOf.AddDays(warningWindowDays)):
		return Result{Status: StatusExpiring, DaysLeft: daysLeft}
	default:
		return Result{Status: StatusValid, DaysLeft: daysLeft}
	}
}

// ClassifyChecked is Classify with the warning window validated.
func ClassifyChecked(validTo *Date, waived bool, asOf Date, warningWindowDays int) (Result, error) {
	if warningWindowDays < 0 {
		return Result{}, goerr.Wrap(ErrInvalidWarningWindow, "failed to classify", goerr.V("warningWindowDays", warningWindowDays))
	}
	if asOf.IsZero() {
		return Result{}, goerr.Wrap(ErrInvalidDate, "asOf is required")
	}
	return Classify(validTo, waived, asOf, warningWindowDays), nil
}

// Window resolves the warning window per requirement. An explicit override from the caller
// wins, then the requirement's own default, then Default.
type Window struct {
	Override *int
	Default  int
}

func (w Window) For(req Requirement) int {
	if w.Override != nil {
		return *w.Override
	}
	if req.WarningWindowDays != nil && *req.WarningWindowDays >= 0 {
		return *req.WarningWindowDays
	}
	return w.Default
}
