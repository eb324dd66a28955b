package compliance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"workforce/internal/domain/compliance"
)

func TestClassifyRows(t *testing.T) {
	svc := compliance.NewService(nil, nil, time.UTC, 30, 5)
	asOf := date(2024, time.June, 1)

	report, err := svc.ClassifyRows(compliance.Options{AsOf: &asOf}, []compliance.ClassifyRow{
		{Key: "A", Category: "license", ValidTo: datePtr(2024, time.May, 15)},
		{Key: "B", Category: "license", ValidTo: datePtr(2024, time.June, 20)},
		{Key: "C", Category: "medical", ValidTo: datePtr(2024, time.September, 1)},
		{Key: "D", ValidTo: datePtr(2024, time.May, 15), Waived: true},
		{Key: "E", Category: "contract"},
		{Key: "F", ValidTo: datePtr(2024, time.June, 20), WarningWindowDays: intPtr(7)},
	}, 0)
	gt.NoError(t, err)

	gt.Equal(t, report.Primary, compliance.StatusOverdue)
	gt.Equal(t, len(report.Rows), 6)
	gt.Equal(t, report.Rows[0].Result.Status, compliance.StatusOverdue)
	gt.Equal(t, report.Rows[1].Result.Status, compliance.StatusExpiring)
	gt.Equal(t, report.Rows[2].Result.Status, compliance.StatusValid)
	gt.Equal(t, report.Rows[3].Result.Status, compliance.StatusWaived)
	gt.Equal(t, report.Rows[4].Result.Status, compliance.StatusMissing)
	gt.Equal(t, report.Rows[5].Result.Status, compliance.StatusValid)
	gt.Equal(t, report.Counts, compliance.Counts{Overdue: 1, Expiring: 1, Valid: 2, Waived: 1, Missing: 1})
	gt.Equal(t, report.Summary.TopRisks[0].Key, "license")
}

func TestClassifyRowsOverrideWins(t *testing.T) {
	svc := compliance.NewService(nil, nil, time.UTC, 30, 5)
	asOf := date(2024, time.June, 1)
	report, err := svc.ClassifyRows(compliance.Options{AsOf: &asOf, Window: intPtr(0)}, []compliance.ClassifyRow{
		{Key: "B", ValidTo: datePtr(2024, time.June, 20), WarningWindowDays: intPtr(60)},
	}, 0)
	gt.NoError(t, err)
	gt.Equal(t, report.Rows[0].Result.Status, compliance.StatusValid)
}

func TestClassifyRowsRejectsBadInput(t *testing.T) {
	svc := compliance.NewService(nil, nil, time.UTC, 30, 5)

	_, err := svc.ClassifyRows(compliance.Options{Window: intPtr(-1)}, nil, 0)
	gt.True(t, errors.Is(err, compliance.ErrInvalidWarningWindow))

	_, err = svc.ClassifyRows(compliance.Options{}, []compliance.ClassifyRow{{Key: "X", WarningWindowDays: intPtr(-3)}}, 0)
	gt.True(t, errors.Is(err, compliance.ErrInvalidWarningWindow))

	_, err = svc.ClassifyRows(compliance.Options{}, []compliance.ClassifyRow{{Key: "X", Category: "tattoo"}}, 0)
	gt.True(t, errors.Is(err, compliance.ErrUnknownCategory))
}

func TestClassifyRowsEmptyIsValid(t *testing.T) {
	svc := compliance.NewService(nil, nil, time.UTC, 30, 5)
	report, err := svc.ClassifyRows(compliance.Options{}, nil, 0)
	gt.NoError(t, err)
	gt.Equal(t, report.Primary, compliance.StatusValid)
	gt.Equal(t, len(report.Rows), 0)
}
