package storage

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

func TestFormatReference(t *testing.T) {
	cases := map[int64]string{1: "APT00001", 42: "APT00042", 123456: "APT123456"}
	for n, want := range cases {
		if got := FormatReference(n); got != want {
			t.Fatalf("FormatReference(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestNotFoundMapping(t *testing.T) {
	if !errors.Is(notFound(pgx.ErrNoRows), model.ErrNotFound) {
		t.Fatalf("no rows should map to ErrNotFound")
	}
	other := errors.New("boom")
	if notFound(other) != other {
		t.Fatalf("other errors pass through")
	}
	if notFound(nil) != nil {
		t.Fatalf("nil stays nil")
	}
}

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *float64:
			*p = r.values[i].(float64)
		case *bool:
			*p = r.values[i].(bool)
		}
	}
	return nil
}

func TestScanAppointmentConvertsEnums(t *testing.T) {
	row := fakeRow{values: []any{
		"id-1", "APT00001", "cust", "tech-a", "",
		nil, 1.5, "confirmed", "high", "desc", "site", "api",
		true, true, false, false, true,
		"weather", "", nil, nil, nil,
	}}
	a, err := scanAppointment(row)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if a.Status != model.StatusConfirmed || a.Priority != model.PriorityHigh || a.CreatedVia != model.CreatedViaAPI || a.CancelReason != model.ReasonWeather {
		t.Fatalf("appointment = %+v", a)
	}
	if a.DurationHours != 1.5 || !a.Active {
		t.Fatalf("appointment = %+v", a)
	}
}
