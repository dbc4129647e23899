package ledger

import (
	"errors"
	"testing"
)

func TestNewUserID(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   string
		wantErr error
		wantVal string
	}{
		{name: "valid", input: " user-123 ", wantVal: "user-123"},
		{name: "empty", input: "   ", wantErr: ErrInvalidUserID},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := NewUserID(tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.String() != tc.wantVal {
				t.Fatalf("expected %q, got %q", tc.wantVal, result.String())
			}
		})
	}
}

func TestNewCurrencyKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   string
		wantErr error
		wantVal string
	}{
		{name: "normalized", input: " Lax_Credits ", wantVal: "lax_credits"},
		{name: "empty", input: "", wantErr: ErrInvalidCurrencyKey},
		{name: "inner space", input: "lax credits", wantErr: ErrInvalidCurrencyKey},
		{name: "delimiter", input: "lax:credits", wantErr: ErrInvalidCurrencyKey},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := NewCurrencyKey(tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.String() != tc.wantVal {
				t.Fatalf("expected %q, got %q", tc.wantVal, result.String())
			}
		})
	}
}

func TestIdentifierConstructorsRejectBlank(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		build   func(string) error
		wantErr error
	}{
		{name: "entry", build: func(raw string) error { _, err := NewEntryID(raw); return err }, wantErr: ErrInvalidEntryID},
		{name: "idempotency", build: func(raw string) error { _, err := NewIdempotencyKey(raw); return err }, wantErr: ErrInvalidIdempotencyKey},
		{name: "drill", build: func(raw string) error { _, err := NewDrillID(raw); return err }, wantErr: ErrInvalidDrillID},
		{name: "series", build: func(raw string) error { _, err := NewSeriesID(raw); return err }, wantErr: ErrInvalidSeriesID},
		{name: "actor", build: func(raw string) error { _, err := NewActorID(raw); return err }, wantErr: ErrInvalidActorID},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := tc.build("  "); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if err := tc.build("value"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewDelta(t *testing.T) {
	t.Parallel()
	_, err := NewDelta(0)
	if !errors.Is(err, ErrZeroDelta) {
		t.Fatalf("expected ErrZeroDelta, got %v", err)
	}
	value, err := NewDelta(-15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.Int64() != -15 {
		t.Fatalf("expected -15, got %d", value)
	}
}

func TestNewBadgeID(t *testing.T) {
	t.Parallel()
	if _, err := NewBadgeID(0); !errors.Is(err, ErrInvalidBadgeID) {
		t.Fatalf("expected ErrInvalidBadgeID, got %v", err)
	}
	value, err := NewBadgeID(7)
	if err != nil || value.Int64() != 7 {
		t.Fatalf("expected badge 7, got %d (%v)", value, err)
	}
}

func TestNewMetadataJSON(t *testing.T) {
	t.Parallel()
	meta, err := NewMetadataJSON("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.String() != "{}" {
		t.Fatalf("expected default metadata to be '{}', got %q", meta.String())
	}
	_, err = NewMetadataJSON("not-json")
	if !errors.Is(err, ErrInvalidMetadataJSON) {
		t.Fatalf("expected ErrInvalidMetadataJSON, got %v", err)
	}
	_, err = NewMetadataJSON("[1,2]")
	if !errors.Is(err, ErrInvalidMetadataJSON) {
		t.Fatalf("expected arrays to be rejected, got %v", err)
	}
	if got := MetadataFromMap(map[string]string{"drill_id": "d1"}).String(); got != `{"drill_id":"d1"}` {
		t.Fatalf("unexpected encoded metadata %q", got)
	}
}

func TestDeriveIdempotencyKey(t *testing.T) {
	t.Parallel()
	currency, err := NewCurrencyKey("lax_credits")
	if err != nil {
		t.Fatalf("currency: %v", err)
	}
	key, err := deriveIdempotencyKey(SourceDrillCompletion, "event-9", currency)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if key.String() != "drill_completion:event-9:lax_credits" {
		t.Fatalf("unexpected key %q", key.String())
	}
}

func TestParseEventKind(t *testing.T) {
	t.Parallel()
	kind, err := ParseEventKind("completion")
	if err != nil || kind != EventCompletion {
		t.Fatalf("expected completion, got %q (%v)", kind, err)
	}
	if _, err := ParseEventKind("refund"); !errors.Is(err, ErrInvalidEventKind) {
		t.Fatalf("expected ErrInvalidEventKind, got %v", err)
	}
}

func TestParseSourceType(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"drill_completion", "manual_credit", "badge_award"} {
		if _, err := ParseSourceType(raw); err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
	}
	if _, err := ParseSourceType("refund"); !errors.Is(err, ErrInvalidSourceType) {
		t.Fatalf("expected ErrInvalidSourceType, got %v", err)
	}
}
