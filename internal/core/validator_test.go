package core

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"riskwatch/internal/types"
)

func newTestValidator() *Validator {
	return NewValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type ingestShape struct {
	NeighborhoodID string `validate:"required,max=120"`
	CrimeCount     int    `validate:"min=0"`
	OperationType  string `validate:"operation"`
}

func TestValidateStruct_Valid(t *testing.T) {
	v := newTestValidator()
	err := v.ValidateStruct(ingestShape{
		NeighborhoodID: "centro",
		CrimeCount:     5,
		OperationType:  "patrol",
	})
	if err != nil {
		t.Errorf("expected valid struct, got %v", err)
	}
}

func TestValidateStruct_EmptyOperationAllowed(t *testing.T) {
	v := newTestValidator()
	if err := v.ValidateStruct(ingestShape{NeighborhoodID: "centro"}); err != nil {
		t.Errorf("empty operation type should pass, got %v", err)
	}
}

func TestValidateStruct_CollectsFieldDetails(t *testing.T) {
	v := newTestValidator()
	err := v.ValidateStruct(ingestShape{
		NeighborhoodID: "",
		CrimeCount:     -3,
		OperationType:  "airstrike",
	})
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationMissingField {
		t.Errorf("code = %q", appErr.Code)
	}
	if len(appErr.Details) != 3 {
		t.Errorf("details = %v, want 3 entries", appErr.Details)
	}
	if appErr.Details["neighborhood_id"] != "is required" {
		t.Errorf("neighborhood_id detail = %v", appErr.Details["neighborhood_id"])
	}
	if appErr.Details["crime_count"] != "must be at least 0" {
		t.Errorf("crime_count detail = %v", appErr.Details["crime_count"])
	}
	if appErr.Details["operation_type"] != "is not a recognized operation type" {
		t.Errorf("operation_type detail = %v", appErr.Details["operation_type"])
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	v := newTestValidator()
	err := v.ValidateStruct(42)
	if err == nil {
		t.Fatal("expected error for non-struct value")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("expected internal_unexpected_error, got %v", err)
	}
}

func TestToSnake(t *testing.T) {
	tests := []struct{ in, want string }{
		{"NeighborhoodID", "neighborhood_id"},
		{"Records[0].CrimeCount", "records[0].crime_count"},
		{"Horizon", "horizon"},
	}
	for _, tt := range tests {
		if got := toSnake(tt.in); got != tt.want {
			t.Errorf("toSnake(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
