package ledger

import (
	"errors"
	"testing"
)

const (
	operationName    = "ledger"
	subjectName      = "entry"
	codeName         = "invalid"
	baseErrorMessage = "base error"
)

func TestOperationErrorFormatting(test *testing.T) {
	test.Parallel()
	baseError := errors.New(baseErrorMessage)
	wrappedError := WrapError(operationName, subjectName, codeName, baseError)
	if wrappedError == nil {
		test.Fatalf("expected wrapped error")
	}
	expected := operationName + "." + subjectName + "." + codeName + ": " + baseErrorMessage
	if wrappedError.Error() != expected {
		test.Fatalf("expected %q, got %q", expected, wrappedError.Error())
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError(operationName, subjectName, codeName, nil) != nil {
		test.Fatalf("expected nil wrapped error")
	}
}

func TestIsRetriable(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unavailable", err: WrapError("store", "entry", "timeout", ErrUnavailable), want: true},
		{name: "constraint", err: WrapError("store", "entry", "unique", ErrConstraintViolation), want: true},
		{name: "invalid currency", err: ErrInvalidCurrency, want: false},
		{name: "catalog", err: catalogError("badge", "cycle", "cycle"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := IsRetriable(testCase.err); got != testCase.want {
				test.Fatalf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}

func TestCatalogErrorKeepsSentinel(test *testing.T) {
	test.Parallel()
	err := catalogError("badge", "prerequisite", "badge %d references unknown prerequisite %d", 3, 9)
	if !errors.Is(err, ErrCatalogInconsistent) {
		test.Fatalf("expected ErrCatalogInconsistent, got %v", err)
	}
	var operationError OperationError
	if !errors.As(err, &operationError) || operationError.Code() != "prerequisite" || operationError.Subject() != "badge" {
		test.Fatalf("unexpected operation error: %v", err)
	}
}
