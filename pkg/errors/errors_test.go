package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "bechdel: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "bechdel: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 24, 23, 1)

	want := "bechdel: Predict: dimension mismatch on axis 1 (features). Expected 24, got 23"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("KNeighborsClassifier", "Predict")

	want := "bechdel: KNeighborsClassifier: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestPipelineErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{
			name:     "source unavailable",
			err:      NewSourceUnavailableError("bechdel", "/no/such.csv", fmt.Errorf("open: no such file")),
			sentinel: ErrSourceUnavailable,
			contains: "/no/such.csv",
		},
		{
			name:     "schema mismatch",
			err:      NewSchemaMismatchError("metadata", []string{"budget", "genres"}),
			sentinel: ErrSchemaMismatch,
			contains: "budget, genres",
		},
		{
			name:     "key coercion",
			err:      NewKeyCoercionError("imdb_id", "nm0001", 3),
			sentinel: ErrKeyCoercion,
			contains: "row 3",
		},
		{
			name:     "empty join",
			err:      NewEmptyJoinResultError("bechdel", "metadata", "imdb_id"),
			sentinel: ErrEmptyJoinResult,
			contains: "produced no rows",
		},
		{
			name:     "degenerate split",
			err:      NewDegenerateSplitError(1, 0.8, 1, 0),
			sentinel: ErrDegenerateSplit,
			contains: "0 test rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.sentinel) {
				t.Errorf("Is(%v, sentinel) = false", tt.err)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want it to contain %q", tt.err.Error(), tt.contains)
			}

			wrapped := Wrap(tt.err, "pipeline")
			if !Is(wrapped, tt.sentinel) {
				t.Error("sentinel should survive wrapping")
			}
		})
	}

	// 異なるカテゴリのセンチネルとは一致しない
	if Is(NewSchemaMismatchError("ratio", []string{"id"}), ErrKeyCoercion) {
		t.Error("schema mismatch must not match the key coercion sentinel")
	}
}

func TestKeyCoercionErrorWithoutRow(t *testing.T) {
	err := NewKeyCoercionError("imdb_id", "0120338", -1)
	want := `bechdel: cannot coerce "0120338" in column "imdb_id" to a numeric key`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var keyErr *KeyCoercionError
	if !As(err, &keyErr) {
		t.Fatal("Error should be castable to *KeyCoercionError")
	}
	if keyErr.Value != "0120338" {
		t.Errorf("Value = %q", keyErr.Value)
	}
}

func TestWarnUsesZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewDataQualityWarning("merge", "duplicate join keys", 2, "kept cross product"))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	want := "data quality issue in merge: duplicate join keys (2 rows, kept cross product)"
	if got[0].Error() != want {
		t.Errorf("warning = %q, want %q", got[0].Error(), want)
	}
}

func TestRecover(t *testing.T) {
	t.Run("panic becomes PanicError", func(t *testing.T) {
		err := SafeExecute("Design", func() error {
			panic("mat: index out of range")
		})

		var panicErr *PanicError
		if !As(err, &panicErr) {
			t.Fatalf("expected *PanicError, got %T", err)
		}
		if panicErr.Operation != "Design" {
			t.Errorf("Operation = %q", panicErr.Operation)
		}
		if !strings.Contains(panicErr.String(), "Stack trace") {
			t.Error("String() should include the stack trace")
		}
	})

	t.Run("existing error is wrapped", func(t *testing.T) {
		base := fmt.Errorf("fold 2 failed")
		err := func() (err error) {
			defer Recover(&err, "CrossValidate")
			err = base
			panic("boom")
		}()

		if !strings.Contains(err.Error(), "original error: fold 2 failed") {
			t.Errorf("unexpected error %q", err.Error())
		}
	})

	t.Run("no panic leaves error untouched", func(t *testing.T) {
		err := SafeExecute("noop", func() error { return nil })
		if err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

func TestNumericalHelpers(t *testing.T) {
	if err := CheckNumericalStability("loss", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	var zero float64
	err := CheckScalar("loss", 1/zero, 7)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected *NumericalInstabilityError, got %v", err)
	}
	if numErr.Iteration != 7 {
		t.Errorf("Iteration = %d", numErr.Iteration)
	}

	if ClipValue(5, 0, 3) != 3 || ClipValue(-1, 0, 3) != 0 {
		t.Error("ClipValue out of range")
	}
}
