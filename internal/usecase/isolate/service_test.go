package isolate

import (
	"math"
	"testing"
	"unicode/utf8"
)

func TestIsolate_WrapsSelection(t *testing.T) {
	svc := New(0.7)

	got := svc.Isolate("what does this mean", "The quick brown fox.")
	if got.Text != "The quick brown fox." {
		t.Errorf("unexpected text: %q", got.Text)
	}
	if got.Length != utf8.RuneCountInString("The quick brown fox.") {
		t.Errorf("unexpected length: %d", got.Length)
	}
}

func TestIsolate_LengthCountsCharacters(t *testing.T) {
	svc := New(0.7)

	sel := "Être ou ne pas être, telle est la question."
	got := svc.Isolate("what does this mean", sel)
	if got.Length != utf8.RuneCountInString(sel) {
		t.Errorf("expected length %d, got %d", utf8.RuneCountInString(sel), got.Length)
	}
	if got.Length == len(sel) {
		t.Error("length must count characters, not bytes")
	}
}

func TestValidate_FullOverlap(t *testing.T) {
	svc := New(0.7)

	res := svc.Validate("quick brown fox", "the quick brown fox jumps")
	if res.OverlapPercentage != 1.0 {
		t.Errorf("expected overlap 1.0, got %f", res.OverlapPercentage)
	}
	if !res.IsIsolated {
		t.Error("expected answer to count as isolated")
	}
}

func TestValidate_EmptyResponseIsIsolated(t *testing.T) {
	svc := New(0.7)

	res := svc.Validate("", "some selection")
	if res.OverlapPercentage != 1.0 {
		t.Errorf("expected overlap 1.0 for empty response, got %f", res.OverlapPercentage)
	}
	if !res.IsIsolated {
		t.Error("expected empty response to count as isolated")
	}
}

func TestValidate_NoOverlap(t *testing.T) {
	svc := New(0.7)

	res := svc.Validate("alpha beta gamma", "delta epsilon")
	if res.OverlapPercentage != 0.0 {
		t.Errorf("expected overlap 0.0, got %f", res.OverlapPercentage)
	}
	if res.IsIsolated {
		t.Error("expected answer to count as leaked")
	}
}

func TestValidate_PartialOverlap(t *testing.T) {
	svc := New(0.7)

	// 3 of 4 unique response words inside the selection: overlap 0.75.
	res := svc.Validate("quick brown fox outside", "the quick brown fox")
	if math.Abs(res.OverlapPercentage-0.75) > 1e-9 {
		t.Errorf("expected overlap 0.75, got %f", res.OverlapPercentage)
	}
	if !res.IsIsolated {
		t.Error("expected 0.75 to clear the 0.7 threshold")
	}
}

func TestValidate_ThresholdIsStrict(t *testing.T) {
	// At exactly the threshold the answer is not isolated.
	svc := New(0.5)

	res := svc.Validate("inside outside", "inside")
	if math.Abs(res.OverlapPercentage-0.5) > 1e-9 {
		t.Errorf("expected overlap 0.5, got %f", res.OverlapPercentage)
	}
	if res.IsIsolated {
		t.Error("expected overlap equal to threshold to count as leaked")
	}
}

func TestValidate_CaseInsensitive(t *testing.T) {
	svc := New(0.7)

	res := svc.Validate("QUICK Brown", "quick brown")
	if res.OverlapPercentage != 1.0 {
		t.Errorf("expected case-insensitive match, got overlap %f", res.OverlapPercentage)
	}
}

func TestNew_DefaultsThreshold(t *testing.T) {
	svc := New(0)

	// Overlap 0.75 must clear the default 0.7 threshold.
	res := svc.Validate("a b c x", "a b c")
	if !res.IsIsolated {
		t.Errorf("expected default threshold %f to be applied", DefaultThreshold)
	}
}
