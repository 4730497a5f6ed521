package tokens

import "testing"

func TestCountText(t *testing.T) {
	est, err := NewEstimator()
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}

	n, err := est.CountText("What are the KYC requirements for mobile money providers?")
	if err != nil {
		t.Fatalf("CountText failed: %v", err)
	}
	if n == 0 {
		t.Fatal("expected a non-zero token count")
	}
}

func TestCountTextEmpty(t *testing.T) {
	est, err := NewEstimator()
	if err != nil {
		t.Fatalf("failed to create estimator: %v", err)
	}

	n, err := est.CountText("")
	if err != nil {
		t.Fatalf("CountText failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", n)
	}
}
