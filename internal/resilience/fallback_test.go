package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	fg := NewFallbackGroup("whisper-base", "whisper-base", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisper-tiny", "whisper-tiny")

	var model string
	err := fg.Execute(func(m string) error {
		model = m
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "whisper-base" {
		t.Fatalf("model = %q, want whisper-base", model)
	}
}

func TestFallbackGroup_PrimaryFailFallbackSuccess(t *testing.T) {
	fg := NewFallbackGroup("whisper-base", "whisper-base", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisper-tiny", "whisper-tiny")

	var model string
	err := fg.Execute(func(m string) error {
		if m == "whisper-base" {
			return errModelGone
		}
		model = m
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "whisper-tiny" {
		t.Fatalf("model = %q, want whisper-tiny", model)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := NewFallbackGroup("whisper-base", "whisper-base", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisper-tiny", "whisper-tiny")

	err := fg.Execute(func(m string) error {
		return errModelGone
	})
	if err == nil {
		t.Fatal("expected error when every backend fails")
	}
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_CircuitBreakerSkipsOpenBackend(t *testing.T) {
	fg := NewFallbackGroup("whisper-base", "whisper-base", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})
	fg.AddFallback("whisper-tiny", "whisper-tiny")

	// Fail the primary enough to open its breaker.
	for i := 0; i < 2; i++ {
		_ = fg.Execute(func(m string) error {
			if m == "whisper-base" {
				return errModelGone
			}
			return nil
		})
	}

	// The primary's breaker is open now, so calls must go straight to the
	// fallback model.
	var model string
	err := fg.Execute(func(m string) error {
		model = m
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "whisper-tiny" {
		t.Fatalf("model = %q, want whisper-tiny (primary circuit should be open)", model)
	}
}

func TestExecuteWithResult_Success(t *testing.T) {
	fg := NewFallbackGroup("whisper-base", "whisper-base", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisper-tiny", "whisper-tiny")

	transcript, err := ExecuteWithResult(fg, func(m string) (string, error) {
		if m == "whisper-base" {
			return "bonjour le monde", nil
		}
		return "bonjour", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "bonjour le monde" {
		t.Fatalf("transcript = %q, want the primary's transcript", transcript)
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	fg := NewFallbackGroup("whisper-base", "whisper-base", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisper-tiny", "whisper-tiny")

	transcript, err := ExecuteWithResult(fg, func(m string) (string, error) {
		if m == "whisper-base" {
			return "", errModelGone
		}
		return "bonjour", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "bonjour" {
		t.Fatalf("transcript = %q, want the fallback's transcript", transcript)
	}
}

func TestExecuteWithResult_AllFail(t *testing.T) {
	fg := NewFallbackGroup("whisper-base", "whisper-base", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	_, err := ExecuteWithResult(fg, func(m string) (string, error) {
		return "", errModelGone
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
