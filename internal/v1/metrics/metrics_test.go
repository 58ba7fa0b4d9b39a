package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTokensIssuedTotal(t *testing.T) {
	before := testutil.ToFloat64(TokensIssuedTotal)
	TokensIssuedTotal.Inc()
	after := testutil.ToFloat64(TokensIssuedTotal)

	if after != before+1 {
		t.Errorf("expected TokensIssuedTotal to increment by 1, got %v -> %v", before, after)
	}
}

func TestAuthenticateAttemptsTotal(t *testing.T) {
	AuthenticateAttemptsTotal.WithLabelValues("success").Inc()
	val := testutil.ToFloat64(AuthenticateAttemptsTotal.WithLabelValues("success"))
	if val < 1 {
		t.Errorf("expected AuthenticateAttemptsTotal success to be at least 1, got %v", val)
	}
}

func TestTokensEvictedTotal(t *testing.T) {
	TokensEvictedTotal.WithLabelValues("expired").Inc()
	val := testutil.ToFloat64(TokensEvictedTotal.WithLabelValues("expired"))
	if val < 1 {
		t.Errorf("expected TokensEvictedTotal expired to be at least 1, got %v", val)
	}
}

func TestStatesEvictedTotal(t *testing.T) {
	StatesEvictedTotal.WithLabelValues("pre_auth_expired").Inc()
	val := testutil.ToFloat64(StatesEvictedTotal.WithLabelValues("pre_auth_expired"))
	if val < 1 {
		t.Errorf("expected StatesEvictedTotal pre_auth_expired to be at least 1, got %v", val)
	}
}

func TestGaugesSettable(t *testing.T) {
	TokensLive.Set(3)
	if val := testutil.ToFloat64(TokensLive); val != 3 {
		t.Errorf("expected TokensLive to be 3, got %v", val)
	}

	StatesLive.Set(2)
	if val := testutil.ToFloat64(StatesLive); val != 2 {
		t.Errorf("expected StatesLive to be 2, got %v", val)
	}
}

func TestRedisOperationsTotal(t *testing.T) {
	RedisOperationsTotal.WithLabelValues("publish", "success").Inc()
	val := testutil.ToFloat64(RedisOperationsTotal.WithLabelValues("publish", "success"))
	if val < 1 {
		t.Errorf("expected RedisOperationsTotal to be at least 1, got %v", val)
	}
}

func TestRedisOperationDuration(t *testing.T) {
	RedisOperationDuration.WithLabelValues("publish").Observe(0.1)
	// No-panic is the main goal here; histogram assertions are brittle.
}
