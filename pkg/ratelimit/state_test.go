package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name        string
		remain      string
		reset       string
		wantNil     bool
		wantRemain  int
		wantHealthy bool
		wantErr     bool
	}{
		{name: "healthy", remain: "100", reset: "60", wantRemain: 100, wantHealthy: true},
		{name: "at healthy threshold", remain: "50", reset: "60", wantRemain: 50, wantHealthy: true},
		{name: "warning", remain: "15", reset: "30", wantRemain: 15},
		{name: "critical", remain: "3", reset: "45", wantRemain: 3},
		{name: "no quota headers", wantNil: true},
		{name: "reset without remaining", reset: "60", wantNil: true},
		{name: "invalid remaining", remain: "lots", reset: "60", wantErr: true},
		{name: "invalid reset", remain: "100", reset: "soon", wantErr: true},
		{name: "missing reset", remain: "100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.remain != "" {
				headers.Set(HeaderRemaining, tt.remain)
			}
			if tt.reset != "" {
				headers.Set(HeaderReset, tt.reset)
			}

			state, err := ParseHeaders(headers)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseHeaders() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHeaders() error = %v", err)
			}
			if tt.wantNil {
				if state != nil {
					t.Errorf("ParseHeaders() = %+v, want nil", state)
				}
				return
			}
			if state.Remaining != tt.wantRemain {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemain)
			}
			if state.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.wantHealthy)
			}
			if state.TimeUntilReset() <= 0 {
				t.Errorf("TimeUntilReset() = %v, want > 0", state.TimeUntilReset())
			}
		})
	}
}

func TestDefaultState(t *testing.T) {
	state := DefaultState()
	if !state.IsHealthy {
		t.Error("DefaultState() should be healthy")
	}
	if state.NeedsCriticalBlock() || state.NeedsThrottling() {
		t.Error("DefaultState() should neither block nor throttle")
	}
}

func TestQuotaState_IsStale(t *testing.T) {
	tests := []struct {
		name       string
		lastUpdate time.Time
		maxAge     time.Duration
		expected   bool
	}{
		{name: "fresh state", lastUpdate: time.Now(), maxAge: 5 * time.Minute, expected: false},
		{name: "stale state", lastUpdate: time.Now().Add(-10 * time.Minute), maxAge: 5 * time.Minute, expected: true},
		{name: "just under max age", lastUpdate: time.Now().Add(-4 * time.Minute), maxAge: 5 * time.Minute, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &QuotaState{LastUpdate: tt.lastUpdate}
			if got := state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQuotaState_Decisions(t *testing.T) {
	tests := []struct {
		name          string
		remaining     int
		wantBlock     bool
		wantThrottle  bool
		wantIsHealthy bool
	}{
		{name: "plenty left", remaining: 100, wantIsHealthy: true},
		{name: "at healthy threshold", remaining: QuotaThresholdHealthy, wantIsHealthy: true},
		{name: "between warning and healthy", remaining: 30},
		{name: "at warning threshold", remaining: QuotaThresholdWarning},
		{name: "below warning", remaining: 15, wantThrottle: true},
		{name: "at critical threshold", remaining: QuotaThresholdCritical, wantThrottle: true},
		{name: "below critical", remaining: 3, wantBlock: true},
		{name: "nothing left", remaining: 0, wantBlock: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &QuotaState{
				Remaining:  tt.remaining,
				ResetAt:    time.Now().Add(time.Minute),
				LastUpdate: time.Now(),
			}
			state.UpdateHealth()

			if got := state.NeedsCriticalBlock(); got != tt.wantBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v (remaining=%d)", got, tt.wantBlock, tt.remaining)
			}
			if got := state.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v (remaining=%d)", got, tt.wantThrottle, tt.remaining)
			}
			if state.IsHealthy != tt.wantIsHealthy {
				t.Errorf("IsHealthy = %v, want %v (remaining=%d)", state.IsHealthy, tt.wantIsHealthy, tt.remaining)
			}
		})
	}
}

func TestQuotaState_TimeUntilReset(t *testing.T) {
	past := &QuotaState{ResetAt: time.Now().Add(-time.Minute)}
	if got := past.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset", got)
	}

	future := &QuotaState{ResetAt: time.Now().Add(30 * time.Second)}
	got := future.TimeUntilReset()
	if got < 29*time.Second || got > 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want about 30s", got)
	}
}

func TestThresholdConstants(t *testing.T) {
	if QuotaThresholdCritical >= QuotaThresholdWarning {
		t.Errorf("QuotaThresholdCritical (%d) must be less than QuotaThresholdWarning (%d)",
			QuotaThresholdCritical, QuotaThresholdWarning)
	}
	if QuotaThresholdWarning >= QuotaThresholdHealthy {
		t.Errorf("QuotaThresholdWarning (%d) must be less than QuotaThresholdHealthy (%d)",
			QuotaThresholdWarning, QuotaThresholdHealthy)
	}
}
