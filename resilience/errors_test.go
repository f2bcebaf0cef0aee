package resilience

import (
	"errors"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	sentinels := map[string]error{
		"ErrCircuitOpen":        ErrCircuitOpen,
		"ErrMaxRetriesExceeded": ErrMaxRetriesExceeded,
		"ErrRateLimitExceeded":  ErrRateLimitExceeded,
		"ErrTimeout":            ErrTimeout,
	}

	for name, err := range sentinels {
		t.Run(name, func(t *testing.T) {
			if !strings.HasPrefix(err.Error(), "resilience: ") {
				t.Errorf("%s message = %q, want resilience: prefix", name, err.Error())
			}
			for other, otherErr := range sentinels {
				if other != name && errors.Is(err, otherErr) {
					t.Errorf("%s matches %s", name, other)
				}
			}
		})
	}
}
