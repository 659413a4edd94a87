package auth

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// issuedCount sums the issued-token counters.
func issuedCount(t *testing.T) float64 {
	t.Helper()
	return testutil.ToFloat64(tokensIssued.WithLabelValues(string(TokenAccess))) +
		testutil.ToFloat64(tokensIssued.WithLabelValues(string(TokenRefresh)))
}
