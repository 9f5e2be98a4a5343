package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	before := testutil.ToFloat64(CVFallbacks)
	CVFallbacks.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CVFallbacks))

	WizardTransitions.WithLabelValues("CV_UPLOAD", "DECISION").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "jobportal_cv_fallback_total")
	assert.Contains(t, string(body), `jobportal_wizard_transitions_total{from="CV_UPLOAD",to="DECISION"}`)
}
