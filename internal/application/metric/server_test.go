package metric

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHealthReportsStats(t *testing.T) {
	t.Parallel()

	e := NewServer(func() (int, int) { return 2, 5 })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, healthResponse{Status: "ok", Rooms: 2, Participants: 5}, got)
}

func TestServerExposesCollectors(t *testing.T) {
	t.Parallel()

	RecordSignalingMessage("join")
	RecordRelayDropped("offer")

	e := NewServer(nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "signaling_messages_total")
	assert.Contains(t, body, "relay_dropped_total")
}
