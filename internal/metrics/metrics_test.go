package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, 0.0, Tokens(sdkmath.Int{}))
	assert.Equal(t, 1.5, Tokens(sdkmath.NewIntWithDecimal(15, 17)))
	assert.Equal(t, 100.0, Tokens(sdkmath.NewIntWithDecimal(1, 20)))
}

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("deposit", "error"))
	RecordOperation("deposit", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("deposit", "error")))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Middleware)
	r.HandleFunc("/api/pools/{pid}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/pools/{pid}", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pools/3", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/pools/{pid}", "418")))
}
