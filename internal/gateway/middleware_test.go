package gateway

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func serve(h http.Handler, method, origin, reqID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/report", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if reqID != "" {
		req.Header.Set(headerRequestID, reqID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	serve(chain(okHandler, tag("outer"), tag("inner")), http.MethodGet, "", "")
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequestID(t *testing.T) {
	h := requestID(okHandler)
	assert.NotEmpty(t, serve(h, http.MethodGet, "", "").Header().Get(headerRequestID))
	assert.Equal(t, "trace-7", serve(h, http.MethodGet, "", "trace-7").Header().Get(headerRequestID))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"unconfigured denies", nil, "http://dash.local", ""},
		{"wildcard", []string{"*"}, "http://dash.local", "http://dash.local"},
		{"listed origin", []string{"http://dash.local"}, "http://dash.local", "http://dash.local"},
		{"unlisted origin", []string{"http://dash.local"}, "http://evil.local", ""},
		{"same origin", []string{"http://dash.local"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(cors(tt.allowed)(okHandler), http.MethodGet, tt.origin, "")
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSPreflightSkipsHandler(t *testing.T) {
	rr := serve(cors([]string{"*"})(okHandler), http.MethodOptions, "http://dash.local", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, headerGeneration, rr.Header().Get("Access-Control-Expose-Headers"))
}

func TestRecoverPanics(t *testing.T) {
	f := newFixture(t, "", nil)
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rr := serve(f.srv.recoverPanics(boom), http.MethodGet, "", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal error")
}

func TestRecoverPanicsRethrowsAbort(t *testing.T) {
	f := newFixture(t, "", nil)
	abort := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic(http.ErrAbortHandler) })

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(f.srv.recoverPanics(abort), http.MethodGet, "", "")
	})
}

func TestHandlerStampsGeneration(t *testing.T) {
	f := newFixture(t, "", nil)
	resp, _ := f.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, strconv.FormatUint(f.synth.Current().Seq, 10), resp.Header.Get(headerGeneration))
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}
