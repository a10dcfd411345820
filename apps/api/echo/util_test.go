package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/kadi/apps/api/echo"
	"github.com/trezcool/kadi/core"
	metricsvc "github.com/trezcool/kadi/services/metrics"
	"github.com/trezcool/kadi/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
}

func setup(t *testing.T, configure ...func(conf *core.Config)) (Server, *testutil.App) {
	t.Helper()
	return setupApp(t, testutil.NewApp(configure...))
}

func setupApp(t *testing.T, app *testutil.App) (Server, *testutil.App) {
	t.Helper()
	_, translator := core.NewValidator()
	srv := NewServer(&Options{
		TestMode:       true,
		DisableReqLogs: true,
		Logger:         testutil.NewLogger(app.Conf),
		Translator:     translator,
		MetricsHandler: metricsvc.NewPrometheusMetrics().Handler(),
		Roster:         app.Roster,
		Assessments:    app.Assessments,
		Reports:        app.Reports,
		Promotions:     app.Promotions,
		Fees:           app.Fees,
	})
	return srv, app
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

// do sends a request and decodes the JSON response into out (when not nil).
func do(t *testing.T, srv Server, method, path string, body interface{}, wantCode int, out interface{}) {
	t.Helper()
	var data []byte
	if body != nil {
		data = marshalObj(t, body)
	}
	req, rec := newRequest(method, path, data)
	srv.ServeHTTP(rec, req)
	require.Equal(t, wantCode, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}
