package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matiasleandrokruk/solidstate/internal/domain/lab"
	"github.com/matiasleandrokruk/solidstate/internal/domain/presets"
	"github.com/matiasleandrokruk/solidstate/internal/infra/logger"
	"github.com/matiasleandrokruk/solidstate/internal/infra/metrics"
	pkgauth "github.com/matiasleandrokruk/solidstate/pkg/auth"
)

const poBody = `{"lattice":{"kind":"sc","a":3.0},"basis":[{"element":"Po","frac":[0,0,0]}]}`

func newTestRouter(t *testing.T, secret []byte, m *metrics.Metrics) http.Handler {
	t.Helper()
	catalog, err := presets.Default()
	if err != nil {
		t.Fatalf("presets.Default: %v", err)
	}
	return NewRouter(Deps{
		Engine:         lab.NewService(lab.Options{Metrics: m, Logger: logger.Discard()}),
		Presets:        catalog,
		Metrics:        m,
		Logger:         logger.Discard(),
		JWTSecret:      secret,
		RequestTimeout: 5 * time.Second,
	})
}

func serve(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouter_HealthEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil, nil)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := serve(router, method, "/api/health", `{}`, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s /api/health = %d; want 200", method, w.Code)
		}
		if strings.TrimSpace(w.Body.String()) != `{"ok":true}` {
			t.Errorf("body = %q", w.Body.String())
		}
	}
}

func TestNewRouter_ComputeRoutes(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil, nil)

	tests := []struct {
		path string
		body string
	}{
		{"/api/crystal/build", poBody},
		{"/api/tb/bands", `{"model":{"lattice":"2d_square","params":{"t":1}},"kpath":{"points":[{"label":"G","k":[0,0,0]},{"label":"M","k":[3.14,3.14,0]}]}}`},
		{"/api/diffraction/ewald", `{"crystal":{"B":[[1,0,0],[0,1,0],[0,0,1]],"gPoints":[],"gHKL":[]},"beam":{"lambda":1,"kInDir":[0,0,-1]},"detector":{"distance":5,"normal":[0,0,-1],"up":[0,1,0],"width":4,"height":4},"intensity":{"model":"structureFactorLite"}}`},
	}
	for _, tt := range tests {
		w := serve(router, http.MethodPost, tt.path, tt.body, "")
		if w.Code != http.StatusOK {
			t.Errorf("POST %s = %d; body %s", tt.path, w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"requestHash"`) {
			t.Errorf("POST %s: response lacks meta.requestHash", tt.path)
		}
	}
}

func TestNewRouter_WrongMethodAndUnknownRoute(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil, nil)

	if w := serve(router, http.MethodGet, "/api/crystal/build", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/crystal/build = %d; want 405", w.Code)
	}
	if w := serve(router, http.MethodGet, "/api/nope", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET /api/nope = %d; want 404", w.Code)
	}
}

func TestNewRouter_AuthWhenSecretConfigured(t *testing.T) {
	t.Parallel()
	secret := []byte("router-test-secret")
	router := newTestRouter(t, secret, nil)

	if w := serve(router, http.MethodPost, "/api/crystal/build", poBody, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d; want 401", w.Code)
	}
	if w := serve(router, http.MethodGet, "/api/presets/lattices", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("presets without token: %d; want 401", w.Code)
	}
	if w := serve(router, http.MethodGet, "/api/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("health must stay public: %d", w.Code)
	}

	token, err := pkgauth.GenerateJWT(secret, "tester", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if w := serve(router, http.MethodPost, "/api/crystal/build", poBody, token); w.Code != http.StatusOK {
		t.Errorf("valid token: %d; body %s", w.Code, w.Body.String())
	}
}

func TestNewRouter_MetricsAndVersion(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil, metrics.New())

	serve(router, http.MethodPost, "/api/crystal/build", poBody, "")

	w := serve(router, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`solidstate_compute_requests_total{op="crystal",status="ok"} 1`,
		`solidstate_http_requests_total{code="200",route="/api/crystal/build"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	if w := serve(router, http.MethodGet, "/version", "", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"version"`) {
		t.Errorf("/version = %d %s", w.Code, w.Body.String())
	}
}

func TestNewRouter_NoMetricsRouteWhenDisabled(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil, nil)

	if w := serve(router, http.MethodGet, "/metrics", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("/metrics = %d; want 404", w.Code)
	}
}
