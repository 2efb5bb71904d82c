package testkit

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apphttp "github.com/shashiranjanraj/storefront/pkg/http"
)

// HandlerFactory builds a fresh handler per scenario (fresh database,
// seeded per s.Fixture).
type HandlerFactory func(t *testing.T, s *Scenario) http.Handler

// Run executes a single scenario file against handler.
func Run(t *testing.T, handler http.Handler, scenarioPath string) {
	t.Helper()

	s, err := LoadScenario(scenarioPath)
	if err != nil {
		t.Fatalf("testkit: load scenario %q: %v", scenarioPath, err)
	}
	t.Run(s.Name, func(t *testing.T) {
		RunScenario(t, handler, s)
	})
}

// RunDir runs every scenario in dir against one shared handler.
func RunDir(t *testing.T, handler http.Handler, dir string) {
	t.Helper()
	RunDirWith(t, dir, func(*testing.T, *Scenario) http.Handler { return handler })
}

// RunDirWith runs every scenario in dir, each against the handler build
// returns for it. Unparseable files are reported as failures.
func RunDirWith(t *testing.T, dir string, build HandlerFactory) {
	t.Helper()

	scenarios, errs := LoadAllFromDir(dir)
	for _, err := range errs {
		t.Error(err)
	}
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			RunScenario(t, build(t, s), s)
		})
	}
}

// RunScenario fires s against handler and asserts status, body and mocks.
// It returns the recorder for follow-up assertions.
func RunScenario(t *testing.T, handler http.Handler, s *Scenario) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := s.RequestBytes()
	if err != nil {
		t.Fatalf("[%s] read request body: %v", s.Name, err)
	}
	var reqBody io.Reader
	if raw != nil {
		reqBody = bytes.NewReader(raw)
	}

	mt := NewMockTransport(s)
	original := apphttp.DefaultClient.Transport
	apphttp.DefaultClient.Transport = mt
	defer func() { apphttp.DefaultClient.Transport = original }()

	req := httptest.NewRequest(strings.ToUpper(s.RequestMethod), s.RequestURL, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	AssertStatusCode(t, s, rec.Code)

	expected, err := s.ExpectedBytes()
	if err != nil {
		t.Errorf("[%s] read expected body: %v", s.Name, err)
	} else if expected != nil {
		AssertJSONBody(t, s, expected, rec.Body.Bytes())
	}

	AssertMocksAllCalled(t, s, mt)
	return rec
}
