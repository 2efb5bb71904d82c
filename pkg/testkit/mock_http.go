package testkit

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockTransport implements http.RoundTripper. It matches outgoing requests
// against a scenario's httpMocks and answers with synthetic responses.
//
//	mt := testkit.NewMockTransport(scenario)
//	apphttp.DefaultClient.Transport = mt
//	defer apphttp.ResetTransport()
type MockTransport struct {
	mu      sync.Mutex
	mocks   []httpMockEntry
	require bool
	calls   []*http.Request
}

type httpMockEntry struct {
	mock      HTTPMock
	callCount int
}

// NewMockTransport builds a MockTransport from s.HTTPMocks.
func NewMockTransport(s *Scenario) *MockTransport {
	mt := &MockTransport{require: s.IsMockRequired}
	for _, m := range s.HTTPMocks {
		mt.mocks = append(mt.mocks, httpMockEntry{mock: m})
	}
	return mt
}

// RoundTrip returns the first matching mock's response.
func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.calls = append(mt.calls, req)

	for i := range mt.mocks {
		entry := &mt.mocks[i]
		if entry.mock.MatchMethod != "" && !strings.EqualFold(entry.mock.MatchMethod, req.Method) {
			continue
		}
		if !urlMatches(req.URL.String(), entry.mock.MatchURL) {
			continue
		}
		entry.callCount++
		return buildHTTPResponse(req, entry.mock.ReturnData)
	}

	if mt.require {
		return nil, fmt.Errorf("testkit: unexpected outgoing HTTP call to %s %s: no matching mock", req.Method, req.URL)
	}

	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader(`{"error":"no mock configured"}`)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Calls returns every request seen so far, in order.
func (mt *MockTransport) Calls() []*http.Request {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]*http.Request(nil), mt.calls...)
}

// AssertAllCalled returns an error for every mock that never matched.
func (mt *MockTransport) AssertAllCalled() []error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var errs []error
	for _, e := range mt.mocks {
		if e.callCount == 0 {
			errs = append(errs, fmt.Errorf("testkit: mock %s %q was never called", e.mock.MatchMethod, e.mock.MatchURL))
		}
	}
	return errs
}

func urlMatches(candidate, pattern string) bool {
	return pattern == "" || strings.HasPrefix(candidate, pattern)
}

func buildHTTPResponse(req *http.Request, rd MockReturnData) (*http.Response, error) {
	code := rd.StatusCode
	if code == 0 {
		code = http.StatusOK
	}

	var body []byte
	switch {
	case len(rd.BodyJSON) > 0:
		body = rd.BodyJSON
	case rd.Body != "":
		decoded, err := base64.StdEncoding.DecodeString(rd.Body)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(rd.Body)
			if err != nil {
				return nil, fmt.Errorf("testkit: base64 decode mock body: %w", err)
			}
		}
		body = decoded
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, nil
}
