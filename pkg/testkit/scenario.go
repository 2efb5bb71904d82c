// Package testkit drives HTTP API tests from JSON scenario files and gives
// tests a migrated in-memory database.
//
// Each scenario describes:
//   - The request to fire (method, URL, headers, inline body or body file)
//   - The expected status code
//   - The expected response body (exact, or a subset of the actual body)
//   - Mocks for outgoing calls made through pkg/http
//
// Scenario files live next to the *_test.go files:
//
//	testdata/
//	  place_order_insufficient.json
//	  place_order_insufficient_res.json
//
//	func TestAPI(t *testing.T) {
//	    testkit.RunDirWith(t, "testdata", func(t *testing.T, s *testkit.Scenario) http.Handler {
//	        return newHandler(t, s.Fixture)
//	    })
//	}
package testkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Match modes for the response body.
const (
	MatchExact  = "exact"
	MatchSubset = "subset"
)

// Scenario describes a single API test case loaded from a JSON file.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Fixture names the data set the handler factory should seed.
	Fixture string `json:"fixture"`

	RequestMethod   string            `json:"requestMethod"`
	RequestURL      string            `json:"requestUrl"`
	RequestBody     json.RawMessage   `json:"requestBody"`
	RequestFileName string            `json:"requestFileName"`
	Headers         map[string]string `json:"headers"`

	ExpectedCode     int             `json:"expectedCode"`
	ResponseBody     json.RawMessage `json:"responseBody"`
	ResponseFileName string          `json:"responseFileName"`
	// ResponseMatch is "exact" (default) or "subset": every key in the
	// expected body must be present and equal; extra keys are ignored.
	ResponseMatch string `json:"responseMatch"`

	// IsMockRequired fails any outgoing call that no mock matches.
	IsMockRequired bool       `json:"isMockRequired"`
	HTTPMocks      []HTTPMock `json:"httpMocks"`

	dir string
}

// HTTPMock intercepts one outgoing call made through pkg/http.
type HTTPMock struct {
	// MatchMethod is optional; MatchURL is a prefix ("" matches anything).
	MatchMethod string         `json:"matchMethod"`
	MatchURL    string         `json:"matchUrl"`
	ReturnData  MockReturnData `json:"returnData"`
}

// MockReturnData is the synthetic response for a mock.
type MockReturnData struct {
	StatusCode int `json:"statusCode"`
	// BodyJSON is returned verbatim; Body is base64 for non-JSON payloads.
	BodyJSON json.RawMessage `json:"bodyJson"`
	Body     string          `json:"body"`
}

// LoadScenario reads and validates a scenario from a JSON file.
func LoadScenario(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}
	s.dir = filepath.Dir(abs)

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.RequestURL == "" {
		return errors.New("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		return errors.New("expectedCode is required")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = "GET"
	}
	switch s.ResponseMatch {
	case "":
		s.ResponseMatch = MatchExact
	case MatchExact, MatchSubset:
	default:
		return fmt.Errorf("responseMatch %q must be %q or %q", s.ResponseMatch, MatchExact, MatchSubset)
	}
	if len(s.RequestBody) > 0 && s.RequestFileName != "" {
		return errors.New("set requestBody or requestFileName, not both")
	}
	return nil
}

// RequestBytes returns the request body, inline or from requestFileName.
func (s *Scenario) RequestBytes() ([]byte, error) {
	if len(s.RequestBody) > 0 {
		return s.RequestBody, nil
	}
	return s.readRelative(s.RequestFileName)
}

// ExpectedBytes returns the expected response body, or nil when unset.
func (s *Scenario) ExpectedBytes() ([]byte, error) {
	if len(s.ResponseBody) > 0 {
		return s.ResponseBody, nil
	}
	return s.readRelative(s.ResponseFileName)
}

func (s *Scenario) readRelative(name string) ([]byte, error) {
	if name == "" {
		return nil, nil
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(s.dir, name)
	}
	return os.ReadFile(name)
}

// LoadAllFromDir loads every scenario in dir, skipping files whose name ends
// in _req.json or _res.json (body files).
func LoadAllFromDir(dir string) ([]*Scenario, []error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(entries) == 0 {
		return nil, []error{fmt.Errorf("testkit: no scenario files found in %q", dir)}
	}
	sort.Strings(entries)

	var (
		scenarios []*Scenario
		errs      []error
	)
	for _, path := range entries {
		if isBodyFile(path) {
			continue
		}
		s, err := LoadScenario(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, errs
}

func isBodyFile(path string) bool {
	base := filepath.Base(path)
	n := len(base)
	return n > 9 && (base[n-9:] == "_req.json" || base[n-9:] == "_res.json")
}
