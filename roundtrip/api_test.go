package roundtrip

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/fidelity/compat"
	"github.com/hazyhaar/fidelity/kit"
	"github.com/hazyhaar/fidelity/probe"
	"github.com/hazyhaar/fidelity/store"
	"github.com/hazyhaar/fidelity/tolerance"

	_ "modernc.org/sqlite"
)

func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".docx")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(newService(t).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRequestContextCarriesRequestMetadata(t *testing.T) {
	// Handlers see the chi request id, the transport tag, and the caller's
	// address through the same context helpers the MCP path uses.
	var transport, reqID, remote string
	inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		transport = kit.GetTransport(r.Context())
		reqID = kit.GetRequestID(r.Context())
		remote = kit.GetRemoteAddr(r.Context())
	})
	h := middleware.RequestID(requestContext(inner))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if transport != "http" {
		t.Fatalf("transport = %q, want %q", transport, "http")
	}
	if reqID == "" {
		t.Fatal("request id not propagated")
	}
	if remote == "" {
		t.Fatal("remote address not propagated")
	}
}

func TestCompareEndpoint(t *testing.T) {
	srv := httptest.NewServer(newService(t).Routes())
	defer srv.Close()

	orig := mustDocx(t)
	conv := mustDocx(t, probe.WithAccent(1, "FF00FF"))
	body, ctype := multipartBody(t, map[string][]byte{"original": orig, "converted": conv}, nil)

	resp, err := http.Post(srv.URL+"/api/compare", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var res ComparisonResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.DocType != "word" || res.Tolerance == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Tolerance.Passed {
		t.Fatal("accent shift passed tolerance")
	}
}

func TestCompareEndpointMissingFile(t *testing.T) {
	srv := httptest.NewServer(newService(t).Routes())
	defer srv.Close()

	body, ctype := multipartBody(t, map[string][]byte{"original": mustDocx(t)}, nil)
	resp, err := http.Post(srv.URL+"/api/compare", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCompareEndpointUnknownProfile(t *testing.T) {
	srv := httptest.NewServer(newService(t).Routes())
	defer srv.Close()

	data := mustDocx(t)
	body, ctype := multipartBody(t,
		map[string][]byte{"original": data, "converted": data},
		map[string]string{"profile": "no-such"})
	resp, err := http.Post(srv.URL+"/api/compare", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMatrixEndpointPersistsRun(t *testing.T) {
	st := store.New(store.OpenMemory(t))
	srv := httptest.NewServer(newService(t, WithStore(st)).Routes())
	defer srv.Close()

	orig := mustDocx(t)
	body, ctype := multipartBody(t, map[string][]byte{
		"original":    orig,
		"libreoffice": mustDocx(t),
		"google-docs": mustDocx(t, probe.WithoutTheme()),
	}, map[string]string{"doc_name": "quarterly.docx"})

	resp, err := http.Post(srv.URL+"/api/matrix", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var report compat.CompatibilityReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if len(report.Platforms) != 2 {
		t.Fatalf("platforms = %d", len(report.Platforms))
	}

	runs, err := st.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].DocName != "quarterly.docx" {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Passed {
		t.Fatal("theme-stripping platform must fail the run")
	}
}

func TestCarriersEndpointZeroResult(t *testing.T) {
	srv := httptest.NewServer(newService(t).Routes())
	defer srv.Close()

	body, ctype := multipartBody(t, map[string][]byte{"document": []byte("garbage")}, nil)
	resp, err := http.Post(srv.URL+"/api/carriers", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	// Unparseable input is reported as zero carriers, not an error.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res struct {
		Carriers     []json.RawMessage `json:"carriers"`
		SurvivalRate float64           `json:"survival_rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if len(res.Carriers) != 0 || res.SurvivalRate != 0 {
		t.Fatalf("zero-result = %+v", res)
	}
}

func TestProfileEndpoints(t *testing.T) {
	srv := httptest.NewServer(newService(t).Routes())
	defer srv.Close()

	// List includes the built-ins.
	resp, err := http.Get(srv.URL + "/api/profiles")
	if err != nil {
		t.Fatal(err)
	}
	var profiles []tolerance.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(profiles) != 4 {
		t.Fatalf("profiles = %d, want 4 built-ins", len(profiles))
	}

	// Create a custom profile from a serialized record.
	record := `{"name": "brand-review", "level": "STRICT", "rules": [{"change_type": "COLOR_SHIFT", "max_absolute": 0, "description": "no color drift"}]}`
	resp, err = http.Post(srv.URL+"/api/profiles", "application/json", strings.NewReader(record))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	// Adjust its color budget.
	resp, err = http.Post(srv.URL+"/api/profiles/brand-review/adjust", "application/json",
		strings.NewReader(`{"change_type": "COLOR_SHIFT", "max_absolute": 2}`))
	if err != nil {
		t.Fatal(err)
	}
	var adjusted tolerance.Profile
	if err := json.NewDecoder(resp.Body).Decode(&adjusted); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("adjust status = %d", resp.StatusCode)
	}
	found := false
	for _, r := range adjusted.Rules {
		if r.ChangeType == tolerance.ColorShift && r.MaxAbsolute != nil && *r.MaxAbsolute == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("adjusted rules = %+v", adjusted.Rules)
	}

	// Out-of-range percentage is a config error.
	resp, err = http.Post(srv.URL+"/api/profiles/brand-review/adjust", "application/json",
		strings.NewReader(`{"change_type": "COLOR_SHIFT", "max_percentage": 150}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid adjust status = %d, want 400", resp.StatusCode)
	}

	// Built-ins are protected from deletion.
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/profiles/strict", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("delete builtin status = %d, want 400", resp.StatusCode)
	}

	// Custom profiles delete cleanly.
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/profiles/brand-review", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
}

func TestRunEndpoints(t *testing.T) {
	st := store.New(store.OpenMemory(t))
	svc := newService(t, WithStore(st))
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	// Seed one run through the service path.
	report, err := svc.RunMatrix(t.Context(), mustDocx(t), map[string][]byte{"clean": mustDocx(t)}, "")
	if err != nil {
		t.Fatal(err)
	}
	id, err := svc.SaveRun("seed.docx", report)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/runs")
	if err != nil {
		t.Fatal(err)
	}
	var runs []store.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(runs) != 1 || runs[0].DocName != "seed.docx" {
		t.Fatalf("runs = %+v", runs)
	}

	resp, err = http.Get(srv.URL + "/api/runs/" + strconv.FormatInt(id, 10))
	if err != nil {
		t.Fatal(err)
	}
	var run store.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if run.Report == nil || len(run.Report.Platforms) != 1 {
		t.Fatalf("run report = %+v", run.Report)
	}

	resp, err = http.Get(srv.URL + "/api/runs/99999")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing run status = %d, want 404", resp.StatusCode)
	}
}

func TestRunEndpointsWithoutStore(t *testing.T) {
	srv := httptest.NewServer(newService(t).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}
