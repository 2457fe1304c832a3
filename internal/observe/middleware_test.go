package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// serveAnalyze runs one request through the middleware in front of a mux
// with the analysis API's route shape.
func serveAnalyze(t *testing.T, m *Metrics, req *http.Request, status int) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	rec := httptest.NewRecorder()
	Middleware(m)(mux).ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_SetsCorrelationHeader(t *testing.T) {
	exporter := newTestTracer(t)
	m, _ := newTestMetrics(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	rec := serveAnalyze(t, m, req, http.StatusOK)

	cid := rec.Header().Get("X-Correlation-ID")
	if cid == "" {
		t.Fatal("X-Correlation-ID header missing")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded spans = %d, want 1", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != cid {
		t.Errorf("trace ID = %q, want the correlation ID %q", got, cid)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	exporter := newTestTracer(t)
	m, _ := newTestMetrics(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	serveAnalyze(t, m, req, http.StatusOK)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded spans = %d, want 1", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace ID = %q, want the client's trace continued", got)
	}
}

func TestMiddleware_SpanCarriesResponseStatus(t *testing.T) {
	exporter := newTestTracer(t)
	m, _ := newTestMetrics(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	serveAnalyze(t, m, req, http.StatusBadGateway)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded spans = %d, want 1", len(spans))
	}
	for _, attr := range spans[0].Attributes {
		if attr.Key == semconv.HTTPResponseStatusCodeKey {
			if attr.Value.AsInt64() != http.StatusBadGateway {
				t.Errorf("status attribute = %d, want 502", attr.Value.AsInt64())
			}
			return
		}
	}
	t.Error("span has no response status attribute")
}

func TestMiddleware_RecordsDurationByRoutePattern(t *testing.T) {
	newTestTracer(t)
	m, reader := newTestMetrics(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	serveAnalyze(t, m, req, http.StatusOK)

	rm := collect(t, reader)
	met := findMetric(rm, "voiceonstudio.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}

	want := attribute.NewSet(
		attribute.String("method", http.MethodPost),
		attribute.String("path", "POST /api/analyze"),
	)
	for _, dp := range hist.DataPoints {
		if dp.Attributes.Equals(&want) {
			if dp.Count != 1 {
				t.Errorf("sample count = %d, want 1", dp.Count)
			}
			return
		}
	}
	t.Errorf("no data point labelled with the mux pattern; got %+v", hist.DataPoints)
}

func TestMiddleware_UnmatchedPathFallsBackToRawPath(t *testing.T) {
	newTestTracer(t)
	m, reader := newTestMetrics(t)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	Middleware(m)(mux).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rm := collect(t, reader)
	met := findMetric(rm, "voiceonstudio.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])

	want := attribute.NewSet(
		attribute.String("method", http.MethodGet),
		attribute.String("path", "/no/such/route"),
	)
	for _, dp := range hist.DataPoints {
		if dp.Attributes.Equals(&want) {
			return
		}
	}
	t.Errorf("no data point labelled with the raw path; got %+v", hist.DataPoints)
}
