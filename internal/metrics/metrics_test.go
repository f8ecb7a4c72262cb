package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/txgraph/rollingmedian/internal/stream"
)

const lines = `{"created_time": "2016-04-07T03:33:19Z", "target": "b", "actor": "a"}
{"created_time": "2016-04-07T03:33:29Z", "target": "c", "actor": "a"}
{"created_time": "2016-04-07T03:30:00Z", "target": "c", "actor": "a"}
garbage
`

func TestHandler_ExposesCounters(t *testing.T) {
	p := stream.New(60*time.Second, 0)
	if _, err := p.Run(context.Background(), strings.NewReader(lines)); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	rr := httptest.NewRecorder()
	Handler(p).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}

	want := map[string]float64{
		NameLines:        4,
		NameAccepted:     2,
		NameStale:        1,
		NameMalformed:    1,
		NameWindowLen:    2,
		NameParticipants: 3,
		NameMedian:       1,
		NameWindowLength: 60,
	}
	for name, v := range want {
		mf, ok := mfs[name]
		if !ok {
			t.Errorf("missing family %s", name)
			continue
		}
		m := mf.GetMetric()[0]
		got := m.GetCounter().GetValue() + m.GetGauge().GetValue()
		if got != v {
			t.Errorf("%s = %v, want %v", name, got, v)
		}
	}

	wm := time.Date(2016, 4, 7, 3, 33, 29, 0, time.UTC).Unix()
	if got := mfs[NameWatermark].GetMetric()[0].GetGauge().GetValue(); got != float64(wm) {
		t.Errorf("%s = %v, want %v", NameWatermark, got, wm)
	}
}

func TestFamilies_OmitsMedianWhenEmpty(t *testing.T) {
	for _, mf := range Families(stream.Stats{}) {
		if n := mf.GetName(); n == NameMedian || n == NameWatermark {
			t.Errorf("empty stats exposed %s", n)
		}
	}
}

func TestHandler_RejectsPost(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler(stream.New(0, 0)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}
