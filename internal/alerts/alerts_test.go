package alerts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/txgraph/rollingmedian/internal/config"
	"github.com/txgraph/rollingmedian/pkg/types"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func emission(seq uint64, median float64, participants int) types.Emission {
	return types.Emission{Seq: seq, Median: median, Participants: participants, WindowLen: participants / 2}
}

// newTestEngine returns an Engine with a controllable clock and a recording
// delivery function.
func newTestEngine(rules ...config.AlertRule) (*Engine, *time.Time, *[]Alert) {
	e := New(config.AlertsConfig{Rules: rules})
	now := baseTime
	e.now = func() time.Time { return now }

	var mu sync.Mutex
	var delivered []Alert
	e.deliver = func(a *Alert) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, *a)
	}
	return e, &now, &delivered
}

func TestEvalCondition(t *testing.T) {
	em := emission(1, 2.5, 10)
	tests := []struct {
		cond      string
		wantFire  bool
		wantValue float64
	}{
		{"median > 2", true, 2.5},
		{"median >= 2.5", true, 2.5},
		{"median < 2", false, 2.5},
		{"median == 2.5", true, 2.5},
		{"participants <= 10", true, 10},
		{"window_transactions < 5", false, 5},
		{"unknown > 1", false, 0},
		{"median >", false, 0},
		{"median ~ 1", false, 2.5},
		{"median > abc", false, 0},
	}
	for _, tc := range tests {
		fires, v := evalCondition(tc.cond, em)
		if fires != tc.wantFire || v != tc.wantValue {
			t.Errorf("evalCondition(%q) = (%v, %v), want (%v, %v)", tc.cond, fires, v, tc.wantFire, tc.wantValue)
		}
	}
}

func TestEngine_FireAndResolve(t *testing.T) {
	e, now, delivered := newTestEngine(config.AlertRule{Name: "hot", Condition: "median > 2", Severity: "critical"})

	e.Evaluate(emission(1, 1, 4))
	if n := len(e.Active()); n != 0 {
		t.Fatalf("Active after quiet emission = %d, want 0", n)
	}

	e.Evaluate(emission(2, 3, 4))
	active := e.Active()
	if len(active) != 1 || active[0].State != StateFiring || active[0].Seq != 2 {
		t.Fatalf("Active after firing = %+v, want one firing alert at seq 2", active)
	}
	if _, err := uuid.Parse(active[0].ID); err != nil {
		t.Errorf("alert ID %q is not a UUID: %v", active[0].ID, err)
	}

	// Still above threshold: no duplicate alert.
	e.Evaluate(emission(3, 4, 4))
	if n := len(e.Active()); n != 1 {
		t.Errorf("Active while still firing = %d, want 1", n)
	}

	*now = now.Add(time.Minute)
	e.Evaluate(emission(4, 1.5, 4))
	active = e.Active()
	if len(active) != 1 || active[0].State != StateResolved {
		t.Fatalf("Active after resolve = %+v, want one resolved alert", active)
	}
	if active[0].Seq != 4 || active[0].Median != 1.5 {
		t.Errorf("resolved alert seq/median = %d/%v, want 4/1.5", active[0].Seq, active[0].Median)
	}

	e.Wait()
	if len(*delivered) != 2 {
		t.Errorf("deliveries = %d, want 2 (fire + resolve)", len(*delivered))
	}
}

func TestEngine_Cooldown(t *testing.T) {
	e, now, _ := newTestEngine(config.AlertRule{Name: "hot", Condition: "median > 2", Cooldown: 10 * time.Minute})

	e.Evaluate(emission(1, 3, 4))
	e.Evaluate(emission(2, 1, 4)) // resolve

	*now = now.Add(5 * time.Minute)
	e.Evaluate(emission(3, 3, 4))
	for _, a := range e.Active() {
		if a.State == StateFiring {
			t.Fatal("alert re-fired inside cooldown")
		}
	}

	*now = now.Add(6 * time.Minute)
	e.Evaluate(emission(4, 3, 4))
	firing := 0
	for _, a := range e.Active() {
		if a.State == StateFiring {
			firing++
		}
	}
	if firing != 1 {
		t.Errorf("firing after cooldown = %d, want 1", firing)
	}
	e.Wait()
}

func TestEngine_NoRulesIsNoop(t *testing.T) {
	e := New(config.AlertsConfig{})
	e.Evaluate(emission(1, 100, 4))
	if n := len(e.Active()); n != 0 {
		t.Errorf("Active = %d, want 0", n)
	}
}

func TestEngine_SetRulesDropsRemoved(t *testing.T) {
	e, _, _ := newTestEngine(config.AlertRule{Name: "hot", Condition: "median > 2"})
	e.Evaluate(emission(1, 3, 4))
	e.SetRules(config.AlertsConfig{Rules: []config.AlertRule{{Name: "crowded", Condition: "participants > 100"}}})

	if n := len(e.Active()); n != 0 {
		t.Errorf("Active after rule removal = %d, want 0", n)
	}
	e.Wait()
}

func TestWebhook_HTTPDelivery(t *testing.T) {
	var mu sync.Mutex
	var got map[string]Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	t.Setenv("TEST_ALERT_URL", srv.URL)
	e := New(config.AlertsConfig{
		Rules:    []config.AlertRule{{Name: "hot", Condition: "median > 2"}},
		Webhooks: []config.WebhookConfig{{Type: "http", URLEnv: "TEST_ALERT_URL"}},
	})
	e.Evaluate(emission(7, 3, 4))
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	a, ok := got["alert"]
	if !ok {
		t.Fatalf("webhook body missing alert: %v", got)
	}
	if a.RuleName != "hot" || a.Seq != 7 || a.Severity != "warning" {
		t.Errorf("delivered alert = %+v, want rule hot, seq 7, severity warning", a)
	}
	if a.Median != 3 || a.Participants != 4 || a.WindowLen != 2 {
		t.Errorf("delivered median/participants/window = %v/%d/%d, want 3/4/2",
			a.Median, a.Participants, a.WindowLen)
	}
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := New(config.AlertsConfig{})
	if err := e.post(srv.URL, []byte(`{}`)); err == nil {
		t.Error("post to failing webhook: expected error, got nil")
	}
}

func alertAt(state string) *Alert {
	a := &Alert{
		RuleName: "hot",
		Severity: "critical",
		Message:  "hot: median > 2 (value 2.50) at seq 12",
		State:    state,
	}
	a.observe(types.Emission{
		Seq:          12,
		Median:       2.5,
		Participants: 6,
		WindowLen:    4,
		Watermark:    time.Date(2016, 4, 7, 3, 34, 58, 0, time.UTC),
	})
	return a
}

func TestSlackPayload_CarriesWindowState(t *testing.T) {
	body, err := slackPayload(alertAt(StateFiring))
	if err != nil {
		t.Fatalf("slackPayload: %v", err)
	}
	var got struct {
		Text        string `json:"text"`
		Attachments []struct {
			Color  string `json:"color"`
			Fields []struct {
				Title string `json:"title"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Text != "CRITICAL hot: median > 2 (value 2.50) at seq 12" {
		t.Errorf("text = %q", got.Text)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Color != "#FF4F6A" {
		t.Fatalf("attachments = %+v, want one critical-coloured attachment", got.Attachments)
	}
	fields := map[string]string{}
	for _, f := range got.Attachments[0].Fields {
		fields[f.Title] = f.Value
	}
	want := map[string]string{
		"Median degree":       "2.50",
		"Participants":        "6",
		"Window transactions": "4",
		"Emission":            "#12",
		"Watermark":           "2016-04-07T03:34:58Z",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %q = %q, want %q", k, fields[k], v)
		}
	}
}

func TestTeamsPayload_Resolved(t *testing.T) {
	body, err := teamsPayload(alertAt(StateResolved))
	if err != nil {
		t.Fatalf("teamsPayload: %v", err)
	}
	var got struct {
		ThemeColor string `json:"themeColor"`
		Title      string `json:"title"`
		Sections   []struct {
			Facts []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"facts"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ThemeColor != "2EB67D" {
		t.Errorf("themeColor = %q, want 2EB67D", got.ThemeColor)
	}
	if got.Title != "Resolved: hot (median 2.50)" {
		t.Errorf("title = %q", got.Title)
	}
	if len(got.Sections) != 1 || len(got.Sections[0].Facts) != 5 {
		t.Fatalf("sections = %+v, want one section with 5 facts", got.Sections)
	}
	if f := got.Sections[0].Facts[0]; f.Name != "Median degree" || f.Value != "2.50" {
		t.Errorf("facts[0] = %+v, want Median degree 2.50", f)
	}
}

func TestFacts_OmitsUnsetWatermark(t *testing.T) {
	for _, f := range facts(&Alert{Seq: 1, Median: 1}) {
		if f.Name == "Watermark" {
			t.Errorf("facts include watermark %q for a zero time", f.Value)
		}
	}
}
