package netmon

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func quietConfig() Config {
	return Config{Interval: 10 * time.Millisecond, Logger: log.New(io.Discard, "", 0)}
}

func TestReport_Deduplicates(t *testing.T) {
	m := New(quietConfig())

	if !m.Report(true) {
		t.Error("first Report(true) not published")
	}
	if m.Report(true) {
		t.Error("repeated Report(true) published")
	}
	if got := <-m.Updates(); got != true {
		t.Errorf("Updates() = %v, want true", got)
	}
	if !m.Report(false) {
		t.Error("Report(false) after true not published")
	}
	if online, ok := m.Online(); !ok || online {
		t.Errorf("Online() = %v, %v; want false, true", online, ok)
	}
}

// drain returns every value currently buffered on the stream.
func drain(m *Monitor) []bool {
	var got []bool
	for {
		select {
		case v := <-m.Updates():
			got = append(got, v)
		default:
			return got
		}
	}
}

func TestReport_FlappingEndsOnFinalState(t *testing.T) {
	m := New(quietConfig())

	// Ten flaps with nobody reading.
	state := false
	for i := 0; i < 10; i++ {
		state = !state
		m.Report(state)
	}

	got := drain(m)
	if len(got) == 0 || len(got) > 2 {
		t.Fatalf("Updates() delivered %v, want one or two values", got)
	}
	if got[len(got)-1] != state {
		t.Errorf("last value = %v, want final state %v", got[len(got)-1], state)
	}
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Errorf("repeated value in %v", got)
		}
	}
}

func TestReport_UnreadOutageStillDelivered(t *testing.T) {
	tests := []struct {
		name    string
		reports []bool
		want    []bool
	}{
		{name: "short outage", reports: []bool{false, true}, want: []bool{false, true}},
		{name: "outage then flap", reports: []bool{false, true, false}, want: []bool{false}},
		{name: "two outages", reports: []bool{false, true, false, true}, want: []bool{false, true}},
		{name: "three outages", reports: []bool{false, true, false, true, false, true}, want: []bool{false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(quietConfig())
			m.Report(true)
			if got := <-m.Updates(); !got {
				t.Fatalf("first value = %v, want true", got)
			}

			for _, v := range tt.reports {
				m.Report(v)
			}
			got := drain(m)
			if len(got) != len(tt.want) {
				t.Fatalf("Updates() delivered %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Updates() delivered %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRun_ProbesAndClosesOnCancel(t *testing.T) {
	var online atomic.Bool
	cfg := quietConfig()
	cfg.Prober = ProberFunc(func(ctx context.Context) bool { return online.Load() })
	m := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	if got := <-m.Updates(); got != false {
		t.Fatalf("first state = %v, want false", got)
	}
	online.Store(true)
	select {
	case got := <-m.Updates():
		if !got {
			t.Errorf("state = %v, want true", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transition to online not observed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	for range m.Updates() {
	}
	if m.Report(false) {
		t.Error("Report after shutdown published a value")
	}
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	p := NewHTTPProber(srv.URL, time.Second)

	if !p.Probe(context.Background()) {
		t.Error("Probe() = false for a responding server")
	}

	srv.Close()
	if p.Probe(context.Background()) {
		t.Error("Probe() = true for a closed server")
	}
}
