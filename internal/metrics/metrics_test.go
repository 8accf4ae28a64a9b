package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/logging"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

func scrape(t *testing.T, o *Observer) string {
	t.Helper()
	rec := httptest.NewRecorder()
	o.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestObserverCountsChannelActivity(t *testing.T) {
	logging.ConfigureTests()
	o := New()

	ch, err := pipe.Open(pipe.Width16, pipe.WithMaxOutflow(10), pipe.WithObserver(o))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ch.Attach(context.Background(), driver.Ref{Name: "nic0"}, driver.ModeForced); err != nil {
		t.Fatalf("attach: %v", err)
	}
	ch.Guard().Precheck(1, 7)
	if _, err := ch.Send([]byte{0, 0, 0, 7}, 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	ch.Send([]byte{1, 2, 3, 4, 5}, 1)

	body := scrape(t, o)
	for _, want := range []string{
		`netpipe_pipe_packets_total{result="ok",width="16"} 1`,
		`netpipe_pipe_packets_total{result="packet_too_wide",width="16"} 1`,
		`netpipe_pipe_bytes_total{width="16"} 4`,
		`netpipe_driver_transitions_total{state="forced"} 1`,
		`netpipe_pipe_rejects_total{kind="packet_too_wide",op="send"} 1`,
		`netpipe_pipe_open_channels 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape:\n%s", want, body)
		}
	}

	ch.Close()
	body = scrape(t, o)
	if !strings.Contains(body, `netpipe_pipe_open_channels 0`) {
		t.Errorf("expected open channels to drop to 0:\n%s", body)
	}
	if !strings.Contains(body, `netpipe_driver_transitions_total{state="null_origin"} 1`) {
		t.Errorf("expected detach on close to count a transition:\n%s", body)
	}
}

func TestRejectedAttachCountsTransition(t *testing.T) {
	logging.ConfigureTests()
	o := New()
	ch, _ := pipe.Open(pipe.Width32, pipe.WithObserver(o))
	defer ch.Close()

	ch.Attach(context.Background(), driver.Ref{}, driver.ModeForced)

	body := scrape(t, o)
	if !strings.Contains(body, `netpipe_driver_transitions_total{state="rejected"} 1`) {
		t.Errorf("expected rejected transition:\n%s", body)
	}
	if !strings.Contains(body, `netpipe_pipe_rejects_total{kind="null_driver",op="attach"} 1`) {
		t.Errorf("expected null_driver reject:\n%s", body)
	}
}

func TestSeparateObserversDoNotShareSeries(t *testing.T) {
	a, b := New(), New()
	a.open.Inc()
	if strings.Contains(scrape(t, b), "netpipe_pipe_open_channels 1") {
		t.Error("registries should be independent")
	}
}
