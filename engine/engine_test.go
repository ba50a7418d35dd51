package engine

import (
	"context"
	"strings"
	"testing"
	"time"
)

func gather(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestInvokeCleanRun(t *testing.T) {
	e := New()
	events := gather(t, e.Invoke(context.Background(), `console.log(1 + 1);`))

	if len(events) != 3 {
		t.Fatalf("expected diagnostics, output, success; got %v", events)
	}
	if events[0].Kind != EventDiagnostics || len(events[0].Diagnostics) != 0 {
		t.Errorf("expected empty diagnostics first, got %v", events[0])
	}
	if events[1].Kind != EventOutput || events[1].Data != "2" {
		t.Errorf("expected output \"2\", got %v", events[1])
	}
	if events[2].Kind != EventSuccess {
		t.Errorf("expected success last, got %v", events[2])
	}
}

func TestInvokeFiltersInjectedGlobals(t *testing.T) {
	e := New()
	events := gather(t, e.Invoke(context.Background(), `display(html("<b>x</b>"));`))

	if events[0].Kind != EventDiagnostics {
		t.Fatalf("expected diagnostics first, got %v", events[0])
	}
	if len(events[0].Diagnostics) != 0 {
		t.Errorf("injected globals should be filtered, got %v", events[0].Diagnostics)
	}
	last := events[len(events)-1]
	if last.Kind != EventSuccess {
		t.Errorf("expected success, got %v", last)
	}
}

func TestInvokeReportsUnresolvedName(t *testing.T) {
	e := New()
	events := gather(t, e.Invoke(context.Background(), `console.log(typeof bogus === "undefined");`))

	if events[0].Kind != EventDiagnostics {
		t.Fatalf("expected diagnostics first, got %v", events[0])
	}
	if len(events[0].Diagnostics) != 1 || events[0].Diagnostics[0].Message != "cannot resolve name 'bogus'" {
		t.Errorf("expected one unresolved-name diagnostic, got %v", events[0].Diagnostics)
	}
}

func TestInvokeRuntimeFault(t *testing.T) {
	e := New()
	events := gather(t, e.Invoke(context.Background(), `throw new Error("boom");`))

	last := events[len(events)-1]
	if last.Kind != EventFailure || last.Message != "boom" {
		t.Errorf("expected failure \"boom\", got %v", last)
	}
	for _, ev := range events {
		if ev.Kind == EventSuccess {
			t.Errorf("faulted run must not report success: %v", events)
		}
	}
}

func TestInvokeTimeout(t *testing.T) {
	e := New(WithDeadline(100 * time.Millisecond))
	events := gather(t, e.Invoke(context.Background(), `for (;;) {}`))

	last := events[len(events)-1]
	if last.Kind != EventFailure || !strings.Contains(last.Message, "timeout") {
		t.Errorf("expected timeout failure, got %v", last)
	}
}

func TestInvokeSyntaxErrorStillRuns(t *testing.T) {
	e := New()
	events := gather(t, e.Invoke(context.Background(), `let let = 1;`))

	if events[0].Kind != EventDiagnostics || len(events[0].Diagnostics) == 0 {
		t.Fatalf("expected syntax diagnostics, got %v", events[0])
	}
	last := events[len(events)-1]
	if last.Kind != EventFailure {
		t.Errorf("expected the run itself to fault, got %v", last)
	}
}

func TestInvokeCancelledContextStillCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New()
	events := e.Invoke(ctx, `console.log("hi");`)

	done := make(chan struct{})
	go func() {
		for range events {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("event stream did not close after cancellation")
	}
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventDiagnostics, "diagnostics"},
		{EventOutput, "output"},
		{EventFailure, "failure"},
		{EventSuccess, "success"},
		{EventKind(99), "event(99)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
