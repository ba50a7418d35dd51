package sandbox

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func collect(t *testing.T, run *Run) []Message {
	t.Helper()
	var msgs []Message
	for m := range run.Messages {
		msgs = append(msgs, m)
	}
	return msgs
}

func TestExecuteConsoleOutput(t *testing.T) {
	run, err := New().Start(`console.log(1 + 1);`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	if len(msgs) != 2 {
		t.Fatalf("expected output and done, got %v", msgs)
	}
	if msgs[0].Kind != KindOutput || msgs[0].Data != "2" {
		t.Errorf("expected output \"2\", got %v", msgs[0])
	}
	if msgs[1].Kind != KindDone {
		t.Errorf("expected done, got %v", msgs[1])
	}
	if got := run.Session.State(); got != StateCompleted {
		t.Errorf("state = %s, want completed", got)
	}
}

func TestOutputOrdering(t *testing.T) {
	run, err := New().Start(`
		console.log("a");
		console.log("b");
		console.log("c");
	`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	if len(msgs) != 4 {
		t.Fatalf("expected three outputs and done, got %v", msgs)
	}
	for i, want := range []string{"a", "b", "c"} {
		if msgs[i].Kind != KindOutput || msgs[i].Data != want {
			t.Errorf("message %d = %v, want output %q", i, msgs[i], want)
		}
	}
}

func TestDisplayStructuredOutput(t *testing.T) {
	run, err := New().Start(`display(html("<b>hi</b>"));`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	if len(msgs) != 2 || msgs[0].Kind != KindOutput {
		t.Fatalf("expected one output and done, got %v", msgs)
	}
	obj, ok := msgs[0].Data.(map[string]any)
	if !ok {
		t.Fatalf("expected structured payload, got %T", msgs[0].Data)
	}
	if obj["html"] != "<b>hi</b>" {
		t.Errorf("html payload = %v, want <b>hi</b>", obj["html"])
	}
	if got := run.Session.State(); got != StateCompleted {
		t.Errorf("state = %s, want completed", got)
	}
}

func TestThrownErrorObject(t *testing.T) {
	run, err := New().Start(`throw new Error("boom");`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	if len(msgs) != 1 {
		t.Fatalf("expected a single error message, got %v", msgs)
	}
	if msgs[0].Kind != KindError || msgs[0].Text != "boom" {
		t.Errorf("expected error \"boom\", got %v", msgs[0])
	}
	if got := run.Session.State(); got != StateFailed {
		t.Errorf("state = %s, want failed", got)
	}
}

func TestThrownString(t *testing.T) {
	run, err := New().Start(`throw "plain";`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	if len(msgs) != 1 || msgs[0].Kind != KindError || msgs[0].Text != "plain" {
		t.Errorf("expected error \"plain\", got %v", msgs)
	}
}

func TestFaultAfterOutput(t *testing.T) {
	run, err := New().Start(`console.log("before"); missing();`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	if len(msgs) != 2 {
		t.Fatalf("expected output then error, got %v", msgs)
	}
	if msgs[0].Kind != KindOutput || msgs[0].Data != "before" {
		t.Errorf("expected output \"before\", got %v", msgs[0])
	}
	if msgs[1].Kind != KindError || msgs[1].Text == "" {
		t.Errorf("expected non-empty error, got %v", msgs[1])
	}
}

func TestSyntaxErrorFaultsAtRun(t *testing.T) {
	run, err := New().Start(`let let = 1;`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	if len(msgs) != 1 || msgs[0].Kind != KindError {
		t.Fatalf("expected a single error message, got %v", msgs)
	}
	if got := run.Session.State(); got != StateFailed {
		t.Errorf("state = %s, want failed", got)
	}
}

func TestDeadlineTerminatesRun(t *testing.T) {
	const deadline = 100 * time.Millisecond

	started := time.Now()
	run, err := New(WithDeadline(deadline)).Start(`for (;;) {}`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	elapsed := time.Since(started)

	if len(msgs) != 1 || msgs[0].Kind != KindError || msgs[0].Text != "execution timeout" {
		t.Fatalf("expected timeout error, got %v", msgs)
	}
	if elapsed < deadline {
		t.Errorf("terminated after %v, before the %v deadline", elapsed, deadline)
	}
	if got := run.Session.State(); got != StateTimedOut {
		t.Errorf("state = %s, want timed-out", got)
	}
}

func TestFreshContextPerRun(t *testing.T) {
	b := New()

	run, err := b.Start(`globalThis.leak = "secret"; console.log(leak);`)
	if err != nil {
		t.Fatal(err)
	}
	msgs := collect(t, run)
	if len(msgs) != 2 || msgs[0].Data != "secret" {
		t.Fatalf("first run misbehaved: %v", msgs)
	}

	run, err = b.Start(`console.log(typeof leak);`)
	if err != nil {
		t.Fatal(err)
	}
	msgs = collect(t, run)
	if len(msgs) != 2 || msgs[0].Data != "undefined" {
		t.Errorf("state leaked across contexts: %v", msgs)
	}
}

func TestPostAfterTerminate(t *testing.T) {
	iso, err := newIsolate(New().log)
	if err != nil {
		t.Fatal(err)
	}
	iso.Terminate()
	if err := iso.Post(Message{Kind: KindExecute, Code: "1"}); err != ErrTerminated {
		t.Errorf("expected ErrTerminated, got %v", err)
	}
	for range iso.Frames() {
	}
}

func TestTerminateIdempotent(t *testing.T) {
	iso, err := newIsolate(New().log)
	if err != nil {
		t.Fatal(err)
	}
	iso.Terminate()
	iso.Terminate()
	for range iso.Frames() {
	}
}

func TestIsolateRejectsNonExecute(t *testing.T) {
	iso, err := newIsolate(New().log)
	if err != nil {
		t.Fatal(err)
	}
	defer iso.Terminate()
	if err := iso.Post(Message{Kind: KindOutput, Data: "x"}); err != nil {
		t.Fatal(err)
	}
	frame, ok := <-iso.Frames()
	if !ok {
		t.Fatal("frames closed before a reply")
	}
	m, err := Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if m.Kind != KindError {
		t.Errorf("expected protocol error, got %v", m)
	}
	for range iso.Frames() {
	}
}

func TestSessionFinishFirstCallerWins(t *testing.T) {
	sess := newSession(time.Now().Add(time.Second))
	sess.start()
	if got := sess.State(); got != StateRunning {
		t.Fatalf("state = %s, want running", got)
	}
	if !sess.finish(StateCompleted) {
		t.Error("first finish should win")
	}
	if sess.finish(StateTimedOut) {
		t.Error("second finish should lose")
	}
	if got := sess.State(); got != StateCompleted {
		t.Errorf("state = %s, want completed", got)
	}
}

func TestInjectedGlobals(t *testing.T) {
	got := InjectedGlobals()
	want := []string{"display", "html"}
	if len(got) != len(want) {
		t.Fatalf("InjectedGlobals() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("InjectedGlobals()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
