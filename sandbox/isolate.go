package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"codecell/assets"
	"codecell/locator"
)

// ErrTerminated reports a post to a context that is already torn down.
var ErrTerminated = errors.New("execution context terminated")

// InjectedGlobals lists the identifiers the context defines before cell code
// runs. The compiler cannot resolve them statically; the diagnostic filter
// uses this list as its allow-list.
func InjectedGlobals() []string {
	return []string{"display", "html"}
}

var (
	preludeOnce sync.Once
	preludeProg *goja.Program
	preludeErr  error
)

// prelude compiles the context bootstrap script once per process. The
// compiled program is immutable and shared by every isolate.
func prelude() (*goja.Program, error) {
	preludeOnce.Do(func() {
		src, err := assets.Fetch(locator.Locate(locator.KindSandboxEntry))
		if err != nil {
			preludeErr = err
			return
		}
		preludeProg, preludeErr = goja.Compile("prelude.js", string(src), false)
	})
	return preludeProg, preludeErr
}

// Isolate is one isolated execution context: a fresh VM in a dedicated
// goroutine, reachable only through message frames. It accepts a single
// Execute, replies with zero or more Output frames and exactly one terminal
// frame, then shuts down.
type Isolate struct {
	inbox   chan []byte
	out     chan []byte
	done    chan struct{}
	term    sync.Once
	prelude *goja.Program
	log     *zap.Logger

	vmMu sync.Mutex
	vm   *goja.Runtime
}

func newIsolate(log *zap.Logger) (*Isolate, error) {
	prog, err := prelude()
	if err != nil {
		return nil, fmt.Errorf("sandbox entry: %w", err)
	}
	iso := &Isolate{
		inbox:   make(chan []byte, 1),
		out:     make(chan []byte, 16),
		done:    make(chan struct{}),
		prelude: prog,
		log:     log,
	}
	go iso.loop()
	return iso, nil
}

// Post frames a message into the context.
func (iso *Isolate) Post(m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-iso.done:
		return ErrTerminated
	default:
	}
	select {
	case iso.inbox <- frame:
		return nil
	case <-iso.done:
		return ErrTerminated
	}
}

// Frames returns the context's outbound frames. The channel closes when the
// context goroutine exits.
func (iso *Isolate) Frames() <-chan []byte {
	return iso.out
}

// Terminate forcibly tears the context down. Idempotent and safe from any
// goroutine; an executing VM is interrupted mid-flight.
func (iso *Isolate) Terminate() {
	iso.term.Do(func() {
		close(iso.done)
		iso.vmMu.Lock()
		if iso.vm != nil {
			iso.vm.Interrupt(ErrTerminated)
		}
		iso.vmMu.Unlock()
	})
}

func (iso *Isolate) loop() {
	defer close(iso.out)

	select {
	case <-iso.done:
		return
	case frame := <-iso.inbox:
		m, err := Decode(frame)
		if err != nil {
			iso.emit(Message{Kind: KindError, Text: err.Error()})
			return
		}
		if m.Kind != KindExecute {
			iso.emit(Message{Kind: KindError, Text: fmt.Sprintf("protocol: unexpected %s message", m.Kind)})
			return
		}
		iso.execute(m.Code)
	}
}

func (iso *Isolate) execute(code string) {
	vm := goja.New()

	iso.vmMu.Lock()
	select {
	case <-iso.done:
		iso.vmMu.Unlock()
		return
	default:
	}
	iso.vm = vm
	iso.vmMu.Unlock()

	iso.installGlobals(vm)

	var err error
	if _, err = vm.RunProgram(iso.prelude); err == nil {
		_, err = vm.RunString(code)
	}

	iso.vmMu.Lock()
	iso.vm = nil
	iso.vmMu.Unlock()

	select {
	case <-iso.done:
		// Forcibly terminated; the supervisor owns the terminal outcome.
		return
	default:
	}

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return
		}
		iso.emit(Message{Kind: KindError, Text: faultMessage(err)})
		return
	}
	iso.emit(Message{Kind: KindDone})
}

// installGlobals redirects the context's console surface into Output frames
// and wires the emission binding the prelude builds on. Cell code never
// reaches the host's console.
func (iso *Isolate) installGlobals(vm *goja.Runtime) {
	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, iso.makeConsoleFunc())
	}
	vm.Set("console", console)

	vm.Set("__emit", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			iso.emit(Message{Kind: KindOutput, Data: call.Arguments[0].Export()})
		}
		return goja.Undefined()
	})
}

func (iso *Isolate) makeConsoleFunc() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		iso.emit(Message{Kind: KindOutput, Data: strings.Join(parts, " ")})
		return goja.Undefined()
	}
}

func (iso *Isolate) emit(m Message) {
	frame, err := Encode(m)
	if err != nil {
		// Output payloads that cannot cross the boundary are dropped.
		iso.log.Warn("unencodable frame dropped", zap.Error(err))
		return
	}
	select {
	case iso.out <- frame:
	case <-iso.done:
	}
}

// faultMessage extracts the message of an uncaught exception. A thrown Error
// object contributes its message property; anything else is stringified.
func faultMessage(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if obj, ok := ex.Value().(*goja.Object); ok {
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
				return msg.String()
			}
		}
		return ex.Value().String()
	}
	return err.Error()
}
