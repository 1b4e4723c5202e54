package sandbox

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"compile-and-judge/internal/memory"
)

// ErrSandbox marks every failure that happened while provisioning or
// supervising the sandbox itself. These are faults of the judge and are never
// attributed to the submitted program.
var ErrSandbox = errors.New("sandbox failure")

// sandboxError wraps the cause with ErrSandbox while keeping the cause
// message readable.
func sandboxError(err error, message string) error {
	return errors.Wrap(&wrappedSandboxError{cause: err}, message)
}

type wrappedSandboxError struct {
	cause error
}

func (e *wrappedSandboxError) Error() string { return e.cause.Error() }

func (e *wrappedSandboxError) Unwrap() []error { return []error{ErrSandbox, e.cause} }

// Invocation describes a single command that is executed inside a freshly
// provisioned sandbox.
type Invocation struct {
	// The identifier used for logging and naming the sandbox.
	ID string
	// The docker image that provides the compilers and runtimes.
	Image string
	// The argument list executed inside the sandbox, no shell is involved.
	Command []string
	// The workspace mounted read-write into the sandbox.
	Workspace *Workspace
	// The data fed to the standard input of the command.
	Stdin string
	// The wall clock deadline, after which the sandbox is forcefully killed.
	Timeout time.Duration
	// The resource ceilings of the sandbox.
	Limits ResourceLimits
}

func (i *Invocation) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", i.ID).
		Str("image", i.Image).
		Str("command", strings.Join(i.Command, " ")).
		Dur("timeout", i.Timeout).
		Int64("memoryMb", i.Limits.Memory.Megabytes()).
		Float64("cpuShare", i.Limits.CPUShare).
		Int64("pidLimit", i.Limits.PidLimit)
}

// Execution is the raw result of one sandboxed invocation.
type Execution struct {
	// The exit code of the command, -1 if the sandbox was killed.
	ExitCode int
	// The captured standard output, bounded by the executor.
	Stdout string
	// The captured standard error, bounded by the executor.
	Stderr string
	// The wall clock time between starting and stopping the sandbox.
	Elapsed time.Duration
	// The highest memory usage observed while the sandbox was running.
	PeakMemory memory.Memory
	// The command did not finish within the deadline and was killed.
	TimedOut bool
	// The isolation primitive killed the command for exceeding its memory
	// limit.
	OOMKilled bool
}

// Executor launches one command inside an isolated, resource capped and
// network disconnected sandbox. Implementations must never reuse a sandbox
// between invocations. A returned error always wraps ErrSandbox, timeouts
// are reported through Execution.TimedOut.
type Executor interface {
	Execute(ctx context.Context, invocation *Invocation) (*Execution, error)
}
