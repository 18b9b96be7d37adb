package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/ahamlinman/zipstream/internal/log"
)

// DefaultCommand archives the working directory recursively and writes the
// archive to standard output.
var DefaultCommand = []string{"zip", "-r", "-", "."}

// ExecProducer produces archives by running an external archiver inside the
// directory and streaming its standard output. Memory use stays bounded by
// pipe buffering no matter how large the directory is.
type ExecProducer struct {
	// Command is the archiver and its arguments. When empty, DefaultCommand is
	// used.
	Command []string
	Logger  log.Logger
}

// Produce implements Producer. The returned stream is a *Process.
func (p ExecProducer) Produce(ctx context.Context, dir string) (io.ReadCloser, error) {
	argv := p.Command
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	proc, err := StartProcess(ctx, dir, argv[0], argv[1:]...)
	if err != nil {
		return nil, err
	}
	proc.logger = log.T(p.Logger, proc)
	return proc, nil
}

// ProcessState represents the lifecycle of a child process.
type ProcessState int

const (
	// ProcessRunning means the process has been started and not yet reaped.
	ProcessRunning ProcessState = iota
	// ProcessExited means the process finished on its own and was reaped.
	ProcessExited
	// ProcessKilled means the process was terminated early and reaped.
	ProcessKilled
)

var processStateStrings = map[ProcessState]string{
	ProcessRunning: "Running",
	ProcessExited:  "Exited",
	ProcessKilled:  "Killed",
}

func (s ProcessState) String() string {
	if str, ok := processStateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("ProcessState(%d)", int(s))
}

// maxStderr bounds how much diagnostic output is kept from a child.
const maxStderr = 4 << 10

// Process is an owned handle to a child process whose standard output is read
// as a stream.
//
// The child is reaped exactly once: by the Read that observes the end of its
// output, or by Close, which kills it first if it is still running.
type Process struct {
	ctx    context.Context
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *limitedBuffer
	logger log.Logger

	mu    sync.Mutex
	state ProcessState
	err   error // returned by every Read once the process is reaped
}

// StartProcess starts name with args in dir, with its standard output
// available through the returned Process. Cancelling ctx kills the process.
func StartProcess(ctx context.Context, dir, name string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	stderr := &limitedBuffer{limit: maxStderr}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrArchive, name, err)
	}

	return &Process{
		ctx:    ctx,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		state:  ProcessRunning,
	}, nil
}

// Pid returns the operating system's identifier for the process.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// State returns the current lifecycle state of the process.
func (p *Process) State() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Read reads the standard output of the process. When the output ends, the
// process is reaped, and Read returns io.EOF if it exited successfully. A
// failed exit is reported as an error wrapping ErrArchive that includes the
// start of the process's standard error.
func (p *Process) Read(b []byte) (int, error) {
	p.mu.Lock()
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}

	n, err := p.stdout.Read(b)
	if err != nil {
		return n, p.finish(err)
	}
	return n, nil
}

func (p *Process) finish(readErr error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != ProcessRunning {
		return p.err
	}

	waitErr := p.cmd.Wait()
	switch {
	case p.ctx.Err() != nil:
		p.state = ProcessKilled
		p.err = p.ctx.Err()
	case waitErr != nil:
		p.state = ProcessExited
		p.err = fmt.Errorf("%w: %s: %v: %s",
			ErrArchive, p.cmd.Path, waitErr, strings.TrimSpace(p.stderr.String()))
	case !errors.Is(readErr, io.EOF):
		p.state = ProcessExited
		p.err = fmt.Errorf("%w: reading output: %v", ErrArchive, readErr)
	default:
		p.state = ProcessExited
		p.err = io.EOF
	}
	return p.err
}

// Close kills the process if it is still running and waits for it to be
// reaped. Reads after Close fail with os.ErrClosed unless the process had
// already finished.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != ProcessRunning {
		return nil
	}

	p.logger.Warnf("Killing archiver process with PID %d", p.cmd.Process.Pid)
	killErr := p.cmd.Process.Kill()
	p.cmd.Wait()
	p.state = ProcessKilled
	p.err = os.ErrClosed

	if killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
		return killErr
	}
	return nil
}

// limitedBuffer keeps the first limit bytes written to it and silently drops
// the rest, so a chatty child cannot grow it without bound.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
