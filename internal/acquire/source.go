// Package acquire pulls database dumps and file archives from remote hosts
// over ssh and stores them, gzip-compressed, in the finest retention tier.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/kebairia/bacli/internal/target"
)

var (
	ErrTimeout      = errors.New("operation timed out")
	ErrBackupFailed = errors.New("backup failed")
)

// Source produces the raw content of one target's backup.
type Source interface {
	Target() target.Target
	// Extension is the artifact file extension, without the leading dot.
	Extension() string
	// Dump streams the uncompressed backup to w.
	Dump(ctx context.Context, w io.Writer) error
}

// Runner executes a local command with the given stdin and stdout.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, stdout io.Writer, name string, args ...string) error
}

// ExecRunner runs commands with os/exec. Stderr is captured and attached to
// the returned error.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin io.Reader, stdout io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return nil
}

// Remote is an ssh destination.
type Remote struct {
	Address string
	User    string
	Port    int
}

func (r Remote) destination() string {
	if r.User == "" {
		return r.Address
	}
	return r.User + "@" + r.Address
}

// sshArgs returns the ssh arguments that run a shell reading its script from
// stdin on the remote host.
func (r Remote) sshArgs() []string {
	args := []string{"-o", "BatchMode=yes"}
	if r.Port != 0 {
		args = append(args, "-p", strconv.Itoa(r.Port))
	}
	return append(args, r.destination(), "sh -s")
}

// script builds the remote shell script running argv with extra environment
// variables. Secrets travel in the script on stdin, never on a command line.
func script(env []string, argv []string) string {
	var b strings.Builder
	for _, kv := range env {
		key, value, _ := strings.Cut(kv, "=")
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(shellquote.Join(value))
		b.WriteString("; export ")
		b.WriteString(key)
		b.WriteByte('\n')
	}
	b.WriteString("exec ")
	b.WriteString(shellquote.Join(argv...))
	b.WriteByte('\n')
	return b.String()
}

// Option configures the fields shared by every source.
type Option func(*base)

type base struct {
	target   target.Target
	remote   Remote
	runner   Runner
	username string
	password string
}

func newBase(t target.Target, remote Remote, opts []Option) base {
	b := base{target: t, remote: remote, runner: ExecRunner{}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// WithRunner overrides how commands are executed.
func WithRunner(r Runner) Option {
	return func(b *base) {
		if r != nil {
			b.runner = r
		}
	}
}

// WithCredentials sets username and password for database sources.
func WithCredentials(user, pass string) Option {
	return func(b *base) {
		if user != "" {
			b.username = user
		}
		if pass != "" {
			b.password = pass
		}
	}
}

func (b *base) Target() target.Target { return b.target }

// runRemote runs argv on the remote host, streaming its stdout to w.
func (b *base) runRemote(ctx context.Context, w io.Writer, env []string, argv ...string) error {
	return b.runner.Run(ctx, strings.NewReader(script(env, argv)), w, "ssh", b.remote.sshArgs()...)
}
