package integration

import (
	"bytes"
	"context"
	"io"
	"net"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-cond/internal/config"
	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/service/common"
	"github.com/oshokin/alarm-cond/internal/service/server"
)

// lockedBuffer is a bytes.Buffer safe for concurrent writers.
type lockedBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// exitingClient matches the exit of the display worker for the client's replacement.
var exitingClient = regexp.MustCompile(`Display thread exiting at <\d+>: <1 From client>`)

// daemon is a running alarm-cond with both front-ends enabled.
type daemon struct {
	// console feeds the daemon's standard input.
	console *io.PipeWriter
	// stdout collects the daemon's notices.
	stdout *lockedBuffer
	// stderr collects console error reports.
	stderr *lockedBuffer
	// address is the gRPC address.
	address string
	// done receives the result of server.Run.
	done chan error
}

// startDaemon runs the daemon on a loopback port with the console attached to a pipe.
func startDaemon(ctx context.Context, t *testing.T) *daemon {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		ListenAddress: config.ListenDisabled,
		LogLevel:      "error",
		Timeout:       5 * time.Second,
		WatchBuffer:   128,
	}))

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	stdin, console := io.Pipe()

	d := &daemon{
		console: console,
		stdout:  &lockedBuffer{},
		stderr:  &lockedBuffer{},
		address: lis.Addr().String(),
		done:    make(chan error, 1),
	}

	go func() {
		d.done <- server.Run(ctx, &server.Options{
			Stdin:       stdin,
			Stdout:      d.stdout,
			Stderr:      d.stderr,
			Listener:    lis,
			ConfigPath:  cfgPath,
			Interactive: true,
		})
	}()

	return d
}

func (d *daemon) send(t *testing.T, line string) {
	t.Helper()

	_, err := io.WriteString(d.console, line+"\n")
	require.NoError(t, err)
}

// TestDaemon_ConsoleAndGRPC drives one daemon from both front-ends and checks each sees the other's effects.
func TestDaemon_ConsoleAndGRPC(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	d := startDaemon(ctx, t)

	client, err := common.Dial(ctx, d.address, common.WithActor("tester@localhost"))
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	var (
		watched   = &lockedBuffer{}
		watchDone = make(chan error, 1)
	)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	go func() {
		watchDone <- client.Watch(watchCtx, func(_ domain.Notice, line string) error {
			_, err := io.WriteString(watched, line+"\n")

			return err
		})
	}()

	// The server is reachable once List succeeds.
	require.Eventually(t, func() bool {
		_, _, err := client.List(ctx)

		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	// Keep submitting a marker alarm until the watcher is subscribed and sees it.
	require.Eventually(t, func() bool {
		_, _, err := client.Submit(ctx, 50, time.Second, "Marker")

		return err == nil && strings.Contains(watched.String(), "Message Number (50)")
	}, 5*time.Second, 50*time.Millisecond)

	_, err = client.Cancel(ctx, 50)
	require.NoError(t, err)

	// Console submit is visible through gRPC.
	d.send(t, "1 Message(3) From console")

	require.Eventually(t, func() bool {
		alarms, _, err := client.List(ctx)
		if err != nil {
			return false
		}

		for i := range alarms {
			if alarms[i].ID == 3 && alarms[i].Message == "From console" {
				return true
			}
		}

		return false
	}, 5*time.Second, 20*time.Millisecond)

	// gRPC replace reaches the running display worker.
	_, replaced, err := client.Submit(ctx, 3, time.Second, "From client")
	require.NoError(t, err)
	require.True(t, replaced)

	require.Eventually(t, func() bool {
		return strings.Contains(d.stdout.String(), "Replacement Alarm With Message Number (3) Displayed at <")
	}, 5*time.Second, 50*time.Millisecond)

	// gRPC cancel ends the display; the console reports an unknown id.
	_, err = client.Cancel(ctx, 3)
	require.NoError(t, err)

	d.send(t, "Cancel: Message(99)")
	d.send(t, "bogus")

	require.Eventually(t, func() bool {
		return exitingClient.MatchString(d.stdout.String())
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		return strings.Contains(d.stderr.String(), "Invalid command.")
	}, 5*time.Second, 20*time.Millisecond)

	require.Contains(t, d.stdout.String(), "Error: No Alarm Request With Message Number (99) to Cancel!")

	require.Eventually(t, func() bool {
		alarms, _, err := client.List(ctx)

		return err == nil && len(alarms) == 0
	}, 5*time.Second, 50*time.Millisecond)

	// The watcher saw the same story as the console.
	require.Eventually(t, func() bool {
		return exitingClient.MatchString(watched.String())
	}, 5*time.Second, 50*time.Millisecond)

	stream := watched.String()
	require.Contains(t, stream, "First Alarm Request With Message Number (3) Received at <")
	require.Contains(t, stream, "Replacement Alarm Request With Message Number (3) Received at <")
	require.Contains(t, stream, "Cancel Alarm Request With Message Number (3) Received at <")

	stopWatch()
	require.NoError(t, <-watchDone)

	// End of console input stops the daemon.
	require.NoError(t, d.console.Close())
	require.NoError(t, <-d.done)
}
