package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	catrate "github.com/joeycumines/go-catrate"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/logger"
	"github.com/oshokin/alarm-cond/internal/notice"
)

// Scheduler is the part of the scheduler the console drives.
type Scheduler interface {
	Submit(ctx context.Context, id int64, period time.Duration, message string) (domain.Alarm, bool, error)
	Cancel(ctx context.Context, id int64) (domain.Alarm, error)
	List(ctx context.Context) []domain.Alarm
}

// Throttle categories for error reports.
const (
	categoryInvalid = "invalid"
	categoryCancel  = "cancel"
)

// Console reads commands line by line and forwards them to a Scheduler.
type Console struct {
	// scheduler executes the parsed commands.
	scheduler Scheduler
	// out receives list dumps.
	out io.Writer
	// errOut receives error reports.
	errOut io.Writer
	// limiter throttles repeated error reports per category.
	limiter *catrate.Limiter
	// now stamps list dumps.
	now func() time.Time
}

// Option configures a Console.
type Option func(*Console)

// WithRates overrides the error report limits, see catrate.NewLimiter.
// A nil or empty map disables throttling.
func WithRates(rates map[time.Duration]int) Option {
	return func(c *Console) {
		if len(rates) == 0 {
			c.limiter = nil

			return
		}

		c.limiter = catrate.NewLimiter(rates)
	}
}

// WithClock overrides the time source used for list dumps.
func WithClock(now func() time.Time) Option {
	return func(c *Console) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a console. List dumps go to out, error reports to errOut.
func New(scheduler Scheduler, out, errOut io.Writer, opts ...Option) *Console {
	c := &Console{
		scheduler: scheduler,
		out:       out,
		errOut:    errOut,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 5,
			time.Minute: 60,
		}),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run reads lines from in until EOF or until ctx is cancelled.
// Reaching EOF is not an error.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx = logger.WithName(ctx, "console")

	lines := make(chan string)
	readErr := make(chan error, 1)

	// The reader may stay blocked on in after ctx ends; it exits on the next line or EOF.
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				var err error

				select {
				case err = <-readErr:
				default:
				}

				if err != nil {
					return fmt.Errorf("failed to read commands: %w", err)
				}

				logger.Debug(ctx, "Console input closed")

				return nil
			}

			c.Execute(ctx, line)
		}
	}
}

// Execute parses and runs one line.
func (c *Console) Execute(ctx context.Context, line string) {
	cmd, err := Parse(line)

	switch {
	case errors.Is(err, errEmptyLine):
		return
	case err != nil:
		logger.DebugKV(ctx, "Rejected console line", "line", line, "error", err)
		c.report(ctx, c.errOut, categoryInvalid, "Invalid command.")

		return
	}

	switch cmd.Kind {
	case CommandSubmit:
		c.submit(ctx, cmd)
	case CommandCancel:
		c.cancel(ctx, cmd.ID)
	case CommandList:
		c.print(ctx, notice.FormatList(c.scheduler.List(ctx), c.now()))
	}
}

func (c *Console) submit(ctx context.Context, cmd Command) {
	_, _, err := c.scheduler.Submit(ctx, cmd.ID, cmd.Period, cmd.Message)
	if err != nil {
		logger.DebugKV(ctx, "Submit rejected", "alarm_id", cmd.ID, "error", err)
		c.report(ctx, c.errOut, categoryInvalid, "Invalid command.")
	}
}

func (c *Console) cancel(ctx context.Context, id int64) {
	_, err := c.scheduler.Cancel(ctx, id)

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		c.report(ctx, c.out, categoryCancel,
			fmt.Sprintf("Error: No Alarm Request With Message Number (%d) to Cancel!", id))
	case errors.Is(err, domain.ErrAlreadyCancelling):
		c.report(ctx, c.out, categoryCancel,
			fmt.Sprintf("Error: More Than One Request to Cancel Alarm Request With Message Number (%d)!", id))
	default:
		logger.ErrorKV(ctx, "Cancel failed", "alarm_id", id, "error", err)
	}
}

// report writes an error line to w unless the category is over its limit.
// Rejected cancels go to the output like notices; unparsable lines go to the error writer.
func (c *Console) report(ctx context.Context, w io.Writer, category, line string) {
	if c.limiter != nil {
		if _, ok := c.limiter.Allow(category); !ok {
			logger.DebugKV(ctx, "Error report throttled", "category", category)

			return
		}
	}

	if _, err := fmt.Fprintln(w, line); err != nil {
		logger.ErrorKV(ctx, "Failed to write error report", "error", err)
	}
}

func (c *Console) print(ctx context.Context, line string) {
	if _, err := fmt.Fprintln(c.out, line); err != nil {
		logger.ErrorKV(ctx, "Failed to write list", "error", err)
	}
}
