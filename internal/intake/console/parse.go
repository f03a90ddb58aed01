package console

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
)

// CommandKind identifies a parsed console command.
type CommandKind int

const (
	// CommandSubmit requests a new or replacement alarm.
	CommandSubmit CommandKind = iota + 1
	// CommandCancel requests cancellation of an alarm.
	CommandCancel
	// CommandList requests a dump of the alarm list.
	CommandList
)

// Command is one parsed console line.
type Command struct {
	// Message is the alarm text for CommandSubmit.
	Message string
	// ID is the alarm id for CommandSubmit and CommandCancel.
	ID int64
	// Period is the display period for CommandSubmit.
	Period time.Duration
	// Kind is the command type.
	Kind CommandKind
}

var (
	// errInvalidCommand is returned for lines that match no command.
	errInvalidCommand = errors.New("invalid command")
	// errEmptyLine is returned for blank lines, which are skipped silently.
	errEmptyLine = errors.New("empty line")

	//nolint:gochecknoglobals // Compiled once, read-only.
	submitPattern = regexp.MustCompile(`^\s*(\d+)\s+Message\((\d+)\)\s+(.+)$`)
	//nolint:gochecknoglobals // Compiled once, read-only.
	cancelPattern = regexp.MustCompile(`^\s*Cancel:\s*Message\((\d+)\)\s*$`)
	//nolint:gochecknoglobals // Compiled once, read-only.
	listPattern = regexp.MustCompile(`^\s*(?i:list)\s*$`)
)

// Parse turns a console line into a Command. Messages longer than
// domain.MaxMessageBytes are truncated.
func Parse(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Command{}, errEmptyLine
	}

	if m := submitPattern.FindStringSubmatch(line); m != nil {
		seconds, err := positive(m[1])
		if err != nil {
			return Command{}, err
		}

		// Keep the period representable as a time.Duration.
		if seconds > int64(maxPeriod/time.Second) {
			return Command{}, fmt.Errorf("%w: %q seconds is too large", errInvalidCommand, m[1])
		}

		id, err := positive(m[2])
		if err != nil {
			return Command{}, err
		}

		return Command{
			Kind:    CommandSubmit,
			ID:      id,
			Period:  time.Duration(seconds) * time.Second,
			Message: domain.TruncateMessage(m[3]),
		}, nil
	}

	if m := cancelPattern.FindStringSubmatch(line); m != nil {
		id, err := positive(m[1])
		if err != nil {
			return Command{}, err
		}

		return Command{Kind: CommandCancel, ID: id}, nil
	}

	if listPattern.MatchString(line) {
		return Command{Kind: CommandList}, nil
	}

	return Command{}, errInvalidCommand
}

// maxPeriod is the longest period a time.Duration can hold.
const maxPeriod = time.Duration(math.MaxInt64)

// positive parses a strictly positive decimal integer.
func positive(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive number", errInvalidCommand, s)
	}

	return v, nil
}
