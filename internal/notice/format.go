package notice

import (
	"fmt"
	"strings"
	"time"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
)

// Format renders a notice as a single line without a trailing newline.
func Format(n *domain.Notice) string {
	var (
		a  = n.Alarm
		at = n.At.Unix()
	)

	switch n.Kind {
	case domain.KindReceived:
		return fmt.Sprintf("First Alarm Request With Message Number (%d) Received at <%d>: <%d %s>",
			a.ID, at, a.Seconds(), a.Message)
	case domain.KindReplaceReceived:
		return fmt.Sprintf("Replacement Alarm Request With Message Number (%d) Received at <%d>: <%d %s>",
			a.ID, at, a.Seconds(), a.Message)
	case domain.KindCancelReceived:
		return fmt.Sprintf("Cancel Alarm Request With Message Number (%d) Received at <%d>: <%d %s>",
			a.ID, at, a.Seconds(), a.Message)
	case domain.KindProcessed:
		return fmt.Sprintf("Alarm Request With Message Number (%d) Processed at <%d>: <%d %s>",
			a.ID, at, a.Seconds(), a.Message)
	case domain.KindDisplayReplaced:
		return fmt.Sprintf("Alarm With Message Number (%d) Replaced at <%d>: <%d %s>",
			a.ID, at, n.Previous.Seconds(), n.Previous.Message)
	case domain.KindDisplayed:
		if a.Replaced {
			return fmt.Sprintf("Replacement Alarm With Message Number (%d) Displayed at <%d>: <%d %s>",
				a.ID, at, a.Seconds(), a.Message)
		}

		return fmt.Sprintf("Alarm With Message Number (%d) Displayed at <%d>: <%d %s>",
			a.ID, at, a.Seconds(), a.Message)
	case domain.KindDisplayExiting:
		return fmt.Sprintf("Display thread exiting at <%d>: <%d %s>", at, a.Seconds(), a.Message)
	default:
		return fmt.Sprintf("Unknown notice %d for alarm (%d) at <%d>", n.Kind, a.ID, at)
	}
}

// FormatList renders a snapshot as `[list: deadline(remaining)["message"]...]`.
func FormatList(alarms []domain.Alarm, now time.Time) string {
	var b strings.Builder

	b.WriteString("[list: ")

	for i := range alarms {
		deadline := alarms[i].Deadline.Unix()
		fmt.Fprintf(&b, "%d(%d)[\"%s\"]", deadline, deadline-now.Unix(), alarms[i].Message)
	}

	b.WriteString("]")

	return b.String()
}
