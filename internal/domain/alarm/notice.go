package alarm

import "time"

// NoticeKind identifies what happened to an alarm.
type NoticeKind int

const (
	// KindReceived reports a newly inserted alarm.
	KindReceived NoticeKind = iota + 1
	// KindReplaceReceived reports a submit that replaced an existing alarm.
	KindReplaceReceived
	// KindCancelReceived acknowledges an accepted cancel request.
	KindCancelReceived
	// KindProcessed reports that the coordinator handled the alarm.
	KindProcessed
	// KindDisplayed is emitted by a display worker on every period.
	KindDisplayed
	// KindDisplayReplaced is emitted once per replacement observed by a worker.
	KindDisplayReplaced
	// KindDisplayExiting is emitted when a display worker terminates.
	KindDisplayExiting
)

// String returns the stable name of the kind.
func (k NoticeKind) String() string {
	switch k {
	case KindReceived:
		return "received"
	case KindReplaceReceived:
		return "replace-received"
	case KindCancelReceived:
		return "cancel-received"
	case KindProcessed:
		return "processed"
	case KindDisplayed:
		return "displayed"
	case KindDisplayReplaced:
		return "display-replaced"
	case KindDisplayExiting:
		return "display-exiting"
	default:
		return "unknown"
	}
}

// Notice is an event emitted toward the output sink.
type Notice struct {
	// At is when the notice was produced.
	At time.Time
	// Alarm is a snapshot of the alarm the notice is about.
	Alarm Alarm
	// Previous holds the content shown before a replacement, for KindDisplayReplaced.
	Previous Alarm
	// Kind is what happened.
	Kind NoticeKind
}

// ParseNoticeKind returns the kind named s, as produced by NoticeKind.String.
func ParseNoticeKind(s string) (NoticeKind, bool) {
	for k := KindReceived; k <= KindDisplayExiting; k++ {
		if k.String() == s {
			return k, true
		}
	}

	return 0, false
}
