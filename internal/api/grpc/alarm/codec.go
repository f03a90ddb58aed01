package alarm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/notice"
)

// Message field names.
const (
	fieldID              = "id"
	fieldPeriodSeconds   = "period_seconds"
	fieldMessage         = "message"
	fieldDeadline        = "deadline"
	fieldRevision        = "revision"
	fieldCancelRequested = "cancel_requested"
	fieldReplaced        = "replaced"
	fieldAlarm           = "alarm"
	fieldAlarms          = "alarms"
	fieldPrevious        = "previous"
	fieldKind            = "kind"
	fieldAt              = "at"
	fieldText            = "text"
)

// maxExactInteger is the largest integer a protobuf double holds exactly.
const maxExactInteger = 1 << 53

// errMalformed is returned for messages missing a field or carrying the wrong type.
var errMalformed = errors.New("malformed message")

// SubmitRequest builds the Submit request message.
func SubmitRequest(id int64, period time.Duration, message string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:            structpb.NewNumberValue(float64(id)),
		fieldPeriodSeconds: structpb.NewNumberValue(period.Seconds()),
		fieldMessage:       structpb.NewStringValue(message),
	}}
}

// ParseSubmitRequest decodes a Submit request.
func ParseSubmitRequest(s *structpb.Struct) (int64, time.Duration, string, error) {
	id, err := integerField(s, fieldID)
	if err != nil {
		return 0, 0, "", err
	}

	seconds, err := integerField(s, fieldPeriodSeconds)
	if err != nil {
		return 0, 0, "", err
	}

	if seconds > int64(math.MaxInt64/time.Second) {
		return 0, 0, "", fmt.Errorf("%w: %s is out of range", errMalformed, fieldPeriodSeconds)
	}

	message, err := stringField(s, fieldMessage)
	if err != nil {
		return 0, 0, "", err
	}

	return id, time.Duration(seconds) * time.Second, message, nil
}

// CancelRequest builds the Cancel request message.
func CancelRequest(id int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID: structpb.NewNumberValue(float64(id)),
	}}
}

// ParseCancelRequest decodes a Cancel request.
func ParseCancelRequest(s *structpb.Struct) (int64, error) {
	return integerField(s, fieldID)
}

// SubmitResponse builds the Submit response message.
func SubmitResponse(a *domain.Alarm, replaced bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldAlarm:    structpb.NewStructValue(AlarmToStruct(a)),
		fieldReplaced: structpb.NewBoolValue(replaced),
	}}
}

// ParseSubmitResponse decodes a Submit response.
func ParseSubmitResponse(s *structpb.Struct) (domain.Alarm, bool, error) {
	a, err := alarmField(s, fieldAlarm)
	if err != nil {
		return domain.Alarm{}, false, err
	}

	return a, s.GetFields()[fieldReplaced].GetBoolValue(), nil
}

// CancelResponse builds the Cancel response message.
func CancelResponse(a *domain.Alarm) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldAlarm: structpb.NewStructValue(AlarmToStruct(a)),
	}}
}

// ParseCancelResponse decodes a Cancel response.
func ParseCancelResponse(s *structpb.Struct) (domain.Alarm, error) {
	return alarmField(s, fieldAlarm)
}

// ListResponse builds the List response message.
func ListResponse(alarms []domain.Alarm) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(alarms))
	for i := range alarms {
		values = append(values, structpb.NewStructValue(AlarmToStruct(&alarms[i])))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldAlarms: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// ParseListResponse decodes a List response.
func ParseListResponse(s *structpb.Struct) ([]domain.Alarm, error) {
	values := s.GetFields()[fieldAlarms].GetListValue().GetValues()
	result := make([]domain.Alarm, 0, len(values))

	for i, v := range values {
		st := v.GetStructValue()
		if st == nil {
			return nil, fmt.Errorf("%w: %s[%d] is not an object", errMalformed, fieldAlarms, i)
		}

		a, err := AlarmFromStruct(st)
		if err != nil {
			return nil, err
		}

		result = append(result, a)
	}

	return result, nil
}

// AlarmToStruct encodes an alarm.
func AlarmToStruct(a *domain.Alarm) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:              structpb.NewNumberValue(float64(a.ID)),
		fieldPeriodSeconds:   structpb.NewNumberValue(float64(a.Seconds())),
		fieldMessage:         structpb.NewStringValue(a.Message),
		fieldDeadline:        structpb.NewNumberValue(float64(a.Deadline.Unix())),
		fieldRevision:        structpb.NewNumberValue(float64(a.Revision)),
		fieldCancelRequested: structpb.NewBoolValue(a.CancelRequested),
		fieldReplaced:        structpb.NewBoolValue(a.Replaced),
	}}
}

// AlarmFromStruct decodes an alarm.
func AlarmFromStruct(s *structpb.Struct) (domain.Alarm, error) {
	id, period, message, err := ParseSubmitRequest(s)
	if err != nil {
		return domain.Alarm{}, err
	}

	deadline, err := integerField(s, fieldDeadline)
	if err != nil {
		return domain.Alarm{}, err
	}

	fields := s.GetFields()

	return domain.Alarm{
		ID:              id,
		Period:          period,
		Message:         message,
		Deadline:        time.Unix(deadline, 0),
		Revision:        uint64(max(0, int64(fields[fieldRevision].GetNumberValue()))),
		CancelRequested: fields[fieldCancelRequested].GetBoolValue(),
		Replaced:        fields[fieldReplaced].GetBoolValue(),
	}, nil
}

// NoticeToStruct encodes a notice for the Watch stream. The rendered line is
// included so clients can print it without knowing the wording.
func NoticeToStruct(n *domain.Notice) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldKind:  structpb.NewStringValue(n.Kind.String()),
		fieldAt:    structpb.NewNumberValue(float64(n.At.Unix())),
		fieldAlarm: structpb.NewStructValue(AlarmToStruct(&n.Alarm)),
		fieldText:  structpb.NewStringValue(notice.Format(n)),
	}

	if n.Kind == domain.KindDisplayReplaced {
		fields[fieldPrevious] = structpb.NewStructValue(AlarmToStruct(&n.Previous))
	}

	return &structpb.Struct{Fields: fields}
}

// NoticeFromStruct decodes a Watch stream message.
func NoticeFromStruct(s *structpb.Struct) (domain.Notice, error) {
	name, err := stringField(s, fieldKind)
	if err != nil {
		return domain.Notice{}, err
	}

	kind, ok := domain.ParseNoticeKind(name)
	if !ok {
		return domain.Notice{}, fmt.Errorf("%w: unknown notice kind %q", errMalformed, name)
	}

	at, err := integerField(s, fieldAt)
	if err != nil {
		return domain.Notice{}, err
	}

	a, err := alarmField(s, fieldAlarm)
	if err != nil {
		return domain.Notice{}, err
	}

	n := domain.Notice{
		Kind:  kind,
		At:    time.Unix(at, 0),
		Alarm: a,
	}

	if _, ok = s.GetFields()[fieldPrevious]; ok {
		if n.Previous, err = alarmField(s, fieldPrevious); err != nil {
			return domain.Notice{}, err
		}
	}

	return n, nil
}

func alarmField(s *structpb.Struct, name string) (domain.Alarm, error) {
	st := s.GetFields()[name].GetStructValue()
	if st == nil {
		return domain.Alarm{}, fmt.Errorf("%w: %s is required", errMalformed, name)
	}

	return AlarmFromStruct(st)
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", errMalformed, name)
	}

	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", errMalformed, name)
	}

	return str.StringValue, nil
}

// integerField reads a number that must hold an exact integer.
func integerField(s *structpb.Struct, name string) (int64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", errMalformed, name)
	}

	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", errMalformed, name)
	}

	f := num.NumberValue
	if math.Trunc(f) != f || math.Abs(f) > maxExactInteger {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", errMalformed, name, f)
	}

	return int64(f), nil
}
