// Package alarm contains core domain types for periodic alarm displays.
//
// It defines Alarm (one timed redisplay request), Notice (an event emitted
// toward the output sink) and the sentinel errors reported by the store.
// Alarms are plain values: every accessor hands out a copy so no caller can
// observe a record while the store mutates it.
package alarm
