// Package console is the interactive front-end of the alarm daemon.
//
// It accepts three commands, one per line:
//
//	<seconds> Message(<id>) <text>   submit or replace an alarm
//	Cancel: Message(<id>)            cancel an alarm
//	List                             dump the live alarms
//
// Messages longer than 127 bytes are truncated. Rejected cancels are printed
// with the regular output and unparsable lines on the error writer; both are
// rate limited per category.
package console
