// Package notice delivers alarm notices to their consumers.
//
// A Sink receives every notice produced by the scheduler. Writer renders
// notices as text lines, Hub broadcasts them to watch subscribers, Recorder
// keeps them in memory and Multi fans out to several sinks.
package notice
