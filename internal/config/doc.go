// Package config defines the settings used by alarm-cond and alarm-ctl and
// provides helpers to load, validate and save them in YAML format.
//
// A missing default settings file is not an error; the built-in defaults are
// used instead.
package config
