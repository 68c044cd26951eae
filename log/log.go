/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package log implements a leveled logger on top of the standard library
// one, filtered through hashicorp/logutils.
package log

import (
	"fmt"
	"log"
	"os"

	"github.com/hashicorp/logutils"
)

// Log levels constants
const (
	SILENT = "silent"
	ERROR  = "error"
	INFO   = "info"
	DEBUG  = "debug"

	caller = 3
)

// Private interface for the std variable.
type logger interface {
	Error(v ...interface{})
	Errorf(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	GetLogger() *log.Logger
	GetLoggerLevel() string
}

func getFilter(lv string) *logutils.LevelFilter {

	mapLevel := map[string]logutils.LogLevel{
		ERROR: "ERROR",
		INFO:  "INFO",
		DEBUG: "DEBUG",
	}

	return &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "ERROR"},
		MinLevel: mapLevel[lv],
		Writer:   os.Stdout,
	}
}

const stdFlags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile | log.LUTC

// The default logger is an log.ERROR level.
var std logger = newError(getFilter(ERROR), "Treelog: ", stdFlags)

// To allow mocking we require a switchable variable.
var osExit = os.Exit

// Below is the public interface for the logger, a proxy for the switchable
// implementation defined in std.

// Error is the public log function to report failures that do not stop
// the process.
func Error(v ...interface{}) {
	std.Error(v...)
}

// Errorf is the public log function with params to report failures that
// do not stop the process.
func Errorf(format string, v ...interface{}) {
	std.Errorf(format, v...)
}

// Fatal is the public log function to write to stdOut and stop execution.
func Fatal(v ...interface{}) {
	std.Fatal(v...)
}

// Fatalf is the public log function with params to write to stdOut and
// stop execution.
func Fatalf(format string, v ...interface{}) {
	std.Fatalf(format, v...)
}

// Info is the public log function to write information relative to the
// usage of the treelog packages.
func Info(v ...interface{}) {
	std.Info(v...)
}

// Infof is the public log function to write information with params
// relative to the usage of the treelog packages.
func Infof(format string, v ...interface{}) {
	std.Infof(format, v...)
}

// Debug is the public log function to write internal debug information.
func Debug(v ...interface{}) {
	std.Debug(v...)
}

// Debugf is the public log function to write internal debug information
// with params.
func Debugf(format string, v ...interface{}) {
	std.Debugf(format, v...)
}

// GetLogger returns a default log.Logger instance. Useful to let third
// party modules use the same formatting options defined here.
func GetLogger() *log.Logger {
	return std.GetLogger()
}

// GetLoggerLevel returns the string representation of the log.Logger level.
func GetLoggerLevel() string {
	return std.GetLoggerLevel()
}

// SetLogger is a function that switches between verbosity loggers. Default
// is error level. Available levels are "silent", "debug", "info" and "error".
func SetLogger(namespace, lv string) {

	prefix := fmt.Sprintf("%s ", namespace)

	switch lv {
	case SILENT:
		std = newSilent()
	case ERROR:
		std = newError(getFilter(lv), prefix, stdFlags)
	case INFO:
		std = newInfo(getFilter(lv), prefix, stdFlags)
	case DEBUG:
		std = newDebug(getFilter(lv), prefix, stdFlags)
	default:
		l := newInfo(getFilter(INFO), prefix, stdFlags)
		l.Infof("Incorrect level of verbosity (%v) fallback to log.INFO", lv)
		std = l
	}

}
