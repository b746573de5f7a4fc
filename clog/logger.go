// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog provides the leveled, prefixed logger embedded by the
// protocol clients and servers.
package clog

import (
	"log"
	"os"
	"sync/atomic"
)

// LogProvider is the backend a Clog writes through. Replace it with
// SetLogProvider to route output into another logging system.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog is a small logging facade. The zero value is silent; obtain a
// usable instance with NewLogger and enable output with LogMode.
type Clog struct {
	provider LogProvider
	// 1 enabled, 0 disabled
	hasLog *uint32
}

// NewLogger creates a Clog writing to stderr with the given prefix.
func NewLogger(prefix string) Clog {
	return Clog{
		provider: defaultProvider{log.New(os.Stderr, prefix, log.LstdFlags)},
		hasLog:   new(uint32),
	}
}

// LogMode enables or disables log output.
func (sf Clog) LogMode(enable bool) {
	if sf.hasLog == nil {
		return
	}
	if enable {
		atomic.StoreUint32(sf.hasLog, 1)
	} else {
		atomic.StoreUint32(sf.hasLog, 0)
	}
}

// SetLogProvider replaces the logging backend.
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

func (sf Clog) enabled() bool {
	return sf.hasLog != nil && atomic.LoadUint32(sf.hasLog) == 1 && sf.provider != nil
}

// Critical logs a message at critical level.
func (sf Clog) Critical(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Critical(format, v...)
	}
}

// Error logs a message at error level.
func (sf Clog) Error(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Error(format, v...)
	}
}

// Warn logs a message at warning level.
func (sf Clog) Warn(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Warn(format, v...)
	}
}

// Debug logs a message at debug level.
func (sf Clog) Debug(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Debug(format, v...)
	}
}

type defaultProvider struct {
	*log.Logger
}

func (sf defaultProvider) Critical(format string, v ...interface{}) {
	sf.Printf("[C]: "+format, v...)
}

func (sf defaultProvider) Error(format string, v ...interface{}) {
	sf.Printf("[E]: "+format, v...)
}

func (sf defaultProvider) Warn(format string, v ...interface{}) {
	sf.Printf("[W]: "+format, v...)
}

func (sf defaultProvider) Debug(format string, v ...interface{}) {
	sf.Printf("[D]: "+format, v...)
}
