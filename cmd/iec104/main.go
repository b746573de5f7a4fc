// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Command iec104 is a reference controlling/controlled station on top
// of the cs104 package.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riclolsen/go-iec104/cs104"
)

// Exit codes of the reference CLI.
const (
	exitOK        = 0
	exitParam     = 2
	exitProtocol  = 3
	exitPolicy    = 4
	exitTimeout   = 5
	exitTransport = 1
)

var rootCmd = &cobra.Command{
	Use:           "iec104",
	Short:         "IEC 60870-5-104 reference client and server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(clientCmd, serverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "iec104:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps terminal errors onto the CLI exit codes.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errBadParam):
		return exitParam
	case errors.Is(err, cs104.ErrTimeoutT0),
		errors.Is(err, cs104.ErrTimeoutT1),
		errors.Is(err, cs104.ErrTimeoutT3):
		return exitTimeout
	case errors.Is(err, cs104.ErrPolicyViolation):
		return exitPolicy
	case errors.Is(err, cs104.ErrProtocolViolation),
		errors.Is(err, cs104.ErrFramingViolation),
		errors.Is(err, cs104.ErrMalformedLength),
		errors.Is(err, cs104.ErrNrOutOfRange),
		errors.Is(err, cs104.ErrWindowOverflow),
		errors.Is(err, cs104.ErrBufferExceeded):
		return exitProtocol
	default:
		return exitTransport
	}
}

// errBadParam tags configuration and flag errors.
var errBadParam = errors.New("parameter error")
