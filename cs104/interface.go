// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"time"

	"github.com/riclolsen/go-iec104/asdu"
)

// ServerHandlerInterface is the interface of the server (controlled
// station) handler. Handlers reply through the Connect, typically with
// SendReplyMirror for confirmations and terminations.
type ServerHandlerInterface interface {
	InterrogationHandler(asdu.Connect, *asdu.ASDU, asdu.QualifierOfInterrogation) error
	CounterInterrogationHandler(asdu.Connect, *asdu.ASDU, asdu.QualifierCountCall) error
	ClockSyncHandler(asdu.Connect, *asdu.ASDU, time.Time) error
	SingleCmdHandler(asdu.Connect, *asdu.ASDU, asdu.SingleCommandInfo) error
	DoubleCmdHandler(asdu.Connect, *asdu.ASDU, asdu.DoubleCommandInfo) error
	ASDUHandler(asdu.Connect, *asdu.ASDU) error
	// ASDUHandlerAll sees every application message before dispatch
	ASDUHandlerAll(asdu.Connect, *asdu.ASDU) error
}

// ClientHandlerInterface is the interface of the client (controlling
// station) handler.
type ClientHandlerInterface interface {
	InterrogationHandler(asdu.Connect, *asdu.ASDU) error
	CounterInterrogationHandler(asdu.Connect, *asdu.ASDU) error
	ClockSyncHandler(asdu.Connect, *asdu.ASDU) error
	ASDUHandler(asdu.Connect, *asdu.ASDU) error
	// ASDUHandlerAll sees every application message before dispatch
	ASDUHandlerAll(asdu.Connect, *asdu.ASDU) error
}
