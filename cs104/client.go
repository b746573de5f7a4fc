// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riclolsen/go-iec104/asdu"
	"github.com/riclolsen/go-iec104/clog"
	"github.com/riclolsen/go-iec104/transport"
)

// Connection states
const (
	statusInitial uint32 = iota
	statusConnecting
	statusConnected
	statusDisconnected
)

// Client is an IEC 60870-5-104 controlling station.
type Client struct {
	option  ClientOption
	handler ClientHandlerInterface

	session *Session
	rwMux   sync.RWMutex

	connStatus uint32

	clog.Clog
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Callbacks
	onConnect        func(c *Client)
	onConnectionLost func(c *Client, err error)
	onConnectError   func(c *Client, err error)
}

// NewClient creates a controlling station client.
func NewClient(handler ClientHandlerInterface, o *ClientOption) *Client {
	opt := *o
	tempLogger := clog.NewLogger("cs104 client => ")
	tempLogger.LogMode(true)

	if err := opt.config.Valid(); err != nil {
		tempLogger.Warn("invalid config provided, using defaults: %v", err)
		opt.config = DefaultConfig()
	}
	if err := opt.params.Valid(); err != nil {
		tempLogger.Warn("invalid ASDU params provided, using 104 standard: %v", err)
		opt.params = *asdu.ParamsStandard104
	}
	if opt.dialer == nil {
		opt.dialer = transport.TCP{Addr: opt.server, TLSConfig: opt.tlsConfig}
	}

	client := &Client{
		option:           opt,
		handler:          handler,
		Clog:             clog.NewLogger(fmt.Sprintf("cs104 client [%s] => ", opt.server)),
		onConnect:        func(*Client) {},
		onConnectionLost: func(*Client, error) {},
		onConnectError:   func(*Client, error) {},
	}
	client.Clog.LogMode(true)
	return client
}

// SetLogMode enables or disables logging output.
func (sf *Client) SetLogMode(enable bool) {
	sf.Clog.LogMode(enable)
}

// SetOnConnectHandler sets the handler called once data transfer is
// active.
func (sf *Client) SetOnConnectHandler(f func(c *Client)) *Client {
	if f != nil {
		sf.onConnect = f
	}
	return sf
}

// SetConnectionLostHandler sets the handler called when the session
// ends.
func (sf *Client) SetConnectionLostHandler(f func(c *Client, err error)) *Client {
	if f != nil {
		sf.onConnectionLost = f
	}
	return sf
}

// SetConnectErrorHandler sets the handler called when a connection
// attempt fails.
func (sf *Client) SetConnectErrorHandler(f func(c *Client, err error)) *Client {
	if f != nil {
		sf.onConnectError = f
	}
	return sf
}

// Start initiates the connection process in the background.
func (sf *Client) Start() error {
	sf.rwMux.Lock()
	if sf.connStatus != statusInitial {
		sf.rwMux.Unlock()
		return errors.New("client already started or starting")
	}
	sf.connStatus = statusConnecting
	sf.ctx, sf.cancel = context.WithCancel(context.Background())
	sf.rwMux.Unlock()

	sf.wg.Add(1)
	go sf.connectionManager()
	return nil
}

// connectionManager handles the connection lifecycle and reconnection.
func (sf *Client) connectionManager() {
	sf.Debug("connection manager started")
	defer func() {
		sf.setConnectStatus(statusInitial)
		sf.wg.Done()
		sf.Debug("connection manager stopped")
	}()

	for {
		select {
		case <-sf.ctx.Done():
			return
		default:
		}

		sf.setConnectStatus(statusConnecting)
		sf.Debug("connecting to %s...", sf.option.server)

		conn, err := sf.option.dialer.Dial(sf.option.config.ConnectTimeout0)
		if err != nil {
			sf.Error("connect to %s failed: %v", sf.option.server, err)
			sf.setConnectStatus(statusDisconnected)
			sf.onConnectError(sf, err)
			if !sf.option.autoReconnect {
				return
			}
			select {
			case <-time.After(sf.option.reconnectInterval):
				continue
			case <-sf.ctx.Done():
				return
			}
		}

		sf.Debug("connected to %s", sf.option.server)
		sf.setConnectStatus(statusConnected)

		session := newSession(conn, sf.option.config, &sf.option.params,
			false, sf.option.rateCheck, sf.Clog)
		sf.rwMux.Lock()
		sf.session = session
		sf.rwMux.Unlock()

		connectionErr := sf.serveSession(session)

		sf.rwMux.Lock()
		sf.session = nil
		sf.rwMux.Unlock()
		sf.setConnectStatus(statusDisconnected)
		sf.onConnectionLost(sf, connectionErr)

		select {
		case <-sf.ctx.Done():
			return
		default:
			if !sf.option.autoReconnect {
				sf.Debug("auto-reconnect disabled, stopping")
				return
			}
			sf.Debug("waiting %.1fs before reconnecting...", sf.option.reconnectInterval.Seconds())
			select {
			case <-time.After(sf.option.reconnectInterval):
			case <-sf.ctx.Done():
				return
			}
		}
	}
}

// serveSession dispatches received ASDUs until the session ends.
// Returns the terminal error, nil for a graceful stop.
func (sf *Client) serveSession(session *Session) error {
	go func() {
		select {
		case <-session.Activated():
			sf.onConnect(sf)
		case <-session.Done():
		case <-sf.ctx.Done():
		}
	}()
	for {
		a, err := session.Recv(sf.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// client shutdown: close the session gracefully
				return session.Close()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := sf.callHandler(a); err != nil {
			sf.Warn("handler error: %v (ASDU: %s)", err, a.Identifier)
		}
	}
}

// callHandler safely calls the appropriate user-defined handler.
func (sf *Client) callHandler(a *asdu.ASDU) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered in handler: %v", r)
			sf.Critical("%v", err)
		}
	}()

	if handlerErr := sf.handler.ASDUHandlerAll(sf, a); handlerErr != nil {
		sf.Warn("error in ASDUHandlerAll: %v", handlerErr)
	}

	cause := a.Coa.Cause
	switch {
	case cause >= asdu.InterrogatedByStation && cause <= asdu.InterrogatedByGroup16:
		err = sf.handler.InterrogationHandler(sf, a)
	case cause >= asdu.RequestByGeneralCounter && cause <= asdu.RequestByGroup4Counter:
		err = sf.handler.CounterInterrogationHandler(sf, a)
	case a.Type == asdu.C_CS_NA_1:
		err = sf.handler.ClockSyncHandler(sf, a)
	default:
		err = sf.handler.ASDUHandler(sf, a)
	}
	return err
}

// setConnectStatus updates the connection status atomically.
func (sf *Client) setConnectStatus(status uint32) {
	atomic.StoreUint32(&sf.connStatus, status)
}

// IsConnected returns true while a transport connection is up.
func (sf *Client) IsConnected() bool {
	return atomic.LoadUint32(&sf.connStatus) == statusConnected
}

// Session returns the current session, nil while disconnected.
func (sf *Client) Session() *Session {
	sf.rwMux.RLock()
	defer sf.rwMux.RUnlock()
	return sf.session
}

// Close disconnects the client and stops the background goroutines.
func (sf *Client) Close() error {
	sf.rwMux.Lock()
	if sf.cancel == nil {
		sf.rwMux.Unlock()
		return errors.New("client not running")
	}
	sf.Debug("close requested")
	sf.cancel()
	sf.cancel = nil
	sf.rwMux.Unlock()
	sf.wg.Wait()
	return nil
}

// --- asdu.Connect interface ---

// Params returns the ASDU parameters of the client.
func (sf *Client) Params() *asdu.Params {
	return &sf.option.params
}

// Send submits an ASDU on the current session.
func (sf *Client) Send(a *asdu.ASDU) error {
	session := sf.Session()
	if session == nil {
		return ErrUseClosedConnection
	}
	return session.Send(a)
}

// --- command wrappers ---

// InterrogationCmd sends a C_IC_NA_1 interrogation command.
func (sf *Client) InterrogationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr,
	qoi asdu.QualifierOfInterrogation) error {
	return asdu.InterrogationCmd(sf, coa, ca, qoi)
}

// CounterInterrogationCmd sends a C_CI_NA_1 counter interrogation
// command.
func (sf *Client) CounterInterrogationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr,
	qcc asdu.QualifierCountCall) error {
	return asdu.CounterInterrogationCmd(sf, coa, ca, qcc)
}

// ClockSynchronizationCmd sends a C_CS_NA_1 clock synchronization
// command.
func (sf *Client) ClockSynchronizationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr,
	t time.Time) error {
	return asdu.ClockSynchronizationCmd(sf, coa, ca, t)
}

// SingleCmd sends a C_SC_NA_1 single command.
func (sf *Client) SingleCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr,
	cmd asdu.SingleCommandInfo) error {
	return asdu.SingleCmd(sf, coa, ca, cmd)
}

// DoubleCmd sends a C_DC_NA_1 double command.
func (sf *Client) DoubleCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr,
	cmd asdu.DoubleCommandInfo) error {
	return asdu.DoubleCmd(sf, coa, ca, cmd)
}
