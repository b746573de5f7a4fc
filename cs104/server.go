// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/riclolsen/go-iec104/asdu"
	"github.com/riclolsen/go-iec104/clog"
)

// Server is an IEC 60870-5-104 controlled station. It accepts
// controlling station connections, applies the connection policy and
// runs one session per connection.
type Server struct {
	config    Config
	params    asdu.Params
	handler   ServerHandlerInterface
	policy    ConnectionPolicy
	rateCheck RateCheck
	tlsConfig *tls.Config
	onSession func(*Session)

	listener net.Listener
	sessions map[*Session]struct{}
	rwMux    sync.RWMutex

	clog.Clog
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a controlled station server.
func NewServer(handler ServerHandlerInterface) *Server {
	srv := &Server{
		config:    DefaultConfig(),
		params:    *asdu.ParamsStandard104,
		handler:   handler,
		sessions:  make(map[*Session]struct{}),
		onSession: func(*Session) {},
		Clog:      clog.NewLogger("cs104 server => "),
	}
	srv.Clog.LogMode(true)
	return srv
}

// SetConfig sets the session configuration. Must be called before
// ListenAndServe.
func (sf *Server) SetConfig(cfg Config) *Server {
	if err := cfg.Valid(); err != nil {
		sf.Warn("invalid config provided: %v. keeping previous", err)
	} else {
		sf.config = cfg
	}
	return sf
}

// SetParams sets the ASDU parameters. Must be called before
// ListenAndServe.
func (sf *Server) SetParams(p *asdu.Params) *Server {
	if err := p.Valid(); err != nil {
		sf.Warn("invalid ASDU params provided: %v. using 104 standard", err)
		sf.params = *asdu.ParamsStandard104
	} else {
		sf.params = *p
	}
	return sf
}

// SetConnectionPolicy installs the connection admission hook, invoked
// before a session enters the connecting state.
func (sf *Server) SetConnectionPolicy(p ConnectionPolicy) *Server {
	sf.policy = p
	return sf
}

// SetRateCheck installs the frame dispatch hook applied on every
// session.
func (sf *Server) SetRateCheck(rc RateCheck) *Server {
	sf.rateCheck = rc
	return sf
}

// SetTLSConfig serves TLS on the listening socket.
func (sf *Server) SetTLSConfig(c *tls.Config) *Server {
	sf.tlsConfig = c
	return sf
}

// SetOnSessionHandler sets the callback invoked for every admitted
// session.
func (sf *Server) SetOnSessionHandler(f func(*Session)) *Server {
	if f != nil {
		sf.onSession = f
	}
	return sf
}

// SetLogMode enables or disables logging output.
func (sf *Server) SetLogMode(enable bool) {
	sf.Clog.LogMode(enable)
}

// ListenAndServe listens on addr and serves sessions until Close. It
// always returns a non-nil error.
func (sf *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if sf.tlsConfig != nil {
		listener = tls.NewListener(listener, sf.tlsConfig)
	}
	return sf.Serve(listener)
}

// Serve accepts sessions on the listener until Close.
func (sf *Server) Serve(listener net.Listener) error {
	sf.rwMux.Lock()
	if sf.listener != nil {
		sf.rwMux.Unlock()
		return errors.New("server already serving")
	}
	sf.listener = listener
	sf.ctx, sf.cancel = context.WithCancel(context.Background())
	sf.rwMux.Unlock()

	sf.Debug("listening on %s", listener.Addr())
	group, ctx := errgroup.WithContext(sf.ctx)
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			default:
			}
			sf.cancel()
			if waitErr := group.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
				sf.Warn("session group ended: %v", waitErr)
			}
			return err
		}

		if sf.policy != nil && !sf.policy(conn.RemoteAddr()) {
			sf.Warn("connection from %s rejected by policy", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		group.Go(func() error {
			sf.handleConn(ctx, conn)
			return nil
		})
	}
}

// handleConn runs one session to completion.
func (sf *Server) handleConn(ctx context.Context, conn net.Conn) {
	sf.Debug("session from %s", conn.RemoteAddr())
	session := newSession(conn, sf.config, &sf.params, true, sf.rateCheck,
		clog.NewLogger(fmt.Sprintf("cs104 server [%s] => ", conn.RemoteAddr())))
	sf.rwMux.Lock()
	sf.sessions[session] = struct{}{}
	sf.rwMux.Unlock()
	defer func() {
		sf.rwMux.Lock()
		delete(sf.sessions, session)
		sf.rwMux.Unlock()
	}()

	sf.onSession(session)
	for {
		a, err := session.Recv(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				sf.Debug("session from %s ended", conn.RemoteAddr())
			case errors.Is(err, context.Canceled):
				_ = session.Close()
			default:
				sf.Warn("session from %s failed: %v", conn.RemoteAddr(), err)
			}
			return
		}
		if err := sf.callHandler(session, a); err != nil {
			sf.Warn("handler error: %v (ASDU: %s)", err, a.Identifier)
		}
	}
}

// callHandler safely dispatches one received ASDU to the user handler.
func (sf *Server) callHandler(session *Session, a *asdu.ASDU) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered in handler: %v", r)
			sf.Critical("%v", err)
		}
	}()

	if handlerErr := sf.handler.ASDUHandlerAll(session, a); handlerErr != nil {
		sf.Warn("error in ASDUHandlerAll: %v", handlerErr)
	}

	switch a.Type {
	case asdu.C_IC_NA_1:
		if a.Coa.Cause != asdu.Activation && a.Coa.Cause != asdu.Deactivation {
			return sendUnknownCause(session, a)
		}
		_, qoi, decodeErr := a.GetInterrogationCmd()
		if decodeErr != nil {
			return decodeErr
		}
		err = sf.handler.InterrogationHandler(session, a, qoi)
	case asdu.C_CI_NA_1:
		if a.Coa.Cause != asdu.Activation {
			return sendUnknownCause(session, a)
		}
		_, qcc, decodeErr := a.GetCounterInterrogationCmd()
		if decodeErr != nil {
			return decodeErr
		}
		err = sf.handler.CounterInterrogationHandler(session, a, qcc)
	case asdu.C_CS_NA_1:
		if a.Coa.Cause != asdu.Activation {
			return sendUnknownCause(session, a)
		}
		t, decodeErr := a.GetClockSynchronizationCmd()
		if decodeErr != nil {
			return decodeErr
		}
		err = sf.handler.ClockSyncHandler(session, a, t)
	case asdu.C_SC_NA_1:
		if a.Coa.Cause != asdu.Activation && a.Coa.Cause != asdu.Deactivation {
			return sendUnknownCause(session, a)
		}
		cmd, decodeErr := a.GetSingleCmd()
		if decodeErr != nil {
			return decodeErr
		}
		err = sf.handler.SingleCmdHandler(session, a, cmd)
	case asdu.C_DC_NA_1:
		if a.Coa.Cause != asdu.Activation && a.Coa.Cause != asdu.Deactivation {
			return sendUnknownCause(session, a)
		}
		cmd, decodeErr := a.GetDoubleCmd()
		if decodeErr != nil {
			return decodeErr
		}
		err = sf.handler.DoubleCmdHandler(session, a, cmd)
	default:
		err = sf.handler.ASDUHandler(session, a)
	}
	return err
}

// sendUnknownCause replies negatively with cause "unknown cause of
// transmission".
func sendUnknownCause(c asdu.Connect, a *asdu.ASDU) error {
	reply := a.Mirror(asdu.UnknownCOT)
	reply.Coa.IsNegative = true
	return c.Send(reply)
}

// Sessions returns a snapshot of the running sessions.
func (sf *Server) Sessions() []*Session {
	sf.rwMux.RLock()
	defer sf.rwMux.RUnlock()
	list := make([]*Session, 0, len(sf.sessions))
	for s := range sf.sessions {
		list = append(list, s)
	}
	return list
}

// Close stops accepting connections and closes every session
// gracefully.
func (sf *Server) Close() error {
	sf.rwMux.Lock()
	listener := sf.listener
	sf.listener = nil
	cancel := sf.cancel
	sf.rwMux.Unlock()

	if listener == nil {
		return errors.New("server not serving")
	}
	if cancel != nil {
		cancel()
	}
	return listener.Close()
}
