// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riclolsen/go-iec104/asdu"
	"github.com/riclolsen/go-iec104/clog"
)

// timeoutResolution is the scan resolution of the timer deadlines. All
// timers are logical deadlines against the monotonic clock, checked on
// one ticker, so no timer outlives the session task.
const timeoutResolution = 100 * time.Millisecond

// Session lifecycle states.
const (
	// StateClosed before the transport exists
	StateClosed uint32 = iota
	// StateConnecting transport up, data transfer not started
	StateConnecting
	// StateRunning data transfer active
	StateRunning
	// StateStopped terminal; the session object must be discarded
	StateStopped
)

// seqPending tracks one unacknowledged sent I format APDU.
type seqPending struct {
	seq      uint16
	sendTime time.Time
}

// Session is one IEC 60870-5-104 connection in either role. All
// mutable protocol state is owned by the session run loop; the public
// methods communicate with it through channels only.
type Session struct {
	clog.Clog
	config Config
	params *asdu.Params
	conn   io.ReadWriteCloser
	// true when this end is the controlled station
	isServer  bool
	rateCheck RateCheck

	state uint32 // atomic lifecycle state
	// atomic flag, data transfer active
	active uint32

	rcvRaw   chan []byte // complete APDUs from the receive loop
	sendASDU chan []byte // marshalled ASDUs awaiting window admission
	startDt  chan struct{}
	stopDt   chan struct{}
	closeReq chan struct{}
	rcvASDU  chan *asdu.ASDU

	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	activated    chan struct{}
	activateOnce sync.Once
	err          error
	closeOnce    sync.Once
	closing      uint32 // atomic, close already requested
	wg           sync.WaitGroup
}

func newSession(conn io.ReadWriteCloser, cfg Config, params *asdu.Params,
	isServer bool, rateCheck RateCheck, l clog.Clog) *Session {
	sf := &Session{
		Clog:      l,
		config:    cfg,
		params:    params,
		conn:      conn,
		isServer:  isServer,
		rateCheck: rateCheck,
		state:     StateConnecting,
		rcvRaw:    make(chan []byte, 16),
		sendASDU:  make(chan []byte),
		startDt:   make(chan struct{}, 1),
		stopDt:    make(chan struct{}, 1),
		closeReq:  make(chan struct{}),
		rcvASDU:   make(chan *asdu.ASDU, 64),
		done:      make(chan struct{}),
		activated: make(chan struct{}),
	}
	sf.ctx, sf.cancel = context.WithCancel(context.Background())
	activeSessions.Inc()
	sf.wg.Add(2)
	go sf.recvLoop()
	go sf.run()
	return sf
}

// Params returns the ASDU parameters of the session.
func (sf *Session) Params() *asdu.Params { return sf.params }

// State returns the current lifecycle state.
func (sf *Session) State() uint32 { return atomic.LoadUint32(&sf.state) }

// IsActive reports whether data transfer is started.
func (sf *Session) IsActive() bool { return atomic.LoadUint32(&sf.active) == 1 }

// Done is closed once the session reached the stopped state.
func (sf *Session) Done() <-chan struct{} { return sf.done }

// Activated is closed the first time data transfer becomes active.
func (sf *Session) Activated() <-chan struct{} { return sf.activated }

// Err returns the terminal error after Done is closed; nil means the
// session ended gracefully.
func (sf *Session) Err() error {
	select {
	case <-sf.done:
		return sf.err
	default:
		return nil
	}
}

// RemoteAddr returns the peer address when the transport exposes one.
func (sf *Session) RemoteAddr() net.Addr {
	if c, ok := sf.conn.(net.Conn); ok {
		return c.RemoteAddr()
	}
	return nil
}

// Send submits an ASDU for transmission. It fails immediately when
// data transfer is not active; use SendCtx for a bounded wait.
func (sf *Session) Send(a *asdu.ASDU) error {
	if !sf.IsActive() {
		return ErrNotActive
	}
	return sf.SendCtx(context.Background(), a)
}

// SendCtx submits an ASDU for transmission, suspending until the send
// window admits it, the context is cancelled, or the session stops. It
// returns as soon as the run loop has taken the ASDU; the transport
// write happens afterwards on the run loop, and a failure of that write
// surfaces as the session's terminal error, not from SendCtx.
func (sf *Session) SendCtx(ctx context.Context, a *asdu.ASDU) error {
	data, err := a.MarshalBinary()
	if err != nil {
		return err
	}
	select {
	case sf.sendASDU <- data:
		return nil
	case <-sf.done:
		if sf.err != nil {
			return sf.err
		}
		return ErrUseClosedConnection
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next received ASDU. On session termination it
// returns the terminal error, or io.EOF after a graceful stop.
func (sf *Session) Recv(ctx context.Context) (*asdu.ASDU, error) {
	select {
	case a := <-sf.rcvASDU:
		return a, nil
	case <-sf.done:
		// drain what was delivered before termination
		select {
		case a := <-sf.rcvASDU:
			return a, nil
		default:
		}
		if sf.err != nil {
			return nil, sf.err
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StartDataTransfer requests a STARTDT activation. Only the
// controlling station may initiate it.
func (sf *Session) StartDataTransfer() error {
	if sf.isServer {
		return errors.New("controlled station cannot initiate start of data transfer")
	}
	select {
	case sf.startDt <- struct{}{}:
		return nil
	case <-sf.done:
		return ErrUseClosedConnection
	}
}

// StopDataTransfer requests a STOPDT activation without closing the
// connection. Only the controlling station may initiate it.
func (sf *Session) StopDataTransfer() error {
	if sf.isServer {
		return errors.New("controlled station cannot initiate stop of data transfer")
	}
	select {
	case sf.stopDt <- struct{}{}:
		return nil
	case <-sf.done:
		return ErrUseClosedConnection
	}
}

// Close stops the session gracefully: admitted I format APDUs are
// acknowledged or time out, a STOPDT handshake bounded by t1 follows,
// then the transport closes. Close blocks until the session stopped.
func (sf *Session) Close() error {
	if atomic.CompareAndSwapUint32(&sf.closing, 0, 1) {
		close(sf.closeReq)
	}
	<-sf.done
	return sf.err
}

// Abort closes the transport immediately and reports the stopped state
// with an aborted error.
func (sf *Session) Abort() {
	sf.terminate(ErrAborted)
}

// terminate drives the session to the stopped state exactly once.
func (sf *Session) terminate(err error) {
	sf.closeOnce.Do(func() {
		sf.err = err
		atomic.StoreUint32(&sf.state, StateStopped)
		atomic.StoreUint32(&sf.active, 0)
		sf.cancel()
		_ = sf.conn.Close()
		close(sf.done)
		activeSessions.Dec()
		if err != nil {
			sf.Warn("session stopped: %v", err)
		} else {
			sf.Debug("session stopped")
		}
	})
}

// recvLoop scans the transport for complete APDUs and feeds the run
// loop.
func (sf *Session) recvLoop() {
	defer sf.wg.Done()
	decoder := newFrameDecoder(sf.conn, sf.config.RecvBufferMax)
	for {
		apdu, err := decoder.next()
		if err != nil {
			switch {
			case errors.Is(err, ErrFramingViolation),
				errors.Is(err, ErrMalformedLength),
				errors.Is(err, ErrBufferExceeded):
				sf.terminate(err)
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed),
				errors.Is(err, io.ErrClosedPipe):
				// graceful when the stop handshake completed first
				sf.terminate(ErrTransportClosed)
			default:
				sf.terminate(fmt.Errorf("%w: %v", ErrTransportClosed, err))
			}
			return
		}
		select {
		case sf.rcvRaw <- apdu:
		case <-sf.ctx.Done():
			return
		}
	}
}

// write sends one APDU on the transport. Transport writes happen only
// on the run loop, so the OS buffer is the single point of suspension.
func (sf *Session) write(apdu []byte) bool {
	framesTx.Inc()
	if _, err := sf.conn.Write(apdu); err != nil {
		sf.terminate(fmt.Errorf("%w: %v", ErrTransportClosed, err))
		return false
	}
	return true
}

// run is the session task: it multiplexes transport frames, caller
// submissions, timer deadlines and cancellation, and owns every piece
// of mutable protocol state.
func (sf *Session) run() {
	defer func() {
		sf.wg.Done()
		// no-op when a fatal path already stopped the session
		sf.terminate(nil)
	}()
	sf.Debug("session run started (server=%v)", sf.isServer)

	var (
		// send direction: v(S), v(A) and the unacknowledged queue
		sendSeqNo  uint16
		ackSendSeq uint16
		pending    []seqPending
		// receive direction: v(R) and the unacknowledged counter
		rcvSeqNo     uint16
		unAckRcvNum  uint16
		unAckRcvTime time.Time
		// timer anchors; zero time means disarmed
		t1Anchor  time.Time // oldest unacknowledged I frame
		testTime  time.Time // test frame activation outstanding
		startTime time.Time // STARTDT activation outstanding
		stopTime  time.Time // STOPDT activation outstanding
		idleTime  = time.Now()
		connTime  = time.Now()
		everRan   bool
		// graceful shutdown phases
		stopping bool
		stopReq  time.Time
		stopSent bool
	)

	dtActive := func() bool { return atomic.LoadUint32(&sf.active) == 1 }
	setActive := func(on bool) {
		if on {
			atomic.StoreUint32(&sf.active, 1)
			atomic.StoreUint32(&sf.state, StateRunning)
			everRan = true
			sf.activateOnce.Do(func() { close(sf.activated) })
		} else {
			atomic.StoreUint32(&sf.active, 0)
			if atomic.LoadUint32(&sf.state) == StateRunning {
				atomic.StoreUint32(&sf.state, StateConnecting)
			}
		}
	}

	sendSFrame := func() bool {
		unAckRcvNum = 0
		unAckRcvTime = time.Time{}
		return sf.write(newSFrame(rcvSeqNo))
	}

	// cumulative acknowledgement of sent I frames; fatal when the
	// acknowledged number lies outside [v(A), v(S)] on the circle
	updateAck := func(nr uint16, now time.Time) error {
		if seqNoCount(nr, sendSeqNo) > seqNoCount(ackSendSeq, sendSeqNo) {
			return fmt.Errorf("%w: N(R)=%d with v(A)=%d v(S)=%d",
				ErrNrOutOfRange, nr, ackSendSeq, sendSeqNo)
		}
		progressed := false
		for len(pending) > 0 && pending[0].seq != nr {
			pending = pending[1:]
			progressed = true
		}
		if progressed {
			ackSendSeq = nr
			if len(pending) > 0 {
				t1Anchor = now
			} else {
				t1Anchor = time.Time{}
			}
		}
		return nil
	}

	// client opens by activating data transfer
	if !sf.isServer {
		if !sf.write(newUFrame(uStartDtActive)) {
			return
		}
		startTime = time.Now()
	}

	ticker := time.NewTicker(timeoutResolution)
	defer ticker.Stop()

	closeReq := sf.closeReq // local arm, disabled after the first fire

	for {
		// the send window gates submissions: the arm is nil while full,
		// suspending callers in SendCtx
		var submit chan []byte
		if dtActive() && !stopping && seqNoCount(ackSendSeq, sendSeqNo) < sf.config.SendUnAckLimitK {
			submit = sf.sendASDU
		}

		select {
		case <-sf.ctx.Done():
			return

		case data := <-submit:
			now := time.Now()
			apdu, err := newIFrame(sendSeqNo, rcvSeqNo, data)
			if err != nil {
				sf.terminate(err)
				return
			}
			if len(pending) == 0 {
				t1Anchor = now
			}
			pending = append(pending, seqPending{seq: sendSeqNo, sendTime: now})
			sendSeqNo = (sendSeqNo + 1) & 0x7fff
			if seqNoCount(ackSendSeq, sendSeqNo) > sf.config.SendUnAckLimitK {
				sf.terminate(ErrWindowOverflow)
				return
			}
			// the I frame carries v(R), acknowledging everything received
			unAckRcvNum = 0
			unAckRcvTime = time.Time{}
			if !sf.write(apdu) {
				return
			}

		case <-sf.startDt:
			if !dtActive() && startTime.IsZero() {
				if !sf.write(newUFrame(uStartDtActive)) {
					return
				}
				startTime = time.Now()
			}

		case <-sf.stopDt:
			if dtActive() && stopTime.IsZero() {
				if !sf.write(newUFrame(uStopDtActive)) {
					return
				}
				stopTime = time.Now()
			}

		case <-closeReq:
			closeReq = nil // fires once
			if !dtActive() {
				sf.terminate(nil)
				return
			}
			stopping = true
			stopReq = time.Now()

		case apdu := <-sf.rcvRaw:
			now := time.Now()
			framesRx.Inc()
			head, asduBytes, err := parse(apdu)
			if err != nil {
				sf.terminate(err)
				return
			}
			idleTime = now
			sf.Debug("RX %v", head)

			switch head := head.(type) {
			case iAPCI:
				if !dtActive() {
					sf.terminate(fmt.Errorf("%w: I-frame while data transfer stopped", ErrProtocolViolation))
					return
				}
				if head.sendSN != rcvSeqNo {
					sf.terminate(fmt.Errorf("%w: N(S)=%d, expected %d",
						ErrProtocolViolation, head.sendSN, rcvSeqNo))
					return
				}
				if err := updateAck(head.rcvSN, now); err != nil {
					sf.terminate(err)
					return
				}
				if sf.rateCheck != nil && !sf.rateCheck(FrameMeta{
					RemoteAddr: sf.RemoteAddr(),
					TypeID:     asdu.TypeID(asduBytes[0]),
					APDULen:    len(apdu),
				}) {
					sf.terminate(fmt.Errorf("%w: rate check", ErrPolicyViolation))
					return
				}
				rcvSeqNo = (rcvSeqNo + 1) & 0x7fff
				if unAckRcvNum == 0 {
					unAckRcvTime = now
				}
				unAckRcvNum++
				if unAckRcvNum >= sf.config.RecvUnAckLimitW {
					if !sendSFrame() {
						return
					}
				}

				a := asdu.NewEmptyASDU(sf.params)
				if err := a.UnmarshalBinary(asduBytes); err != nil {
					sf.terminate(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
					return
				}
				if err := a.CheckObjects(); err != nil {
					var unhandled *asdu.UnhandledTypeError
					if !errors.As(err, &unhandled) {
						// truncated, trailing bytes or empty body
						sf.terminate(err)
						return
					}
					// unregistered types surface to the caller with the
					// raw body intact; the session continues
					sf.Warn("unhandled type: %v", unhandled)
				}
				select {
				case sf.rcvASDU <- a:
				default:
					select {
					case sf.rcvASDU <- a:
					case <-sf.ctx.Done():
						return
					case <-sf.closeReq:
						// closing with a saturated receive queue: the ASDU
						// is dropped so the stop handshake can proceed
						sf.Warn("dropping ASDU received while closing")
					}
				}

			case sAPCI:
				if err := updateAck(head.rcvSN, now); err != nil {
					sf.terminate(err)
					return
				}

			case uAPCI:
				switch head.function {
				case uStartDtActive:
					if !sf.isServer {
						sf.terminate(fmt.Errorf("%w: STARTDT act at controlling station", ErrProtocolViolation))
						return
					}
					if !sf.write(newUFrame(uStartDtConfirm)) {
						return
					}
					setActive(true)
				case uStartDtConfirm:
					if startTime.IsZero() {
						sf.terminate(fmt.Errorf("%w: unexpected STARTDT con", ErrProtocolViolation))
						return
					}
					startTime = time.Time{}
					setActive(true)
				case uStopDtActive:
					// drain the acknowledgement obligation, confirm, close
					if unAckRcvNum > 0 && !sendSFrame() {
						return
					}
					if !sf.write(newUFrame(uStopDtConfirm)) {
						return
					}
					sf.terminate(nil)
					return
				case uStopDtConfirm:
					if stopSent {
						sf.terminate(nil)
						return
					}
					if stopTime.IsZero() {
						sf.terminate(fmt.Errorf("%w: unexpected STOPDT con", ErrProtocolViolation))
						return
					}
					stopTime = time.Time{}
					setActive(false)
				case uTestFrActive:
					if !sf.write(newUFrame(uTestFrConfirm)) {
						return
					}
				case uTestFrConfirm:
					testTime = time.Time{}
				}
			}

		case now := <-ticker.C:
			// t0: establishment covers transport up to data transfer
			if !everRan && now.Sub(connTime) >= sf.config.ConnectTimeout0 {
				sf.terminate(ErrTimeoutT0)
				return
			}
			// t1: STARTDT/STOPDT/TESTFR activation unconfirmed
			for _, anchor := range []time.Time{startTime, stopTime, testTime} {
				if !anchor.IsZero() && now.Sub(anchor) >= sf.config.SendUnAckTimeout1 {
					sf.terminate(ErrTimeoutT1)
					return
				}
			}
			// t1: oldest sent I frame unacknowledged
			if !t1Anchor.IsZero() && now.Sub(t1Anchor) >= sf.config.SendUnAckTimeout1 {
				sf.terminate(ErrTimeoutT1)
				return
			}
			// t2: latest acknowledgement of received I frames
			if unAckRcvNum > 0 && now.Sub(unAckRcvTime) >= sf.config.RecvUnAckTimeout2 {
				if !sendSFrame() {
					return
				}
			}
			// t3: idle supervision; no re-arm while a test frame is
			// outstanding
			if now.Sub(idleTime) >= sf.config.IdleTimeout3 && testTime.IsZero() {
				if !sf.write(newUFrame(uTestFrActive)) {
					return
				}
				testTime = now
			}
			// graceful stop: wait for the window to drain, then STOPDT
			if stopping && !stopSent {
				if len(pending) == 0 || now.Sub(stopReq) >= sf.config.SendUnAckTimeout1 {
					if unAckRcvNum > 0 && !sendSFrame() {
						return
					}
					if !sf.write(newUFrame(uStopDtActive)) {
						return
					}
					stopSent = true
					stopTime = now
				}
			}
		}
	}
}
