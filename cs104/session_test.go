// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riclolsen/go-iec104/asdu"
	"github.com/riclolsen/go-iec104/clog"
)

// testPeer drives the raw side of a piped session.
type testPeer struct {
	t    *testing.T
	conn net.Conn
	dec  *frameDecoder
}

func newTestSession(t *testing.T, isServer bool, cfg Config, rc RateCheck) (*Session, *testPeer) {
	require.NoError(t, cfg.Valid())
	local, remote := net.Pipe()
	session := newSession(local, cfg, asdu.ParamsStandard104, isServer, rc,
		clog.NewLogger("test session => "))
	t.Cleanup(func() {
		session.Abort()
		_ = remote.Close()
	})
	return session, &testPeer{
		t:    t,
		conn: remote,
		dec:  newFrameDecoder(remote, DefaultRecvBufferMax),
	}
}

func (sf *testPeer) next() (interface{}, []byte) {
	require.NoError(sf.t, sf.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	apdu, err := sf.dec.next()
	require.NoError(sf.t, err)
	head, body, err := parse(apdu)
	require.NoError(sf.t, err)
	return head, body
}

func (sf *testPeer) expectU(function byte) {
	head, _ := sf.next()
	require.Equal(sf.t, uAPCI{function: function}, head)
}

func (sf *testPeer) expectS(rcvSN uint16) {
	head, _ := sf.next()
	require.Equal(sf.t, sAPCI{rcvSN: rcvSN}, head)
}

func (sf *testPeer) expectI() (iAPCI, []byte) {
	head, body := sf.next()
	require.IsType(sf.t, iAPCI{}, head)
	return head.(iAPCI), body
}

func (sf *testPeer) send(apdu []byte) {
	require.NoError(sf.t, sf.conn.SetWriteDeadline(time.Now().Add(3*time.Second)))
	_, err := sf.conn.Write(apdu)
	require.NoError(sf.t, err)
}

func (sf *testPeer) sendI(sendSN, rcvSN uint16, asduBytes []byte) {
	apdu, err := newIFrame(sendSN, rcvSN, asduBytes)
	require.NoError(sf.t, err)
	sf.send(apdu)
}

func waitActivated(t *testing.T, s *Session) {
	select {
	case <-s.Activated():
	case <-time.After(3 * time.Second):
		t.Fatal("session was not activated in time")
	}
}

func waitDone(t *testing.T, s *Session) error {
	select {
	case <-s.Done():
		return s.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop in time")
		return nil
	}
}

// single-point spontaneous, IOA 100, value on
var spASDU = []byte{0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x64, 0x00, 0x00, 0x01}

func TestSessionClientHandshake(t *testing.T) {
	session, peer := newTestSession(t, false, DefaultConfig(), nil)
	assert.Equal(t, StateConnecting, session.State())

	peer.expectU(uStartDtActive)
	peer.send(newUFrame(uStartDtConfirm))

	waitActivated(t, session)
	assert.Equal(t, StateRunning, session.State())
	assert.True(t, session.IsActive())
}

func TestSessionServerHandshake(t *testing.T) {
	session, peer := newTestSession(t, true, DefaultConfig(), nil)

	peer.send(newUFrame(uStartDtActive))
	peer.expectU(uStartDtConfirm)

	waitActivated(t, session)
	assert.True(t, session.IsActive())
}

func TestSessionReceiveSinglePoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecvUnAckLimitW = 1 // acknowledge every frame
	session, peer := newTestSession(t, true, cfg, nil)

	peer.send(newUFrame(uStartDtActive))
	peer.expectU(uStartDtConfirm)
	waitActivated(t, session)

	peer.sendI(0, 0, spASDU)
	peer.expectS(1)

	a, err := session.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, asdu.M_SP_NA_1, a.Type)
	infos, err := a.GetSinglePoint()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, asdu.InfoObjAddr(100), infos[0].Ioa)
	assert.True(t, infos[0].Value)
}

func TestSessionUnhandledTypeDelivered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecvUnAckLimitW = 1
	session, peer := newTestSession(t, true, cfg, nil)

	peer.send(newUFrame(uStartDtActive))
	peer.expectU(uStartDtConfirm)
	waitActivated(t, session)

	// type 99 has no registered codec; the session must stay up and
	// hand the raw ASDU to the application
	peer.sendI(0, 0, []byte{0x63, 0x01, 0x03, 0x00, 0x01, 0x00, 0x64, 0x00, 0x00, 0xab})
	peer.expectS(1)

	a, err := session.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, asdu.TypeID(99), a.Type)
	assert.ErrorIs(t, a.CheckObjects(), asdu.ErrTypeIDNotRegistered)
	assert.Nil(t, session.Err())
}

func TestSessionWindowBackpressure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendUnAckLimitK = 2
	cfg.RecvUnAckLimitW = 1
	session, peer := newTestSession(t, false, cfg, nil)

	peer.expectU(uStartDtActive)
	peer.send(newUFrame(uStartDtConfirm))
	waitActivated(t, session)

	a := asdu.NewASDU(asdu.ParamsStandard104, asdu.Identifier{
		Type:       asdu.M_SP_NA_1,
		Coa:        asdu.CauseOf(asdu.Spontaneous),
		CommonAddr: 1,
	})
	require.NoError(t, a.AppendObjects(asdu.SinglePointInfo{Ioa: 100, Value: true}))

	var submitted int32
	go func() {
		for i := 0; i < 3; i++ {
			if err := session.SendCtx(context.Background(), a); err != nil {
				return
			}
			atomic.AddInt32(&submitted, 1)
		}
	}()

	// strictly monotone send sequence numbers, no gap
	first, _ := peer.expectI()
	assert.Equal(t, uint16(0), first.sendSN)
	second, _ := peer.expectI()
	assert.Equal(t, uint16(1), second.sendSN)

	// the window is full: the third submission must stay suspended
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&submitted))

	// acknowledging the first frame frees one slot
	peer.send(newSFrame(1))
	third, _ := peer.expectI()
	assert.Equal(t, uint16(2), third.sendSN)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&submitted) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestSessionT1Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendUnAckTimeout1 = 1 * time.Second
	cfg.RecvUnAckTimeout2 = 1 * time.Second
	session, peer := newTestSession(t, false, cfg, nil)

	peer.expectU(uStartDtActive)
	peer.send(newUFrame(uStartDtConfirm))
	waitActivated(t, session)

	a := asdu.NewASDU(asdu.ParamsStandard104, asdu.Identifier{
		Type:       asdu.M_SP_NA_1,
		Coa:        asdu.CauseOf(asdu.Spontaneous),
		CommonAddr: 1,
	})
	require.NoError(t, a.AppendObjects(asdu.SinglePointInfo{Ioa: 1, Value: true}))
	require.NoError(t, session.SendCtx(context.Background(), a))
	peer.expectI()

	// no acknowledgement arrives
	assert.ErrorIs(t, waitDone(t, session), ErrTimeoutT1)
}

func TestSessionNrOutOfRange(t *testing.T) {
	session, peer := newTestSession(t, false, DefaultConfig(), nil)

	peer.expectU(uStartDtActive)
	peer.send(newUFrame(uStartDtConfirm))
	waitActivated(t, session)

	// acknowledging five frames that were never sent
	peer.send(newSFrame(5))
	assert.ErrorIs(t, waitDone(t, session), ErrNrOutOfRange)

	_, err := session.Recv(context.Background())
	assert.ErrorIs(t, err, ErrNrOutOfRange)
}

func TestSessionSendSeqMismatch(t *testing.T) {
	session, peer := newTestSession(t, true, DefaultConfig(), nil)

	peer.send(newUFrame(uStartDtActive))
	peer.expectU(uStartDtConfirm)
	waitActivated(t, session)

	peer.sendI(3, 0, spASDU) // expected N(S) is 0
	assert.ErrorIs(t, waitDone(t, session), ErrProtocolViolation)
}

func TestSessionTestFrameReply(t *testing.T) {
	session, peer := newTestSession(t, true, DefaultConfig(), nil)

	peer.send(newUFrame(uTestFrActive))
	peer.expectU(uTestFrConfirm)
	assert.Nil(t, session.Err())
}

func TestSessionIdleTestFrameOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout3 = 1 * time.Second
	cfg.SendUnAckTimeout1 = 2 * time.Second
	cfg.RecvUnAckTimeout2 = 1 * time.Second
	session, peer := newTestSession(t, false, cfg, nil)

	peer.expectU(uStartDtActive)
	peer.send(newUFrame(uStartDtConfirm))
	waitActivated(t, session)

	// the idle timer fires and must not re-arm while the test frame
	// is unconfirmed
	peer.expectU(uTestFrActive)
	require.NoError(t, peer.conn.SetReadDeadline(time.Now().Add(1500*time.Millisecond)))
	_, err := peer.dec.next()
	require.Error(t, err) // nothing else was sent

	// the unconfirmed test frame runs into t1
	assert.ErrorIs(t, waitDone(t, session), ErrTimeoutT1)
}

func TestSessionGracefulClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecvUnAckLimitW = 1
	session, peer := newTestSession(t, false, cfg, nil)

	peer.expectU(uStartDtActive)
	peer.send(newUFrame(uStartDtConfirm))
	waitActivated(t, session)

	a := asdu.NewASDU(asdu.ParamsStandard104, asdu.Identifier{
		Type:       asdu.M_SP_NA_1,
		Coa:        asdu.CauseOf(asdu.Spontaneous),
		CommonAddr: 1,
	})
	require.NoError(t, a.AppendObjects(asdu.SinglePointInfo{Ioa: 1, Value: true}))
	require.NoError(t, session.SendCtx(context.Background(), a))
	peer.expectI()

	closed := make(chan error, 1)
	go func() { closed <- session.Close() }()

	// the admitted frame is acknowledged before the stop handshake
	peer.send(newSFrame(1))
	peer.expectU(uStopDtActive)
	peer.send(newUFrame(uStopDtConfirm))

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("close did not finish")
	}
	assert.Equal(t, StateStopped, session.State())

	_, err := session.Recv(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestSessionPeerStop(t *testing.T) {
	session, peer := newTestSession(t, true, DefaultConfig(), nil)

	peer.send(newUFrame(uStartDtActive))
	peer.expectU(uStartDtConfirm)
	waitActivated(t, session)

	peer.send(newUFrame(uStopDtActive))
	peer.expectU(uStopDtConfirm)

	assert.NoError(t, waitDone(t, session))
	_, err := session.Recv(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestSessionStopStartDataTransfer(t *testing.T) {
	session, peer := newTestSession(t, false, DefaultConfig(), nil)

	peer.expectU(uStartDtActive)
	peer.send(newUFrame(uStartDtConfirm))
	waitActivated(t, session)

	require.NoError(t, session.StopDataTransfer())
	peer.expectU(uStopDtActive)
	peer.send(newUFrame(uStopDtConfirm))
	require.Eventually(t, func() bool { return !session.IsActive() },
		time.Second, 10*time.Millisecond)

	require.NoError(t, session.StartDataTransfer())
	peer.expectU(uStartDtActive)
	peer.send(newUFrame(uStartDtConfirm))
	require.Eventually(t, session.IsActive, time.Second, 10*time.Millisecond)
}

func TestSessionRateCheckReject(t *testing.T) {
	cfg := DefaultConfig()
	session, peer := newTestSession(t, true, cfg, func(FrameMeta) bool { return false })

	peer.send(newUFrame(uStartDtActive))
	peer.expectU(uStartDtConfirm)
	waitActivated(t, session)

	peer.sendI(0, 0, spASDU)
	assert.ErrorIs(t, waitDone(t, session), ErrPolicyViolation)
}

func TestSessionAbort(t *testing.T) {
	session, peer := newTestSession(t, false, DefaultConfig(), nil)
	peer.expectU(uStartDtActive)

	session.Abort()
	assert.ErrorIs(t, waitDone(t, session), ErrAborted)

	_, err := session.Recv(context.Background())
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, session.Send(asdu.NewEmptyASDU(asdu.ParamsStandard104)), ErrNotActive)
}

func TestSessionIFrameWhileStopped(t *testing.T) {
	session, peer := newTestSession(t, true, DefaultConfig(), nil)

	// data transfer was never started
	peer.sendI(0, 0, spASDU)
	assert.ErrorIs(t, waitDone(t, session), ErrProtocolViolation)
}
