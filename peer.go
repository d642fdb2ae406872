package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

const (
	// nounce is used to check if we connect to ourselves
	// as we don't listen we can use a fixed value
	nounce = 0x0539a019ca550825

	// max messages we accept from a remote node before the handshake is done
	maxHandshakeMsgs = 25
)

// addrEvent is one delivery on the address stream of a peer
type addrEvent struct {
	addrs []*wire.NetAddress
	err   error
}

// invEvent is one delivery on the inventory stream of a peer
type invEvent struct {
	invs []*wire.InvVect
	err  error
}

// peer is an established connection to a remote node. Subscriptions are one
// shot: the channel receives exactly one event, either the next message of
// that kind or the error that ended the connection.
type peer interface {
	Addr() string
	Send(msg wire.Message) error
	SubscribeAddresses() <-chan addrEvent
	SubscribeInventory() <-chan invEvent
}

// peerNetwork opens connections to remote nodes
type peerNetwork interface {
	Connect(ctx context.Context, host string, port uint16) (peer, error)
}

// wireNetwork connects to bitcoin nodes over tcp using the btcd wire codec
type wireNetwork struct {
	cfg *NetworkConfig
	log *log.Entry
}

func newWireNetwork(cfg *NetworkConfig, l *log.Entry) *wireNetwork {
	return &wireNetwork{cfg: cfg, log: l}
}

// Connect dials the remote node and completes the version handshake. The
// returned peer is already reading from the connection.
func (n *wireNetwork) Connect(ctx context.Context, host string, port uint16) (peer, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	d := net.Dialer{Timeout: n.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to remote node: %v", err)
	}

	p := newWirePeer(conn, addr, n.cfg, n.log)
	if err = p.handshake(n.cfg.HandshakeTimeout); err != nil {
		conn.Close()
		return nil, err
	}

	go p.readLoop()

	return p, nil
}

type wirePeer struct {
	conn   net.Conn
	addr   string
	btcnet wire.BitcoinNet
	pver   uint32
	ua     string
	log    *log.Entry

	wmtx  sync.Mutex // serialises writes to conn
	addrs subscriber[addrEvent]
	invs  subscriber[invEvent]
}

func newWirePeer(conn net.Conn, addr string, cfg *NetworkConfig, l *log.Entry) *wirePeer {
	return &wirePeer{
		conn:   conn,
		addr:   addr,
		btcnet: cfg.ID,
		pver:   cfg.NetVer,
		ua:     cfg.UserAgent,
		log:    l.WithField("peer", addr),
	}
}

func (p *wirePeer) Addr() string {
	return p.addr
}

func (p *wirePeer) Send(msg wire.Message) error {
	p.wmtx.Lock()
	defer p.wmtx.Unlock()

	return wire.WriteMessage(p.conn, msg, p.pver, p.btcnet)
}

func (p *wirePeer) SubscribeAddresses() <-chan addrEvent {
	return p.addrs.subscribe()
}

func (p *wirePeer) SubscribeInventory() <-chan invEvent {
	return p.invs.subscribe()
}

// handshake exchanges version and verack with the remote node. The whole
// exchange must finish within timeout, afterwards the connection has no
// deadline.
func (p *wirePeer) handshake(timeout time.Duration) error {
	if timeout > 0 {
		if err := p.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("cannot set connection deadline: %v", err)
		}
	}

	you := &wire.NetAddress{}
	if tcp, ok := p.conn.RemoteAddr().(*net.TCPAddr); ok {
		you = wire.NewNetAddress(tcp, 0)
	}

	msgver := wire.NewMsgVersion(&wire.NetAddress{}, you, nounce, 0)
	msgver.UserAgent = p.ua

	if err := p.Send(msgver); err != nil {
		return fmt.Errorf("cannot send version message: %v", err)
	}

	gotVersion, gotVerAck := false, false

	for i := 0; i < maxHandshakeMsgs && !(gotVersion && gotVerAck); i++ {
		msg, _, err := wire.ReadMessage(p.conn, p.pver, p.btcnet)
		if err != nil {
			if _, ok := err.(*wire.MessageError); ok {
				p.log.Debugf("Skipping message during handshake: %v", err)
				continue
			}
			return fmt.Errorf("cannot receive handshake message: %v", err)
		}

		switch msg := msg.(type) {
		case *wire.MsgVersion:
			if msg.Nonce == nounce {
				return fmt.Errorf("connected to ourselves")
			}

			p.log.Debugf("Node %s version is %d (%s), services is %d", p.addr, msg.ProtocolVersion, msg.UserAgent, msg.Services)

			if uint32(msg.ProtocolVersion) < p.pver {
				p.pver = uint32(msg.ProtocolVersion)
			}
			gotVersion = true

			if err = p.Send(wire.NewMsgVerAck()); err != nil {
				return fmt.Errorf("cannot send VerAck message: %v", err)
			}
		case *wire.MsgVerAck:
			p.log.Debugf("Received VerAck from %s", p.addr)
			gotVerAck = true
		default:
			p.log.Debugf("Received unexpected %v message during handshake", msg.Command())
		}
	}

	if !gotVersion || !gotVerAck {
		return fmt.Errorf("handshake with %s not completed in first %d messages", p.addr, maxHandshakeMsgs)
	}

	if err := p.conn.SetDeadline(time.Time{}); err != nil {
		return fmt.Errorf("cannot clear connection deadline: %v", err)
	}

	return nil
}

// readLoop dispatches incoming messages to the subscribers until the
// connection fails
func (p *wirePeer) readLoop() {
	for {
		msg, _, err := wire.ReadMessage(p.conn, p.pver, p.btcnet)
		if err != nil {
			if _, ok := err.(*wire.MessageError); ok {
				p.log.Debugf("Skipping message: %v", err)
				continue
			}
			p.stop(fmt.Errorf("connection to %s lost: %v", p.addr, err))
			return
		}

		switch msg := msg.(type) {
		case *wire.MsgPing:
			if err = p.Send(wire.NewMsgPong(msg.Nonce)); err != nil {
				p.log.Debugf("Cannot send Pong message: %v", err)
			}
		case *wire.MsgAddr:
			p.log.Debugf("Received Addr message with %d addresses", len(msg.AddrList))
			p.addrs.relay(addrEvent{addrs: msg.AddrList})
		case *wire.MsgInv:
			p.invs.relay(invEvent{invs: msg.InvList})
		default:
			p.log.Debugf("Ignoring %v message", msg.Command())
		}
	}
}

func (p *wirePeer) stop(err error) {
	p.addrs.stop(addrEvent{err: err})
	p.invs.stop(invEvent{err: err})

	if cerr := p.conn.Close(); cerr != nil {
		p.log.Debugf("Error disconnecting: %v", cerr)
	}
}
