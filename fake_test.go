package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakePeer is a connected peer whose streams are fed by the test
type fakePeer struct {
	addr  string
	addrs subscriber[addrEvent]
	invs  subscriber[invEvent]

	mtx        sync.Mutex
	sent       []wire.Message
	maxInvSubs int
}

func newFakePeer(addr string) *fakePeer {
	return &fakePeer{addr: addr}
}

func (p *fakePeer) Addr() string { return p.addr }

func (p *fakePeer) Send(msg wire.Message) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakePeer) SubscribeAddresses() <-chan addrEvent {
	return p.addrs.subscribe()
}

func (p *fakePeer) SubscribeInventory() <-chan invEvent {
	ch := p.invs.subscribe()

	n := p.pendingInv()
	p.mtx.Lock()
	if n > p.maxInvSubs {
		p.maxInvSubs = n
	}
	p.mtx.Unlock()

	return ch
}

func (p *fakePeer) pendingAddr() int {
	p.addrs.mtx.Lock()
	defer p.addrs.mtx.Unlock()

	return len(p.addrs.pending)
}

func (p *fakePeer) pendingInv() int {
	p.invs.mtx.Lock()
	defer p.invs.mtx.Unlock()

	return len(p.invs.pending)
}

func (p *fakePeer) getAddrsSent() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	n := 0
	for _, msg := range p.sent {
		if _, ok := msg.(*wire.MsgGetAddr); ok {
			n++
		}
	}
	return n
}

// fakeNetwork hands out the fake peers registered for a host, any other
// host fails to connect
type fakeNetwork struct {
	mtx      sync.Mutex
	peers    map[string]*fakePeer
	attempts []string
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{peers: make(map[string]*fakePeer)}
}

func (n *fakeNetwork) add(host string) *fakePeer {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	p := newFakePeer(host + ":8333")
	n.peers[host] = p
	return p
}

func (n *fakeNetwork) Connect(ctx context.Context, host string, port uint16) (peer, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.attempts = append(n.attempts, host)

	if p, ok := n.peers[host]; ok {
		return p, nil
	}
	return nil, errors.New("connection refused")
}

func (n *fakeNetwork) attempted() []string {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	return append([]string(nil), n.attempts...)
}

type testRadar struct {
	*radar
	hook *test.Hook

	mtx   sync.Mutex
	exits []int
}

func (tr *testRadar) exitCodes() []int {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	return append([]int(nil), tr.exits...)
}

func (tr *testRadar) entries(level log.Level, msg string) []*log.Entry {
	var out []*log.Entry
	for _, e := range tr.hook.AllEntries() {
		if e.Level == level && (msg == "" || e.Message == msg) {
			out = append(out, e)
		}
	}
	return out
}

func newTestRadar(t *testing.T, pn peerNetwork) *testRadar {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	cfg := defaultConfig()
	cfg.SeedHost = "10.0.0.1"

	tr := &testRadar{radar: newRadar(&cfg, pn, logger.WithField("network", "test")), hook: hook}
	tr.gate.exit = func(code int) {
		tr.mtx.Lock()
		defer tr.mtx.Unlock()

		tr.exits = append(tr.exits, code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	tr.ctx = ctx

	return tr
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, waitFor, tick, msg)
}
