package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

// radar connects to a seed node, keeps asking it for addresses and watches
// every node it manages to connect to for transaction announcements
type radar struct {
	cfg      *NetworkConfig
	net      peerNetwork
	resolver *seedResolver
	state    *crawlerState
	gate     *fatalGate
	log      *log.Entry
	ctx      context.Context
}

func newRadar(cfg *NetworkConfig, pn peerNetwork, l *log.Entry) *radar {
	return &radar{
		cfg:      cfg,
		net:      pn,
		resolver: newSeedResolver(cfg.DNSResolver, cfg.DialTimeout),
		state:    newCrawlerState(),
		gate:     newFatalGate(l),
		log:      l,
		ctx:      context.Background(),
	}
}

// run starts the crawl and blocks until ctx is done, reporting status on
// every tick
func (r *radar) run(ctx context.Context) {
	r.start(ctx)

	var statusChan <-chan time.Time
	if r.cfg.StatusInterval > 0 {
		ticker := time.NewTicker(r.cfg.StatusInterval)
		defer ticker.Stop()
		statusChan = ticker.C
	}

	for {
		select {
		case <-statusChan:
			r.reportStatus()
		case <-ctx.Done():
			r.log.Infof("Shutting down radar")
			return
		}
	}
}

// start connects to the seed node in the background
func (r *radar) start(ctx context.Context) {
	r.ctx = ctx
	go r.connectSeed()
}

func (r *radar) connectSeed() {
	host, err := r.resolver.resolve(r.ctx, r.cfg.SeedHost)
	if r.gate.check(err) {
		return
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(r.cfg.SeedPort)))
	r.state.trackNode(addr)

	p, err := r.net.Connect(r.ctx, host, r.cfg.SeedPort)
	if err != nil {
		r.state.setStatus(addr, statusFailed)
		r.gate.check(fmt.Errorf("bootstrap %s: %v", addr, err))
		return
	}

	r.initialHandshake(addr, p)
}

func (r *radar) initialHandshake(addr string, p peer) {
	r.log.Infof("Connected to seed node %s", addr)

	r.state.setFeeder(p)
	r.state.setStatus(addr, statusHarvesting)
	r.requestAddresses()
}

// requestAddresses adds one subscription to the feeder's address stream and
// asks it for addresses. Every call starts a new round, whatever rounds are
// still waiting.
func (r *radar) requestAddresses() {
	f := r.state.feeder()
	if f == nil {
		return
	}

	go r.receiveAddr(f, f.SubscribeAddresses())

	// the result of the send is of no interest, a dead feeder shows up on
	// the address stream
	_ = f.Send(wire.NewMsgGetAddr())
}

func (r *radar) receiveAddr(f peer, ch <-chan addrEvent) {
	var ev addrEvent

	select {
	case ev = <-ch:
	case <-r.ctx.Done():
		return
	}

	if ev.err != nil {
		r.gate.check(fmt.Errorf("address stream from %s: %v", f.Addr(), ev.err))
		return
	}

	for _, na := range ev.addrs {
		host, ok := ipv4Mapped(na.IP)
		if !ok {
			continue
		}

		r.log.Debugf("Connecting to: %s", host)
		go r.attemptConnection(host)
	}
}

// ipv4Mapped returns the dotted decimal form of a 16 byte address when both
// marker bytes in front of the ipv4 part are 0xff
func ipv4Mapped(ip net.IP) (string, bool) {
	if len(ip) != net.IPv6len {
		return "", false
	}

	if ip[10] != 0xff || ip[11] != 0xff {
		return "", false
	}

	return net.IPv4(ip[12], ip[13], ip[14], ip[15]).String(), true
}

// attemptConnection connects to host on the network port and hands the
// outcome to monitor
func (r *radar) attemptConnection(host string) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(r.cfg.Port)))
	r.state.trackNode(addr)

	p, err := r.net.Connect(r.ctx, host, r.cfg.Port)
	r.monitor(addr, p, err)
}

// monitor runs once per finished connection attempt. Every attempt counts
// towards the cap, only attempts below it ask the feeder for more addresses.
// A failed attempt is only a warning.
func (r *radar) monitor(addr string, p peer, err error) {
	if n := r.state.recordAttemptCompleted(); n < r.cfg.MaxAttempts {
		r.requestAddresses()
	}

	if err != nil {
		r.state.setStatus(addr, statusFailed)
		r.log.Warnf("Failed to connect to %s: %v", addr, err)
		return
	}

	r.state.setStatus(addr, statusMonitoring)
	r.observe(p)
}

// observe waits for one inventory batch at a time from p until the stream
// fails, which ends the process
func (r *radar) observe(p peer) {
	for {
		var ev invEvent

		select {
		case ev = <-p.SubscribeInventory():
		case <-r.ctx.Done():
			return
		}

		if ev.err != nil {
			r.gate.check(fmt.Errorf("inventory stream from %s: %v", p.Addr(), ev.err))
			return
		}

		r.checkInvs(p, ev.invs)
	}
}

// checkInvs logs the hash of every transaction in invs and returns how many
// were logged
func (r *radar) checkInvs(p peer, invs []*wire.InvVect) int {
	found := 0

	for _, iv := range invs {
		// only interested in txs
		if iv.Type != wire.InvTypeTx && iv.Type != wire.InvTypeWitnessTx {
			continue
		}

		r.log.WithField("peer", p.Addr()).Infof("Found %v!", iv.Hash)
		found++
	}

	r.state.addFound(found)

	return found
}

func (r *radar) reportStatus() {
	st := r.state.stats()

	fields := log.Fields{"attempts": st.attempts, "found": st.found}
	for i, name := range statusNames {
		fields[name] = st.totals[i]
	}

	r.log.WithFields(fields).Infof("status - %d connection attempts completed", st.attempts)
}
