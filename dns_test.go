package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedServer answers A queries for seed.example. and nothing else
func seedServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, msg *dns.Msg) {
		m := &dns.Msg{}
		m.SetReply(msg)

		question := msg.Question[0]
		switch {
		case question.Name == "seed.example." && question.Qtype == dns.TypeA:
			r := &dns.A{}
			r.Hdr = dns.RR_Header{Name: question.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}
			r.A = net.ParseIP("203.0.113.7")
			m.Answer = append(m.Answer, r)
		case question.Name == "empty.example.":
		default:
			m.Rcode = dns.RcodeNameError
		}

		w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go server.ActivateAndServe()
	t.Cleanup(func() { server.Shutdown() })

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("dns server did not start")
	}

	return pc.LocalAddr().String()
}

func TestSeedResolver(t *testing.T) {
	r := newSeedResolver(seedServer(t), time.Second)
	ctx := context.Background()

	host, err := r.resolve(ctx, "seed.example")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", host)

	_, err = r.resolve(ctx, "missing.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NXDOMAIN")

	_, err = r.resolve(ctx, "empty.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no A records")

	// ip literals never hit the server
	host, err = r.resolve(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.1", host)
}

func TestSeedResolverWithoutServer(t *testing.T) {
	r := newSeedResolver("", time.Second)

	host, err := r.resolve(context.Background(), "localhost")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
}

func TestSeedResolverDefaultPort(t *testing.T) {
	r := newSeedResolver("192.0.2.53", time.Second)
	assert.Equal(t, "192.0.2.53:53", r.server)
}

func TestRadarResolvesSeed(t *testing.T) {
	fn := newFakeNetwork()
	seed := fn.add("203.0.113.7")

	tr := newTestRadar(t, fn)
	tr.cfg.SeedHost = "seed.example"
	tr.resolver = newSeedResolver(seedServer(t), time.Second)
	tr.start(tr.ctx)

	eventually(t, func() bool { return seed.pendingAddr() == 1 }, "seed address subscription")
	assert.Equal(t, []string{"203.0.113.7"}, fn.attempted())
}
