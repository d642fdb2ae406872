package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// seedResolver turns the configured seed host into something dialable. If
// no resolver server is configured, or the host is already an ip, the host
// is handed to the dialer untouched.
type seedResolver struct {
	server string // host:port of the dns server to query
	client *dns.Client
}

func newSeedResolver(server string, timeout time.Duration) *seedResolver {
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
	}

	return &seedResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// resolve returns the first A record for host
func (r *seedResolver) resolve(ctx context.Context, host string) (string, error) {
	if r.server == "" || net.ParseIP(host) != nil {
		return host, nil
	}

	m := &dns.Msg{}
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	in, _, err := r.client.Exchange(m, r.server)
	if err != nil {
		return "", fmt.Errorf("cannot query %s for %s: %v", r.server, host, err)
	}

	if err = ctx.Err(); err != nil {
		return "", err
	}

	if in.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("lookup of %s failed: %s", host, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}

	return "", fmt.Errorf("no A records found for %s", host)
}
