package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// fatalGate is the one place that decides to end the process. Errors from
// the bootstrap handshake, the feeder's address stream and any inventory
// stream go through it; failed connection attempts and sends never do.
type fatalGate struct {
	log  *log.Entry
	exit func(code int)
}

func newFatalGate(l *log.Entry) *fatalGate {
	return &fatalGate{log: l, exit: os.Exit}
}

// check logs err and exits with status 1. It reports whether err was
// non-nil so callers can return when exit does not terminate the process.
func (g *fatalGate) check(err error) bool {
	if err == nil {
		return false
	}

	g.log.Errorf("txradar: %v", err)
	g.exit(1)

	return true
}
