package main

import "time"

const (
	// node status
	statusConnecting = iota // connection attempt in flight
	statusHarvesting        // connected feeder, we ask it for addresses
	statusMonitoring        // connected and observing the inventory stream
	statusFailed            // connection attempt failed, the target was dropped
	maxStatusTypes          // used to size the status totals
)

var statusNames = [maxStatusTypes]string{"connecting", "harvesting", "monitoring", "failed"}

type node struct {
	addr      string    // host:port of the remote node
	status    int       // see the status constants above
	lastTry   time.Time // when we started to connect
	connected time.Time // when the connection was established
}
