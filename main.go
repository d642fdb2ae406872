package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := loadConfig(configFile)
	if err != nil {
		fmt.Printf("Error loading config from %s - %v\n", configFile, err)
		os.Exit(1)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(level)
	}

	l := cfg.logger()
	l.Infof("status - watching network %s from seed %s:%d", cfg.Name, cfg.SeedHost, cfg.SeedPort)

	r := newRadar(cfg, newWireNetwork(cfg, l), l)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	// block until a signal is received
	l.Infof("Shutting down on signal: %v", <-sig)

	cancel()
	wg.Wait()
}
