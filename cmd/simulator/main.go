// Command simulator streams synthetic scalar and FTIR readings over the
// NDJSON-over-TCP wire protocol, standing in for the physical sensor rig
// during development.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/99souls/sensorwatch/internal/sim"
)

func main() {
	var (
		host string
		port int
		tick time.Duration
		seed int64
	)
	flag.StringVar(&host, "host", "127.0.0.1", "Address to listen on")
	flag.IntVar(&port, "port", 9000, "Port to listen on")
	flag.DurationVar(&tick, "tick", 200*time.Millisecond, "Interval between simulated reading batches")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed for the sensor models")
	flag.Parse()

	engine := sim.NewEngine(seed)
	pub := sim.NewPublisher(host, port, tick, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("signal received, stopping simulator")
		cancel()
	}()

	log.Printf("simulator listening on %s:%d (tick=%s)", host, port, tick)
	if err := pub.Run(ctx); err != nil {
		log.Fatalf("simulator stopped: %v", err)
	}
}
