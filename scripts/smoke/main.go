package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ODCA117/ratchat/internal/client"
)

func main() {
	if err := run(); err != nil {
		log.Printf("smoke: %v", err)
		os.Exit(1)
	}
}

// run connects a handful of clients, has each send one message and checks
// that every other client saw it.
func run() error {
	addr := flag.String("addr", "localhost:6789", "server address (host:port or ws://host:port/ws)")
	clients := flag.Int("clients", 3, "number of clients")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *clients < 2 {
		return fmt.Errorf("need at least 2 clients, got %d", *clients)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conns := make([]*client.Client, 0, *clients)
	defer func() {
		for _, c := range conns {
			_ = c.Disconnect()
		}
	}()

	for i := 0; i < *clients; i++ {
		c, err := client.Dial(ctx, *addr)
		if err != nil {
			return err
		}
		conns = append(conns, c)

		id, err := c.Join(ctx, fmt.Sprintf("smoke-%d", i))
		if err != nil {
			return fmt.Errorf("join %d: %w", i, err)
		}
		fmt.Printf("client %d joined with id %d\n", i, id)
	}

	want := len(conns) - 1
	errs := make(chan error, len(conns))
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *client.Client) {
			defer wg.Done()
			for got := 0; got < want; got++ {
				msg, err := c.Receive()
				if err != nil {
					errs <- fmt.Errorf("client %d: %w", c.ID(), err)
					return
				}
				if msg.SenderID == c.ID() {
					errs <- fmt.Errorf("client %d: received its own message", c.ID())
					return
				}
			}
		}(c)
	}

	for i, c := range conns {
		if err := c.Send(fmt.Sprintf("%s #%d", *text, i)); err != nil {
			return fmt.Errorf("send %d: %w", i, err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for deliveries: %w", ctx.Err())
	}
	close(errs)
	for err := range errs {
		return err
	}

	fmt.Printf("ok: %d clients each received %d messages\n", len(conns), want)
	return nil
}
