package core

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkRelayFanout(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(Options{SubscriberBuffer: 1024}, nil)
	go func() { _ = hub.Run(ctx) }()

	sender, err := hub.Join(ctx, "sender")
	if err != nil {
		b.Fatalf("join sender: %v", err)
	}
	go func() {
		for range sender.Messages() {
		}
	}()

	clients := make([]*Client, 0, recipients)
	for i := 0; i < recipients; i++ {
		c, err := hub.Join(ctx, fmt.Sprintf("client-%d", i))
		if err != nil {
			b.Fatalf("join: %v", err)
		}
		clients = append(clients, c)
	}

	// Drain messages for all but the first recipient to avoid evictions.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Messages() {
			}
		}(c)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := sender.Publish(ctx, ChatMessage{Text: "payload"}); err != nil {
			b.Fatalf("publish: %v", err)
		}
		<-target.Messages()
	}
}

func BenchmarkRelayFanout_10(b *testing.B)  { benchmarkRelayFanout(b, 10) }
func BenchmarkRelayFanout_100(b *testing.B) { benchmarkRelayFanout(b, 100) }
func BenchmarkRelayFanout_500(b *testing.B) { benchmarkRelayFanout(b, 500) }
