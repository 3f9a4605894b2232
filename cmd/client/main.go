package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ODCA117/ratchat/internal/client"
	"github.com/ODCA117/ratchat/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		name     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:           "ratchat-client",
		Short:         "Interactive chat client for a ratchat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.NewWithWriter(cmd.ErrOrStderr(), logLevel, "console")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			c, err := client.Dial(dialCtx, addr)
			if err != nil {
				logger.Error().Err(err).Msg("dial")
				return err
			}
			id, err := c.Join(dialCtx, name)
			if err != nil {
				_ = c.Close()
				logger.Error().Err(err).Msg("handshake")
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s as %s (id %d)\n", addr, name, id)
			fmt.Fprintln(out, "Type messages and press Enter to send. Ctrl+D or Ctrl+C to exit.")

			return chat(ctx, c, cmd.InOrStdin(), out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "localhost:6789", "server address: host:port for TCP or ws://host:port/ws")
	flags.StringVar(&name, "name", "", "display name (server picks one when empty)")
	flags.StringVar(&logLevel, "log-level", "warn", "log level")

	return cmd
}

// chat pumps stdin lines to the relay and relayed messages to out until
// stdin ends, ctx is cancelled or the server goes away.
func chat(ctx context.Context, c *client.Client, in io.Reader, out io.Writer) error {
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := c.Receive()
			if err != nil {
				recvErr <- err
				return
			}
			fmt.Fprintf(out, "[%d] %s\n", msg.SenderID, msg.Text)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return c.Disconnect()
		case err := <-recvErr:
			_ = c.Close()
			if errors.Is(err, client.ErrServerClosed) {
				fmt.Fprintln(out, "server closed the connection")
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok {
				return c.Disconnect()
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := c.Send(text); err != nil {
				_ = c.Close()
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}
