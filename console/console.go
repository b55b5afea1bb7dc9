// Package console feeds local operator input into the relay queue, one line
// per item. End of input ends Run, which main treats as a shutdown request.
package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/sidekek/minecraft-discord-bridge/relay"
)

// Run scans r line by line until EOF or ctx cancellation. Each line becomes a
// console item on the queue; interpretation (including /respawn) happens in
// the relay dispatch loop.
func Run(ctx context.Context, r io.Reader, enqueue func(relay.ConsoleLine)) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				err := <-scanErr
				slog.Info("console input closed")
				return err
			}
			if line == "" || ctx.Err() != nil {
				continue
			}
			enqueue(relay.ConsoleLine{Text: line})
		}
	}
}
