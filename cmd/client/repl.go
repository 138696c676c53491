package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/internal/client"
)

// printer serializes writes from the session and the input loop.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) listener() client.Listener {
	return client.Listener{
		OnState: func(state client.State, err error) {
			switch {
			case err != nil:
				p.printf("[%s: %v]\n", state, err)
			default:
				p.printf("[%s]\n", state)
			}
		},
		OnSeed: func(entries []chat.Entry) {
			for _, e := range entries {
				p.printf("%s\n", e)
			}
		},
		OnEntry: func(e chat.Entry) {
			p.printf("%s\n", e)
		},
		OnTyping: func(status chat.TypingStatus) {
			if !status.Empty() {
				p.printf("* %s\n", status)
			}
		},
	}
}

type repl struct {
	client    *client.Client
	out       *printer
	key       chat.Key
	recipient string
}

func newREPL(c *client.Client, out *printer, key chat.Key, recipient string) *repl {
	return &repl{client: c, out: out, key: key, recipient: strings.TrimSpace(recipient)}
}

// run joins the first room and then handles input until /quit, EOF or ctx.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.client.Join(ctx, r.key)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("failed to read input: %w", err)
					}
				default:
				}
				return nil
			}
			if r.handle(ctx, line) {
				return nil
			}
		}
	}
}

// handle processes one input line and reports whether to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit":
		return true
	case "/to":
		r.recipient = arg
		if arg == "" {
			r.out.printf("[sending to %s]\n", r.key.Room())
		} else {
			r.out.printf("[sending privately to %s]\n", arg)
		}
		return false
	case "/room":
		key, err := chat.NewKey(string(r.key.Identity()), arg)
		if err != nil {
			r.out.printf("[%v]\n", err)
			return false
		}
		r.key = key
		r.client.Join(ctx, key)
		r.out.printf("[joined %s]\n", key.Room())
		return false
	}

	s := r.client.Session()
	if s == nil || strings.TrimSpace(line) == "" {
		return false
	}
	s.NotifyTyping(r.recipient)
	if !s.SendMessage(line, r.recipient) {
		r.out.printf("[not sent: %s]\n", s.State())
	}
	return false
}
