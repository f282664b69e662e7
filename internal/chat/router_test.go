package chat

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	lines []string
	reply string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, req Request) {
	d.mu.Lock()
	d.lines = append(d.lines, req.Line)
	reply := d.reply
	d.mu.Unlock()
	if reply != "" {
		req.Reply(ctx, reply)
	}
}

func (d *recordingDispatcher) got() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func newTestRouter(t *testing.T, d Dispatcher) (*Router, *MockAdapter) {
	t.Helper()
	m := NewMockAdapter()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	r, err := NewRouter(RouterOpts{Sender: m, Dispatcher: d, Prefix: "!", BotUserID: "bot"})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r, m
}

func TestNewRouter_Validation(t *testing.T) {
	m := NewMockAdapter()
	d := &recordingDispatcher{}
	if _, err := NewRouter(RouterOpts{Dispatcher: d, Prefix: "!"}); err == nil {
		t.Error("expected error without sender")
	}
	if _, err := NewRouter(RouterOpts{Sender: m, Prefix: "!"}); err == nil {
		t.Error("expected error without dispatcher")
	}
	if _, err := NewRouter(RouterOpts{Sender: m, Dispatcher: d}); err == nil {
		t.Error("expected error without prefix")
	}
}

func TestRouter_Classification(t *testing.T) {
	tests := []struct {
		name string
		msg  InboundMessage
		want string // empty: not dispatched
	}{
		{"channel command", InboundMessage{ChannelID: "#hq", UserID: "alice", Text: "!battle 344 -a"}, "battle 344 -a"},
		{"channel chatter", InboundMessage{ChannelID: "#hq", UserID: "alice", Text: "hello all"}, ""},
		{"bare prefix", InboundMessage{ChannelID: "#hq", UserID: "alice", Text: "!"}, ""},
		{"private verb", InboundMessage{UserID: "alice", Private: true, Text: "join #army"}, "join #army"},
		{"private with prefix", InboundMessage{UserID: "alice", Private: true, Text: "!say #hq hi"}, "say #hq hi"},
		{"self message", InboundMessage{ChannelID: "#hq", UserID: "bot", Text: "!battle 1"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			r, _ := newTestRouter(t, d)
			r.Handle(context.Background(), tt.msg)
			r.Wait()
			got := d.got()
			if tt.want == "" {
				if len(got) != 0 {
					t.Errorf("dispatched %v, want nothing", got)
				}
				return
			}
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("dispatched %v, want [%q]", got, tt.want)
			}
		})
	}
}

func TestRouter_ReplySplitsLines(t *testing.T) {
	d := &recordingDispatcher{reply: "line one\n\nline two"}
	r, m := newTestRouter(t, d)

	r.Handle(context.Background(), InboundMessage{ChannelID: "#hq", UserID: "alice", Text: "!help"})
	r.Wait()

	sent := m.AllSent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0].ChannelID != "#hq" || sent[1].Text != "line two" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestRouter_PrivateReplyGoesToSender(t *testing.T) {
	d := &recordingDispatcher{reply: "done"}
	r, m := newTestRouter(t, d)

	r.Handle(context.Background(), InboundMessage{UserID: "alice", Private: true, Text: "part #hq"})
	r.Wait()

	if !m.WaitSent(1, time.Second) {
		t.Fatal("no reply sent")
	}
	last, _ := m.LastSent()
	if last.ChannelID != "alice" {
		t.Errorf("reply target = %q, want alice", last.ChannelID)
	}
}
