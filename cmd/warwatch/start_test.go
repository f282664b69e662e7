package main

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/chat/discord"
	"github.com/zulandar/warwatch/internal/chat/irc"
	"github.com/zulandar/warwatch/internal/chat/slack"
	"github.com/zulandar/warwatch/internal/client"
	"github.com/zulandar/warwatch/internal/config"
	"github.com/zulandar/warwatch/internal/store"
)

func TestCreateAdapter(t *testing.T) {
	lg := zerolog.Nop()
	tests := []struct {
		name  string
		chat  config.ChatConfig
		check func(chat.Adapter) bool
	}{
		{"irc", config.ChatConfig{Platform: "irc", IRC: config.IRCConfig{Server: "irc.test:6667", Nick: "warbot"}},
			func(a chat.Adapter) bool { _, ok := a.(*irc.Adapter); return ok }},
		{"discord", config.ChatConfig{Platform: "discord", Discord: config.DiscordConfig{BotToken: "t"}},
			func(a chat.Adapter) bool { _, ok := a.(*discord.Adapter); return ok }},
		{"slack", config.ChatConfig{Platform: "slack", Slack: config.SlackConfig{AppToken: "xapp", BotToken: "xoxb"}},
			func(a chat.Adapter) bool { _, ok := a.(*slack.Adapter); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := createAdapter(&config.Config{Chat: tt.chat}, &lg)
			if err != nil {
				t.Fatalf("createAdapter: %v", err)
			}
			if !tt.check(a) {
				t.Errorf("adapter type = %T", a)
			}
		})
	}

	if _, err := createAdapter(&config.Config{Chat: config.ChatConfig{Platform: "telex"}}, &lg); err == nil {
		t.Error("expected error for an unknown platform")
	}
}

func TestCreateAdapter_OptionalInterfaces(t *testing.T) {
	lg := zerolog.Nop()
	a, err := createAdapter(&config.Config{Chat: config.ChatConfig{
		Platform: "irc", IRC: config.IRCConfig{Server: "irc.test:6667", Nick: "warbot"},
	}}, &lg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.(chat.Identifier); !ok {
		t.Error("irc adapter should identify senders")
	}
	if _, ok := a.(chat.Joiner); !ok {
		t.Error("irc adapter should join channels")
	}
}

func TestNoticeChannels(t *testing.T) {
	tests := []struct {
		chat config.ChatConfig
		want string
	}{
		{config.ChatConfig{Platform: "irc", IRC: config.IRCConfig{Channels: []string{"#hq", "#army key"}}}, "#hq,#army"},
		{config.ChatConfig{Platform: "discord", Discord: config.DiscordConfig{ChannelID: "123"}}, "123"},
		{config.ChatConfig{Platform: "slack"}, ""},
	}
	for _, tt := range tests {
		if got := strings.Join(noticeChannels(tt.chat), ","); got != tt.want {
			t.Errorf("%s: notice channels = %q, want %q", tt.chat.Platform, got, tt.want)
		}
	}
}

func TestPoolSiteFunc_NilOnError(t *testing.T) {
	st, err := store.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatal(err)
	}
	pool := client.NewPool(client.PoolOpts{Store: st, Site: config.SiteConfig{Domain: "e-sim.org"}})

	site, err := poolSiteFunc(pool)(42)
	if err == nil {
		t.Fatal("expected error without an organization")
	}
	if site != nil {
		t.Errorf("site = %#v, want a nil interface", site)
	}
}

func TestMaintenanceJobs(t *testing.T) {
	jobs := maintenanceJobs("*/5 * * * *", nil, nil, zerolog.Nop())
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	for _, j := range jobs {
		if err := chat.ValidateSpec(j.Spec); err != nil {
			t.Errorf("%s: %v", j.Name, err)
		}
	}
}
