package client

import (
	"context"
	"strings"
	"testing"

	"github.com/zulandar/warwatch/internal/config"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/store"
)

func TestPool_ForCountry(t *testing.T) {
	site, srv := newFakeSite(t)
	site.set("/battle.html", fixture(t, "battle_direct.html"))

	st, err := store.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	server := models.Server{Name: "alpha", Shortname: "a"}
	if err := st.DB().Create(&server).Error; err != nil {
		t.Fatal(err)
	}
	country := models.Country{ServerID: server.ID, Name: "Poland", Shortname: "PL"}
	if err := st.DB().Create(&country).Error; err != nil {
		t.Fatal(err)
	}
	org := models.Organization{CountryID: country.ID, Username: "org", Password: "hunter2"}
	if err := st.CreateOrganization(&org); err != nil {
		t.Fatal(err)
	}

	var addressed string
	pool := NewPool(PoolOpts{
		Store: st,
		Site:  config.SiteConfig{Domain: "e-sim.org", LoginRetries: 3},
		AddressFor: func(s models.Server) string {
			addressed = s.Name
			return srv.URL
		},
		RetryDelay: 1,
	})

	c1, err := pool.ForCountry(country.ID)
	if err != nil {
		t.Fatalf("ForCountry: %v", err)
	}
	c2, err := pool.ForCountry(country.ID)
	if err != nil {
		t.Fatalf("ForCountry again: %v", err)
	}
	if c1 != c2 {
		t.Error("expected the cached client on second call")
	}
	if addressed != "alpha" {
		t.Errorf("AddressFor got server %q, want alpha", addressed)
	}
	if pool.Len() != 1 {
		t.Errorf("Len = %d, want 1", pool.Len())
	}
	c3, err := pool.ForServer(server.ID)
	if err != nil {
		t.Fatalf("ForServer: %v", err)
	}
	if c3 != c1 {
		t.Error("ForServer should share the organization's client")
	}

	if _, err := c1.BattleInfo(context.Background(), 344); err != nil {
		t.Fatalf("BattleInfo: %v", err)
	}
	reloaded, err := st.OrganizationForCountry(country.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reloaded.Cookies, "valid") {
		t.Errorf("Cookies = %q, want the session cookie persisted", reloaded.Cookies)
	}

	pool.Forget(org.ID)
	if pool.Len() != 0 {
		t.Errorf("Len after Forget = %d, want 0", pool.Len())
	}
}

func TestPool_NoOrganization(t *testing.T) {
	st, err := store.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	pool := NewPool(PoolOpts{Store: st})
	if _, err := pool.ForCountry(42); err == nil {
		t.Fatal("expected error without an organization")
	}
	if _, err := pool.ForServer(7); err == nil {
		t.Fatal("expected error without an organization on the server")
	}
}
