package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/client"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/page"
	"github.com/zulandar/warwatch/internal/ratelock"
	"github.com/zulandar/warwatch/internal/store"
)

type fakeSite struct {
	mu sync.Mutex

	battles   map[int]*page.BattleInfo
	round     *page.BattleRoundInfo
	roundIDs  []int
	citizens  map[string]*page.CitizenInfo
	countries []page.CountryInfo
	regions   []page.RegionInfo
	statuses  []page.RegionStatus
	newbies   []page.CitizenRef
	refuse    map[int]string
	motivated []int
	kinds     []client.MotivateKind
	donations []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		battles: map[int]*page.BattleInfo{
			344: {
				ID: 344, Label: "Kanto", Type: page.BattleDirect, RegionID: 412, Round: 14, RoundID: 55123,
				Defender: page.Side{Name: "Japan", Wins: 5, Allies: []string{"China"}},
				Attacker: page.Side{Name: "USA", Wins: 8, Allies: []string{"Canada"}},
			},
		},
		round: &page.BattleRoundInfo{DefenderScore: 765433, AttackerScore: 1234567, TotalScore: 2000000, RemainingSeconds: 650},
		citizens: map[string]*page.CitizenInfo{
			"rookie": {ID: 101, Login: "Rookie", Citizenship: "Japan", Level: 7, Rank: "Private", Strength: 1234.5, DamageToday: 98765},
		},
		countries: []page.CountryInfo{
			{ID: 14, Name: "Japan", ShortName: "JP", CapitalName: "Tokyo", Currency: "JPY"},
			{ID: 23, Name: "USA", ShortName: "US", CapitalName: "Washington", Currency: "USD"},
		},
		regions:  []page.RegionInfo{{ID: 412, Name: "Kanto"}, {ID: 413, Name: "Kansai"}},
		statuses: []page.RegionStatus{{RegionID: 412, OccupantID: 14, Battle: true, Resource: "IRON", RawRichness: "HIGH"}, {RegionID: 413, OccupantID: 14}},
		refuse:   map[int]string{},
	}
}

func (f *fakeSite) BattleInfo(ctx context.Context, id int) (*page.BattleInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.battles[id]
	if !ok {
		return nil, &page.SiteError{Message: "No battle with this id"}
	}
	return b, nil
}

func (f *fakeSite) BattleRoundInfo(ctx context.Context, roundID int) (*page.BattleRoundInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roundIDs = append(f.roundIDs, roundID)
	return f.round, nil
}

func (f *fakeSite) RegionStatuses(ctx context.Context) ([]page.RegionStatus, error) {
	return f.statuses, nil
}

func (f *fakeSite) Citizen(ctx context.Context, name string) (*page.CitizenInfo, error) {
	c, ok := f.citizens[strings.ToLower(name)]
	if !ok {
		return nil, &page.SiteError{Message: "No citizen with this name"}
	}
	return c, nil
}

func (f *fakeSite) Countries(ctx context.Context) ([]page.CountryInfo, error) {
	return f.countries, nil
}

func (f *fakeSite) Regions(ctx context.Context) ([]page.RegionInfo, error) {
	return f.regions, nil
}

func (f *fakeSite) NewCitizens(ctx context.Context, countryID int) ([]page.CitizenRef, error) {
	if countryID != 14 {
		return nil, fmt.Errorf("unexpected country id %d", countryID)
	}
	return f.newbies, nil
}

func (f *fakeSite) Motivate(ctx context.Context, citizenID int, kind client.MotivateKind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.refuse[citizenID]; ok {
		return "", &page.SiteError{Message: msg}
	}
	f.motivated = append(f.motivated, citizenID)
	f.kinds = append(f.kinds, kind)
	return "Citizen motivated", nil
}

func (f *fakeSite) Donate(ctx context.Context, citizenID int, product string, quantity int, reason string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.donations = append(f.donations, fmt.Sprintf("%d:%s:%d:%s", citizenID, product, quantity, reason))
	return "Products donated", nil
}

type fakeSites struct {
	site *fakeSite
	err  error
}

func (s fakeSites) ForCountry(uint) (Site, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.site, nil
}

func (s fakeSites) ForServer(uint) (Site, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.site, nil
}

type fakeWatcher struct {
	mu      sync.Mutex
	added   []models.Watch
	removed []int
	active  map[int]bool
	addErr  error
}

func (w *fakeWatcher) Add(ctx context.Context, watch *models.Watch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.addErr != nil {
		return w.addErr
	}
	w.added = append(w.added, *watch)
	if w.active == nil {
		w.active = map[int]bool{}
	}
	w.active[watch.BattleID] = true
	return nil
}

func (w *fakeWatcher) Remove(serverID uint, battleID int) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed = append(w.removed, battleID)
	existed := w.active[battleID]
	delete(w.active, battleID)
	return existed, nil
}

func (w *fakeWatcher) IsActive(serverID uint, battleID int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active[battleID]
}

// env is a seeded pipeline: server alpha (with country Japan) and beta,
// channel #army linked to Japan as military and motivate, #trade linked as
// motivate only, user alice (Japan access 2) and admin root.
type env struct {
	t       *testing.T
	store   *store.Store
	site    *fakeSite
	watcher *fakeWatcher
	chat    *chat.MockAdapter
	locks   *ratelock.Registry
	now     time.Time
	p       *Pipeline

	alpha, beta models.Server
	japan       models.Country
	army, trade models.Channel
	alice, root models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	e := &env{
		t:       t,
		store:   st,
		site:    newFakeSite(),
		watcher: &fakeWatcher{},
		chat:    chat.NewMockAdapter(),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := e.chat.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.alpha = models.Server{Name: "alpha", Shortname: "a"}
	e.create(&e.alpha)
	e.beta = models.Server{Name: "beta", Shortname: "b"}
	e.create(&e.beta)
	e.japan = models.Country{ServerID: e.alpha.ID, Name: "Japan", Shortname: "JP"}
	e.create(&e.japan)
	e.alice = models.User{Account: "alice"}
	e.create(&e.alice)
	e.root = models.User{Account: "root", Level: models.LevelAdmin}
	e.create(&e.root)
	e.create(&models.CountryAccess{CountryID: e.japan.ID, UserID: e.alice.ID, Level: models.AccessOfficer})
	e.army = models.Channel{Name: "#army"}
	e.create(&e.army)
	e.create(&models.ChannelCountry{ChannelID: e.army.ID, CountryID: e.japan.ID, Types: "military,motivate"})
	e.trade = models.Channel{Name: "#trade", Keyword: "secret"}
	e.create(&e.trade)
	e.create(&models.ChannelCountry{ChannelID: e.trade.ID, CountryID: e.japan.ID, Types: "motivate"})

	e.locks = ratelock.New(ratelock.Opts{DB: st.DB(), Now: func() time.Time { return e.now }})
	e.p, err = New(Opts{
		Store:      st,
		Sites:      fakeSites{site: e.site},
		Watches:    e.watcher,
		Locks:      e.locks,
		Sender:     e.chat,
		Identifier: e.chat,
		Joiner:     e.chat,
		AddressFor: func(s models.Server) string { return s.Address("e-sim.org") },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func (e *env) create(v any) {
	e.t.Helper()
	if err := e.store.DB().Create(v).Error; err != nil {
		e.t.Fatal(err)
	}
}

// run dispatches line as account in channel ("" for a private message)
// and returns every reply, stripped of formatting.
func (e *env) run(channel, account, line string) []string {
	e.t.Helper()
	var mu sync.Mutex
	var replies []string
	msg := chat.InboundMessage{
		Platform:  "irc",
		ChannelID: channel,
		UserID:    account + "-nick",
		UserName:  account + "-nick",
		Account:   account,
		Text:      line,
		Private:   channel == "",
	}
	e.p.Dispatch(context.Background(), chat.Request{
		Message: msg,
		Line:    line,
		Reply: func(ctx context.Context, text string) {
			mu.Lock()
			replies = append(replies, chat.StripCodes(text))
			mu.Unlock()
		},
	})
	return replies
}

// one runs line and expects exactly one reply.
func (e *env) one(channel, account, line string) string {
	e.t.Helper()
	replies := e.run(channel, account, line)
	if len(replies) != 1 {
		e.t.Fatalf("%q: got %d replies %q, want 1", line, len(replies), replies)
	}
	return replies[0]
}

func wantContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("reply %q does not contain %q", got, w)
		}
	}
}
