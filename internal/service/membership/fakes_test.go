package membership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-builders/sponsor-points-backend/internal/domain/sponsor"
	"github.com/open-builders/sponsor-points-backend/internal/domain/user"
	"github.com/open-builders/sponsor-points-backend/internal/platform/telegram"
)

type memStore struct {
	mu          sync.Mutex
	users       []user.User
	channels    []sponsor.Channel
	memberships map[pairKey]sponsor.Membership
	accessSets  int
	upsertErr   error
	addErr      error
}

func newMemStore() *memStore {
	return &memStore{memberships: make(map[pairKey]sponsor.Membership)}
}

func (s *memStore) addUser(id, telegramID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user.User{ID: id, Level: 1}
	if telegramID != 0 {
		tg := telegramID
		u.TelegramID = &tg
	}
	s.users = append(s.users, u)
}

func (s *memStore) addChannel(ch sponsor.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, ch)
}

func (s *memStore) points(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == userID {
			return u.Points
		}
	}
	return -1
}

func (s *memStore) membership(userID, channelID int64) (sponsor.Membership, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[pairKey{userID, channelID}]
	return m, ok
}

func (s *memStore) ListWithTelegramID(ctx context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []user.User
	for _, u := range s.users {
		if u.HasTelegram() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memStore) AddPoints(ctx context.Context, userID int64, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return 0, s.addErr
	}
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].Points += amount
			s.users[i].Level = user.LevelForPoints(s.users[i].Points)
			return s.users[i].Points, nil
		}
	}
	return 0, fmt.Errorf("user %d not found", userID)
}

func (s *memStore) ListActive(ctx context.Context) ([]sponsor.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sponsor.Channel
	for _, ch := range s.channels {
		if ch.IsActive {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *memStore) UpdateAccess(ctx context.Context, id int64, hasAccess bool, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessSets++
	for i := range s.channels {
		if s.channels[i].ID == id {
			s.channels[i].BotHasAccess = hasAccess
			t := checkedAt
			s.channels[i].LastAccessCheck = &t
			return nil
		}
	}
	return errors.New("channel not found")
}

func (s *memStore) GetMembership(ctx context.Context, userID, channelID int64) (*sponsor.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[pairKey{userID, channelID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *memStore) UpsertMembership(ctx context.Context, m *sponsor.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.memberships[pairKey{m.UserID, m.ChannelID}] = *m
	return nil
}

type checkKey struct {
	telegramUserID int64
	channelID      string
}

// fakeChecker answers from a table; unknown pairs are not members.
type fakeChecker struct {
	mu       sync.Mutex
	statuses map[checkKey]string
	failures map[checkKey]error
	access   map[string]bool
	delay    time.Duration

	memberCalls atomic.Int32
	accessCalls atomic.Int32
	calledFor   []checkKey
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{
		statuses: make(map[checkKey]string),
		failures: make(map[checkKey]error),
		access:   make(map[string]bool),
	}
}

func (c *fakeChecker) setStatus(tg int64, channel, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[checkKey{tg, channel}] = status
}

func (c *fakeChecker) fail(tg int64, channel string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[checkKey{tg, channel}] = err
}

func (c *fakeChecker) CheckMembership(ctx context.Context, telegramUserID int64, channelID string) telegram.MembershipResult {
	c.memberCalls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := checkKey{telegramUserID, channelID}
	c.calledFor = append(c.calledFor, k)
	if err := c.failures[k]; err != nil {
		return telegram.MembershipResult{Err: err}
	}
	status := c.statuses[k]
	return telegram.MembershipResult{IsMember: telegram.IsMemberStatus(status), Status: status}
}

func (c *fakeChecker) CheckChannelAccess(ctx context.Context, channelID string) bool {
	c.accessCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access[channelID]
}

func (c *fakeChecker) calls() []checkKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]checkKey(nil), c.calledFor...)
}
