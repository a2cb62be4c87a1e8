package access

import (
	"context"
	"errors"
	"testing"

	"github.com/eventbook/internal/model"
	"github.com/eventbook/internal/repository"
	"github.com/eventbook/internal/storage/memory"
)

type stubActivities struct {
	activities   map[int64]*model.Activity
	participants map[int64]map[int64]bool
	getCalls     int
}

func (s *stubActivities) GetByID(_ context.Context, id int64) (*model.Activity, error) {
	s.getCalls++
	a, ok := s.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (s *stubActivities) IsParticipant(_ context.Context, activityID, userID int64) (bool, error) {
	return s.participants[activityID][userID], nil
}

type stubChats struct {
	nextID int64
	chats  map[int64]*model.Chat
}

func (s *stubChats) GetOrCreateForActivity(_ context.Context, activityID int64) (*model.Chat, error) {
	if c, ok := s.chats[activityID]; ok {
		return c, nil
	}
	s.nextID++
	c := &model.Chat{ID: s.nextID, ActivityID: activityID}
	s.chats[activityID] = c
	return c, nil
}

func ptr(v int64) *int64 { return &v }

func newStubs() (*stubActivities, *stubChats) {
	activities := &stubActivities{
		activities: map[int64]*model.Activity{
			1: {ID: 1, HostUserID: ptr(10)},
			2: {ID: 2, HostOrganisationID: ptr(5), OrgOwnerID: ptr(20)},
		},
		participants: map[int64]map[int64]bool{
			1: {30: true},
		},
	}
	chats := &stubChats{chats: make(map[int64]*model.Chat)}
	return activities, chats
}

func TestChatForUnknownActivity(t *testing.T) {
	activities, chats := newStubs()
	r := NewResolver(activities, chats, nil)
	_, err := r.ChatFor(context.Background(), 99, &model.User{ID: 10})
	if !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("err = %v, want ErrActivityNotFound", err)
	}
}

func TestChatForAllowedRoles(t *testing.T) {
	tests := []struct {
		name       string
		activityID int64
		user       *model.User
	}{
		{"host user", 1, &model.User{ID: 10}},
		{"participant", 1, &model.User{ID: 30}},
		{"organisation owner", 2, &model.User{ID: 20}},
		{"admin", 1, &model.User{ID: 77, Role: model.RoleAdmin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activities, chats := newStubs()
			r := NewResolver(activities, chats, nil)
			chatID, err := r.ChatFor(context.Background(), tt.activityID, tt.user)
			if err != nil {
				t.Fatalf("ChatFor: %v", err)
			}
			if chatID == 0 {
				t.Fatal("chatID = 0")
			}
		})
	}
}

func TestChatForForbidden(t *testing.T) {
	activities, chats := newStubs()
	r := NewResolver(activities, chats, nil)
	_, err := r.ChatFor(context.Background(), 1, &model.User{ID: 99})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestChatForLazyChatIsStable(t *testing.T) {
	activities, chats := newStubs()
	r := NewResolver(activities, chats, nil)
	first, err := r.ChatFor(context.Background(), 1, &model.User{ID: 10})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.ChatFor(context.Background(), 1, &model.User{ID: 30})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("chat ids differ: %d vs %d", first, second)
	}
}

func TestChatForUsesGrantCache(t *testing.T) {
	activities, chats := newStubs()
	cache := memory.New(0)
	r := NewResolver(activities, chats, cache)
	user := &model.User{ID: 10}

	first, err := r.ChatFor(context.Background(), 1, user)
	if err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := activities.getCalls

	second, err := r.ChatFor(context.Background(), 1, user)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("cached chat id %d != %d", second, first)
	}
	if activities.getCalls != callsAfterFirst {
		t.Errorf("expected cache hit, DB consulted again (%d calls)", activities.getCalls)
	}
}

func TestChatForDenialNotCached(t *testing.T) {
	activities, chats := newStubs()
	cache := memory.New(0)
	r := NewResolver(activities, chats, cache)
	user := &model.User{ID: 99}

	if _, err := r.ChatFor(context.Background(), 1, user); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	// Пользователя добавили в участники — доступ появляется сразу.
	activities.participants[1][99] = true
	if _, err := r.ChatFor(context.Background(), 1, user); err != nil {
		t.Fatalf("ChatFor after adding participant: %v", err)
	}
}
