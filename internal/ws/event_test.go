package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/eventbook/internal/model"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int64
		wantOK bool
	}{
		{"number", `42`, 42, true},
		{"quoted number", `"42"`, 42, true},
		{"quoted with spaces", `" 42 "`, 42, true},
		{"negative", `-1`, -1, true},
		{"string", `"abc"`, 0, false},
		{"float", `4.2`, 0, false},
		{"null", `null`, 0, false},
		{"object", `{"id":1}`, 0, false},
		{"empty string", `""`, 0, false},
		{"empty raw", ``, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseID(json.RawMessage(tt.raw))
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("parseID(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseIDListDropsInvalid(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`5`),
		json.RawMessage(`"x"`),
		json.RawMessage(`7`),
		json.RawMessage(`"9"`),
		json.RawMessage(`null`),
	}
	got := parseIDList(raw)
	want := []int64{5, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("parseIDList returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parseIDList returned %v, want %v", got, want)
		}
	}
}

func TestParseIDListAllInvalid(t *testing.T) {
	raw := []json.RawMessage{json.RawMessage(`"a"`), json.RawMessage(`true`)}
	if got := parseIDList(raw); len(got) != 0 {
		t.Errorf("parseIDList = %v, want empty", got)
	}
}

func TestSerializeMessageUser(t *testing.T) {
	m := &model.ChatMessage{
		ID:        10,
		ChatID:    1,
		UserID:    3,
		Content:   "hello",
		Kind:      model.MessageKindUser,
		CreatedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Author:    &model.User{ID: 3, Pseudo: "ann"},
		SeenBy:    []int64{3},
	}
	v := SerializeMessage(m)
	if v.System {
		t.Error("user message serialized as system")
	}
	if v.UserName != "ann" {
		t.Errorf("UserName = %q, want %q", v.UserName, "ann")
	}
	if v.Content != "hello" || v.ID != 10 || v.UserID != 3 {
		t.Errorf("unexpected view: %+v", v)
	}
}

func TestSerializeMessageSystemKind(t *testing.T) {
	m := &model.ChatMessage{
		ID:      11,
		UserID:  3,
		Content: "Booking confirmed",
		Kind:    model.MessageKindSystem,
		Author:  &model.User{ID: 3, Pseudo: "ann"},
	}
	v := SerializeMessage(m)
	if !v.System {
		t.Error("system message not flagged")
	}
	if v.UserName != "" {
		t.Errorf("system message must hide author name, got %q", v.UserName)
	}
	if v.Content != "Booking confirmed" {
		t.Errorf("Content = %q", v.Content)
	}
}

func TestSerializeMessageLegacyPrefix(t *testing.T) {
	m := &model.ChatMessage{
		ID:      12,
		UserID:  3,
		Content: "__system__: Payment received",
		Kind:    model.MessageKindUser,
		Author:  &model.User{ID: 3, Pseudo: "ann"},
	}
	v := SerializeMessage(m)
	if !v.System {
		t.Error("legacy prefixed message not flagged as system")
	}
	if v.Content != "Payment received" {
		t.Errorf("Content = %q, want prefix stripped", v.Content)
	}
	if v.UserName != "" {
		t.Errorf("UserName = %q, want empty", v.UserName)
	}
}

func TestSerializeMessageSeenByNeverNull(t *testing.T) {
	m := &model.ChatMessage{
		ID:     13,
		UserID: 3,
		Kind:   model.MessageKindUser,
		Author: &model.User{ID: 3, Firstname: "Ann", Lastname: "Lee"},
	}
	v := SerializeMessage(m)
	if v.SeenBy == nil {
		t.Fatal("SeenBy is nil, must be empty slice")
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["seenBy"].([]any); !ok {
		t.Errorf("seenBy serialized as %T, want array", decoded["seenBy"])
	}
	if decoded["userName"] != "Ann Lee" {
		t.Errorf("userName = %v, want %q", decoded["userName"], "Ann Lee")
	}
}
