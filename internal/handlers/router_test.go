package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronzipp/snake-arena/internal/identity"
	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/persistence"
	"github.com/aaronzipp/snake-arena/internal/store"
)

// fakeTransport delivers frames into per-connection inboxes
type fakeTransport struct {
	mu     sync.Mutex
	inbox  map[string][]frame
	rooms  map[string]map[string]bool
	closed map[string]bool
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:  make(map[string][]frame),
		rooms:  make(map[string]map[string]bool),
		closed: make(map[string]bool),
	}
}

func (f *fakeTransport) deliver(connID string, raw []byte) {
	var fr frame
	if err := json.Unmarshal(raw, &fr); err != nil {
		panic(err)
	}
	f.inbox[connID] = append(f.inbox[connID], fr)
}

func (f *fakeTransport) Send(connID string, raw []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliver(connID, raw)
	return true
}

func (f *fakeTransport) Broadcast(room string, raw []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for connID := range f.rooms[room] {
		f.deliver(connID, raw)
	}
	return len(f.rooms[room])
}

func (f *fakeTransport) Join(room, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[room] == nil {
		f.rooms[room] = make(map[string]bool)
	}
	f.rooms[room][connID] = true
}

func (f *fakeTransport) Leave(room, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[room], connID)
}

func (f *fakeTransport) Connected(connID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed[connID]
}

// take returns and clears the frames queued for a connection
func (f *fakeTransport) take(connID string) []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	frames := f.inbox[connID]
	delete(f.inbox, connID)
	return frames
}

type fakeRecorder struct {
	mu        sync.Mutex
	summaries []models.SessionSummary
	touched   map[string]string
	touchErr  error
	stats     map[string]models.UserStats
	recent    []models.ResultRecord
	board     []models.UserStats
	lastLimit int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		touched: make(map[string]string),
		stats:   make(map[string]models.UserStats),
	}
}

func (f *fakeRecorder) RecordCompletedSessionAsync(summary models.SessionSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
}

func (f *fakeRecorder) TouchUser(_ context.Context, userID, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched[userID] = username
	return nil
}

func (f *fakeRecorder) UserStats(_ context.Context, userID string, _ int) (models.UserStats, []models.ResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[userID]
	if !ok {
		return models.UserStats{}, nil, persistence.ErrUserNotFound
	}
	return s, f.recent, nil
}

func (f *fakeRecorder) Leaderboard(_ context.Context, limit int) ([]models.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return f.board, nil
}

// tokenVerifier accepts "tok-<uid>" and rejects anything else
var tokenVerifier = identity.VerifierFunc(func(_ context.Context, token string) (string, error) {
	uid, ok := strings.CutPrefix(token, "tok-")
	if !ok {
		return "", errors.New("invalid token")
	}
	return uid, nil
})

type harness struct {
	ctx       *Context
	transport *fakeTransport
	recorder  *fakeRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		recorder:  newFakeRecorder(),
	}
	h.ctx = &Context{
		Sessions:    store.NewSessionStore(),
		Identities:  identity.NewCache(),
		Verifier:    tokenVerifier,
		Recorder:    h.recorder,
		Transport:   h.transport,
		GracePeriod: time.Hour,
	}
	return h
}

func (h *harness) send(t *testing.T, connID, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": typ, "data": data})
	require.NoError(t, err)
	h.ctx.HandleMessage(context.Background(), connID, raw)
}

// login authenticates connID as uid and discards the reply
func (h *harness) login(t *testing.T, connID, uid string) {
	t.Helper()
	h.send(t, connID, "authenticate", map[string]string{"idToken": "tok-" + uid, "username": uid + "-name"})
	frames := h.transport.take(connID)
	require.Len(t, frames, 1)
	require.Equal(t, "authenticated", frames[0].Type)
}

// createRoom makes connID host a new room and returns its id
func (h *harness) createRoom(t *testing.T, connID string) string {
	t.Helper()
	h.send(t, connID, "create_room", map[string]any{})
	frames := h.transport.take(connID)
	require.Len(t, frames, 1)
	require.Equal(t, "room_created", frames[0].Type)
	var created struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(frames[0].Data, &created))
	return created.RoomID
}

// activeRoom builds a started room hosted by c1 with one member per extra conn
func (h *harness) activeRoom(t *testing.T, conns ...string) string {
	t.Helper()
	for _, c := range conns {
		h.login(t, c, "u"+c)
	}
	room := h.createRoom(t, conns[0])
	for _, c := range conns[1:] {
		h.send(t, c, "join_room", map[string]string{"roomId": room})
	}
	h.send(t, conns[0], "start_game", map[string]string{"roomId": room})
	for _, c := range conns {
		h.transport.take(c)
	}
	return room
}

func decode[T any](t *testing.T, fr frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(fr.Data, &v))
	return v
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func requireError(t *testing.T, frames []frame, code, message string) {
	t.Helper()
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Type)
	body := decode[errorBody](t, frames[0])
	assert.Equal(t, code, body.Code)
	if message != "" {
		assert.Equal(t, message, body.Message)
	}
}

type gameBody struct {
	ID      string               `json:"id"`
	HostID  string               `json:"hostId"`
	Players []models.Participant `json:"players"`
	Snakes  [][]json.RawMessage  `json:"snakes"`
	State   string               `json:"state"`
	Turn    int64                `json:"turn"`
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)

	h.send(t, "c1", "authenticate", map[string]string{"idToken": "tok-alice", "username": "Alice"})

	frames := h.transport.take("c1")
	require.Len(t, frames, 1)
	assert.Equal(t, "authenticated", frames[0].Type)
	body := decode[map[string]string](t, frames[0])
	assert.Equal(t, "alice", body["userId"])
	assert.Equal(t, "Alice", body["username"])

	who, ok := h.ctx.Identities.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, models.Identity{UserID: "alice", Name: "Alice"}, who)
	assert.Equal(t, "Alice", h.recorder.touched["alice"])
}

func TestAuthenticateWithoutUsernameUsesUserID(t *testing.T) {
	h := newHarness(t)
	h.send(t, "c1", "authenticate", map[string]string{"idToken": "tok-bob"})

	frames := h.transport.take("c1")
	require.Len(t, frames, 1)
	assert.Equal(t, "bob", decode[map[string]string](t, frames[0])["username"])
}

func TestAuthenticateFailures(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		touchErr error
	}{
		{name: "missing token", token: ""},
		{name: "rejected token", token: "forged"},
		{name: "store unavailable", token: "tok-alice", touchErr: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.recorder.touchErr = tt.touchErr

			h.send(t, "c1", "authenticate", map[string]string{"idToken": tt.token})

			frames := h.transport.take("c1")
			require.Len(t, frames, 1)
			assert.Equal(t, "auth_error", frames[0].Type)
			_, bound := h.ctx.Identities.Lookup("c1")
			assert.False(t, bound)
		})
	}
}

func TestAuthenticateAfterConnectionClosedIsNotBound(t *testing.T) {
	h := newHarness(t)
	h.transport.closed["c1"] = true

	h.send(t, "c1", "authenticate", map[string]string{"idToken": "tok-alice"})

	_, bound := h.ctx.Identities.Lookup("c1")
	assert.False(t, bound)
	assert.Empty(t, h.transport.take("c1"))
}

func TestRequestsRequireAuthentication(t *testing.T) {
	h := newHarness(t)

	for _, typ := range []string{"create_room", "join_room", "start_game", "game_update", "player_died", "leave_room"} {
		h.send(t, "anon", typ, map[string]string{"roomId": "room_x"})
		requireError(t, h.transport.take("anon"), "UNAUTHENTICATED", "")
	}
	assert.Equal(t, 0, h.ctx.Sessions.Len())
}

func TestMalformedFrames(t *testing.T) {
	h := newHarness(t)

	h.ctx.HandleMessage(context.Background(), "c1", []byte("{nope"))
	requireError(t, h.transport.take("c1"), "PRECONDITION_FAILED", "Invalid message")

	h.send(t, "c1", "teleport", nil)
	requireError(t, h.transport.take("c1"), "PRECONDITION_FAILED", "Invalid message")
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(t)
	h.login(t, "c1", "host")

	h.send(t, "c1", "create_room", map[string]any{"config": map[string]int{"speed": 3}})

	frames := h.transport.take("c1")
	require.Len(t, frames, 1)
	assert.Equal(t, "room_created", frames[0].Type)

	var created struct {
		RoomID string          `json:"roomId"`
		Game   json.RawMessage `json:"game"`
	}
	require.NoError(t, json.Unmarshal(frames[0].Data, &created))
	assert.True(t, strings.HasPrefix(created.RoomID, "room_"))

	var game struct {
		gameBody
		Config json.RawMessage `json:"config"`
	}
	require.NoError(t, json.Unmarshal(created.Game, &game))
	assert.Equal(t, created.RoomID, game.ID)
	assert.Equal(t, "host", game.HostID)
	assert.Equal(t, "waiting", game.State)
	assert.JSONEq(t, `{"speed":3}`, string(game.Config))
	require.Len(t, game.Players, 1)
	assert.Equal(t, models.DefaultHostColor, game.Players[0].Color)
	assert.True(t, game.Players[0].Alive)

	_, ok := h.ctx.Sessions.Get(created.RoomID)
	assert.True(t, ok)
}

func TestJoinRoomBroadcastsToEveryMember(t *testing.T) {
	h := newHarness(t)
	h.login(t, "c1", "host")
	h.login(t, "c2", "guest")
	room := h.createRoom(t, "c1")

	h.send(t, "c2", "join_room", map[string]any{"roomId": room, "color": []int{9, 9, 9}})

	for _, conn := range []string{"c1", "c2"} {
		frames := h.transport.take(conn)
		require.Len(t, frames, 1, conn)
		assert.Equal(t, "player_joined", frames[0].Type)
		joined := decode[struct {
			PlayerID string   `json:"playerId"`
			Username string   `json:"username"`
			Game     gameBody `json:"game"`
		}](t, frames[0])
		assert.Equal(t, "guest", joined.PlayerID)
		assert.Equal(t, "guest-name", joined.Username)
		require.Len(t, joined.Game.Players, 2)
	}
}

func TestJoinRoomErrorsReachOnlyRequester(t *testing.T) {
	h := newHarness(t)
	conns := []string{"c1", "c2", "c3", "c4", "c5"}
	for _, c := range conns {
		h.login(t, c, "u"+c)
	}
	room := h.createRoom(t, "c1")
	for _, c := range conns[1:4] {
		h.send(t, c, "join_room", map[string]string{"roomId": room})
	}
	for _, c := range conns {
		h.transport.take(c)
	}

	h.send(t, "c5", "join_room", map[string]string{"roomId": room})
	requireError(t, h.transport.take("c5"), "PRECONDITION_FAILED", "Room is full")
	for _, c := range conns[:4] {
		assert.Empty(t, h.transport.take(c), c)
	}

	h.send(t, "c5", "join_room", map[string]string{"roomId": "room_missing"})
	requireError(t, h.transport.take("c5"), "NOT_FOUND", "Room not found")

	h.send(t, "c2", "join_room", map[string]string{"roomId": room})
	requireError(t, h.transport.take("c2"), "PRECONDITION_FAILED", "Already in room")
}

func TestJoinStartedRoomRejected(t *testing.T) {
	h := newHarness(t)
	room := h.activeRoom(t, "c1", "c2")
	h.login(t, "c3", "late")

	h.send(t, "c3", "join_room", map[string]string{"roomId": room})
	requireError(t, h.transport.take("c3"), "PRECONDITION_FAILED", "Game already started")
}

func TestStartGame(t *testing.T) {
	h := newHarness(t)
	h.login(t, "c1", "host")
	h.login(t, "c2", "guest")
	room := h.createRoom(t, "c1")

	h.send(t, "c1", "start_game", map[string]string{"roomId": room})
	requireError(t, h.transport.take("c1"), "PRECONDITION_FAILED", "Need at least 2 players")

	h.send(t, "c2", "join_room", map[string]string{"roomId": room})
	h.transport.take("c1")
	h.transport.take("c2")

	h.send(t, "c2", "start_game", map[string]string{"roomId": room})
	requireError(t, h.transport.take("c2"), "FORBIDDEN", "Only host can start the game")
	assert.Empty(t, h.transport.take("c1"))

	h.send(t, "c1", "start_game", map[string]string{"roomId": room})
	for _, conn := range []string{"c1", "c2"} {
		frames := h.transport.take(conn)
		require.Len(t, frames, 1)
		assert.Equal(t, "game_started", frames[0].Type)
		started := decode[struct {
			Game gameBody `json:"game"`
		}](t, frames[0])
		assert.Equal(t, "active", started.Game.State)
	}
}

func TestGameUpdateRelaysState(t *testing.T) {
	h := newHarness(t)
	room := h.activeRoom(t, "c1", "c2")

	h.send(t, "c2", "game_update", map[string]any{
		"roomId":    room,
		"snakeData": map[string]any{"body": [][]int{{1, 2}}},
		"score":     7,
	})

	for _, conn := range []string{"c1", "c2"} {
		frames := h.transport.take(conn)
		require.Len(t, frames, 1)
		assert.Equal(t, "game_state", frames[0].Type)
		state := decode[gameBody](t, frames[0])
		assert.Equal(t, int64(1), state.Turn)
		require.Len(t, state.Snakes, 1)
		assert.JSONEq(t, `"uc2"`, string(state.Snakes[0][0]))
		assert.JSONEq(t, `{"body":[[1,2]]}`, string(state.Snakes[0][1]))
		for _, p := range state.Players {
			if p.ID == "uc2" {
				assert.Equal(t, int64(7), p.Score)
			}
		}
	}
}

func TestGameUpdateRules(t *testing.T) {
	h := newHarness(t)
	h.login(t, "c1", "host")
	h.login(t, "c3", "outsider")
	room := h.createRoom(t, "c1")

	h.send(t, "c1", "game_update", map[string]any{"roomId": room, "score": 1})
	requireError(t, h.transport.take("c1"), "PRECONDITION_FAILED", "Game not started")

	h.login(t, "c2", "guest")
	h.send(t, "c2", "join_room", map[string]string{"roomId": room})
	h.send(t, "c1", "start_game", map[string]string{"roomId": room})
	h.transport.take("c1")
	h.transport.take("c2")

	h.send(t, "c3", "game_update", map[string]any{"roomId": room, "score": 1})
	requireError(t, h.transport.take("c3"), "FORBIDDEN", "Not a player in this room")
	assert.Empty(t, h.transport.take("c1"))
}

func TestDeathEndsGameWithWinner(t *testing.T) {
	h := newHarness(t)
	room := h.activeRoom(t, "c1", "c2")

	h.send(t, "c2", "game_update", map[string]any{"roomId": room, "score": 4})
	h.transport.take("c1")
	h.transport.take("c2")

	h.send(t, "c2", "player_died", map[string]string{"roomId": room})

	for _, conn := range []string{"c1", "c2"} {
		frames := h.transport.take(conn)
		require.Len(t, frames, 2)
		assert.Equal(t, "player_died", frames[0].Type)
		assert.Equal(t, "uc2", decode[map[string]string](t, frames[0])["playerId"])

		assert.Equal(t, "game_over", frames[1].Type)
		over := decode[struct {
			Winner     *string  `json:"winner"`
			FinalState gameBody `json:"finalState"`
		}](t, frames[1])
		require.NotNil(t, over.Winner)
		assert.Equal(t, "uc1", *over.Winner)
		assert.Equal(t, "finished", over.FinalState.State)
	}

	require.Len(t, h.recorder.summaries, 1)
	summary := h.recorder.summaries[0]
	assert.Equal(t, room, summary.SessionID)
	assert.Equal(t, "uc1", summary.WinnerID)
	require.Len(t, summary.Participants, 2)

	assert.True(t, h.ctx.Sessions.DisposalPending(room))
	_, stillThere := h.ctx.Sessions.Get(room)
	assert.True(t, stillThere, "finished sessions stay retrievable during the grace period")

	h.send(t, "c1", "game_update", map[string]any{"roomId": room, "score": 9})
	h.send(t, "c1", "player_died", map[string]string{"roomId": room})
	assert.Empty(t, h.transport.take("c1"), "mutations after the end are dropped")
	assert.Len(t, h.recorder.summaries, 1)
}

func TestDeathWithSurvivorsKeepsPlaying(t *testing.T) {
	h := newHarness(t)
	room := h.activeRoom(t, "c1", "c2", "c3")

	h.send(t, "c3", "player_died", map[string]string{"roomId": room})

	frames := h.transport.take("c1")
	require.Len(t, frames, 1)
	assert.Equal(t, "player_died", frames[0].Type)
	assert.Empty(t, h.recorder.summaries)
	assert.False(t, h.ctx.Sessions.DisposalPending(room))
}

func TestDeathOfLastParticipantIsDraw(t *testing.T) {
	h := newHarness(t)
	room := h.activeRoom(t, "c1", "c2")

	h.send(t, "c2", "leave_room", map[string]string{"roomId": room})
	frames := h.transport.take("c1")
	require.Len(t, frames, 1)
	assert.Equal(t, "player_left", frames[0].Type, "leaving does not decide a winner")

	h.send(t, "c1", "player_died", map[string]string{"roomId": room})
	frames = h.transport.take("c1")
	require.Len(t, frames, 2)
	assert.Equal(t, "game_over", frames[1].Type)
	assert.Equal(t, "null", string(decode[map[string]json.RawMessage](t, frames[1])["winner"]))

	require.Len(t, h.recorder.summaries, 1)
	assert.Empty(t, h.recorder.summaries[0].WinnerID)
}

func TestLeaveRoom(t *testing.T) {
	h := newHarness(t)
	h.login(t, "c1", "host")
	h.login(t, "c2", "guest")
	room := h.createRoom(t, "c1")
	h.send(t, "c2", "join_room", map[string]string{"roomId": room})
	h.transport.take("c1")
	h.transport.take("c2")

	h.send(t, "c2", "leave_room", map[string]string{"roomId": room})

	assert.Empty(t, h.transport.take("c2"), "the leaver is not notified")
	frames := h.transport.take("c1")
	require.Len(t, frames, 1)
	left := decode[struct {
		PlayerID string   `json:"playerId"`
		Username string   `json:"username"`
		Game     gameBody `json:"game"`
	}](t, frames[0])
	assert.Equal(t, "guest", left.PlayerID)
	assert.Equal(t, "guest-name", left.Username)
	assert.Len(t, left.Game.Players, 1)

	h.send(t, "c2", "leave_room", map[string]string{"roomId": room})
	assert.Empty(t, h.transport.take("c2"), "leaving twice is a no-op")
	assert.Empty(t, h.transport.take("c1"))

	h.send(t, "c1", "leave_room", map[string]string{"roomId": room})
	_, ok := h.ctx.Sessions.Get(room)
	assert.False(t, ok, "empty rooms are removed at once")
	assert.Equal(t, 0, h.ctx.Sessions.Len())

	h.send(t, "c1", "leave_room", map[string]string{"roomId": room})
	requireError(t, h.transport.take("c1"), "NOT_FOUND", "Room not found")
}

func TestDisconnectLeavesEverySession(t *testing.T) {
	h := newHarness(t)
	h.login(t, "c1", "host")
	h.login(t, "c2", "guest")
	first := h.createRoom(t, "c1")
	second := h.createRoom(t, "c1")
	solo := h.createRoom(t, "c2")
	h.send(t, "c2", "join_room", map[string]string{"roomId": first})
	h.send(t, "c2", "join_room", map[string]string{"roomId": second})
	h.transport.take("c1")
	h.transport.take("c2")

	h.ctx.Disconnect("c2")

	frames := h.transport.take("c1")
	require.Len(t, frames, 2)
	for _, fr := range frames {
		assert.Equal(t, "player_left", fr.Type)
	}
	for _, room := range []string{first, second} {
		s, ok := h.ctx.Sessions.Get(room)
		require.True(t, ok)
		s.RLock()
		assert.False(t, s.Has("guest"))
		s.RUnlock()
	}
	_, ok := h.ctx.Sessions.Get(solo)
	assert.False(t, ok, "rooms emptied by the disconnect are removed")

	_, bound := h.ctx.Identities.Lookup("c2")
	assert.False(t, bound)

	h.ctx.Disconnect("c2")
	h.ctx.Disconnect("never-authenticated")
	assert.Empty(t, h.transport.take("c1"))
}

func TestBroadcastOrderFollowsMutations(t *testing.T) {
	h := newHarness(t)
	room := h.activeRoom(t, "c1", "c2")

	for score := 1; score <= 5; score++ {
		h.send(t, "c1", "game_update", map[string]any{"roomId": room, "score": score})
	}

	frames := h.transport.take("c2")
	require.Len(t, frames, 5)
	for i, fr := range frames {
		assert.Equal(t, int64(i+1), decode[gameBody](t, fr).Turn)
	}
}
