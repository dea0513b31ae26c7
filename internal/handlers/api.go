package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/persistence"
)

const (
	recentGamesLimit   = 20
	defaultLeaderboard = 10
	maxLeaderboard     = 100
	qrSize             = 256
)

// Routes wires every HTTP endpoint, including the game socket
func (ctx *Context) Routes() http.Handler {
	router := httprouter.New()

	router.GET("/health", ctx.HandleHealth)
	router.GET("/ws", ctx.HandleWS)

	router.GET("/api/stats/:userId", ctx.HandleUserStats)
	router.GET("/api/leaderboard", ctx.HandleLeaderboard)
	router.GET("/api/games/active", ctx.HandleActiveGames)
	router.GET("/api/qr/:roomId", ctx.HandleRoomQR)

	return router
}

// HandleHealth reports liveness
func (ctx *Context) HandleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": ctx.now().UTC().Format(time.RFC3339),
	})
}

// HandleUserStats returns a user's aggregate and recent games
func (ctx *Context) HandleUserStats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("userId")

	stats, recent, err := ctx.Recorder.UserStats(r.Context(), userID, recentGamesLimit)
	if errors.Is(err, persistence.ErrUserNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}
	if err != nil {
		ctx.logger().Error("failed to load user stats", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
		return
	}
	if recent == nil {
		recent = []models.ResultRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       stats,
		"recentGames": recent,
	})
}

// HandleLeaderboard returns the top users by total score
func (ctx *Context) HandleLeaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := defaultLeaderboard
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
			return
		}
		limit = min(n, maxLeaderboard)
	}

	users, err := ctx.Recorder.Leaderboard(r.Context(), limit)
	if err != nil {
		ctx.logger().Error("failed to load leaderboard", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch leaderboard"})
		return
	}
	if users == nil {
		users = []models.UserStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": users})
}

// HandleActiveGames lists sessions that have not finished
func (ctx *Context) HandleActiveGames(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"games": ctx.Sessions.ListActive()})
}

// HandleRoomQR serves a PNG QR code linking to a live room
func (ctx *Context) HandleRoomQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomId")
	if _, ok := ctx.Sessions.Get(roomID); !ok {
		http.NotFound(w, r)
		return
	}

	png, err := qrcode.Encode(ctx.joinLink(r, roomID), qrcode.Medium, qrSize)
	if err != nil {
		ctx.logger().Error("failed to encode qr code", "room_id", roomID, "error", err)
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// joinLink builds the URL a client opens to join roomID
func (ctx *Context) joinLink(r *http.Request, roomID string) string {
	base := strings.TrimRight(ctx.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(roomID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
