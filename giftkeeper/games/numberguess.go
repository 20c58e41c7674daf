package games

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const maxGameLength = time.Hour

var (
	ErrGameActive = errors.New("a number game is already running")
	ErrBadTimeout = errors.New("game length must be at most one hour")
	ErrBadRange   = errors.New("number range is invalid")
)

// Announcer sends the game's public and private messages.
type Announcer interface {
	Announce(ctx context.Context, channelID snowflake.ID, message string) error
	Reward(ctx context.Context, userID snowflake.ID, message string) error
}

// NumberGuess is the channel minigame: a hidden number is drawn, everyone in
// the target channel guesses by message, and when the game ends the closest
// guesser is DMed the reward message. One game at a time.
type NumberGuess struct {
	announcer Announcer

	mu            sync.Mutex
	active        bool
	reward        string
	end           time.Time
	number        int64
	min, max      int64
	closestOffset int64
	winner        snowflake.ID
	channel       snowflake.ID
}

func NewNumberGuess(announcer Announcer) *NumberGuess {
	return &NumberGuess{announcer: announcer}
}

// Start begins a game in the given channel.
func (g *NumberGuess) Start(reward string, length time.Duration, channelID snowflake.ID, min, max int64) error {
	if length > maxGameLength {
		return ErrBadTimeout
	}
	if min < 0 || max < min {
		return ErrBadRange
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		return ErrGameActive
	}

	g.active = true
	g.reward = reward
	g.number = min + rand.Int63n(max-min+1)
	g.closestOffset = int64(1)<<62 - 1
	g.winner = 0
	g.channel = channelID
	g.end = time.Now().Add(length)
	g.min = min
	g.max = max

	slog.Info("Number game started",
		slog.String("type", "game"),
		slog.Int64("number", g.number),
		slog.String("channel_id", channelID.String()))
	return nil
}

// Stop abandons the current game without declaring a winner.
func (g *NumberGuess) Stop() {
	g.mu.Lock()
	g.active = false
	g.mu.Unlock()
}

// HandleMessage processes one channel message as a guess. Non-numeric
// messages and messages outside the game channel are ignored. Digits are
// extracted from the message, so "I guess 42!" counts as 42.
func (g *NumberGuess) HandleMessage(ctx context.Context, channelID snowflake.ID, authorID snowflake.ID, content string) {
	g.mu.Lock()
	if !g.active || channelID != g.channel {
		g.mu.Unlock()
		return
	}

	if time.Now().After(g.end) {
		g.finalizeLocked(ctx)
		return
	}

	var digits strings.Builder
	for _, c := range content {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	guess, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || guess < g.min || guess > g.max {
		g.mu.Unlock()
		return
	}

	offset := g.number - guess
	if offset < 0 {
		offset = -offset
	}
	if offset < g.closestOffset {
		g.closestOffset = offset
		g.winner = authorID
		slog.Debug("Number game progressed",
			slog.String("type", "game"),
			slog.Int64("offset", offset),
			slog.String("user_id", authorID.String()))

		if offset == 0 {
			g.finalizeLocked(ctx)
			return
		}
	}
	g.mu.Unlock()
}

// finalizeLocked ends the game and announces the winner. Takes over the held
// lock and releases it before any network call.
func (g *NumberGuess) finalizeLocked(ctx context.Context) {
	g.active = false
	winner := g.winner
	number := g.number
	offset := g.closestOffset
	channel := g.channel
	reward := g.reward
	g.mu.Unlock()

	if winner == 0 {
		return
	}

	accuracy := fmt.Sprintf("The hidden number was %d. The winner was %d off!", number, offset)
	if offset == 0 {
		accuracy = fmt.Sprintf("The hidden number was exactly %d.", number)
	}
	if err := g.announcer.Announce(ctx, channel, fmt.Sprintf("<@%d> won the number guessing game! %s", winner, accuracy)); err != nil {
		slog.Error("Failed to announce number game winner",
			slog.String("type", "game"),
			slog.Any("error", err))
	}

	if err := g.announcer.Reward(ctx, winner, reward); err != nil {
		slog.Error("Failed to DM number game reward",
			slog.String("type", "game"),
			slog.String("user_id", winner.String()),
			slog.Any("error", err))
		if err := g.announcer.Announce(ctx, channel, fmt.Sprintf("Failed to send the reward to <@%d>, are your DMs open?", winner)); err != nil {
			slog.Error("Failed to report reward delivery failure",
				slog.String("type", "game"),
				slog.Any("error", err))
		}
	}
}
