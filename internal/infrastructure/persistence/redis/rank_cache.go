package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darezone/darezone-ledger/internal/domain/stats"
)

// Key patterns for the rank cache.
const (
	// keyRankPoints is the sorted set of members scored by points.
	keyRankPoints = "ranks:points:"

	// keyRankInfo is the hash of userID -> RankEntry JSON.
	keyRankInfo = "ranks:info:"

	// rankTTL bounds staleness if a refresh stops running.
	rankTTL = 30 * time.Minute
)

// RankEntry is the cached per-member leaderboard row.
type RankEntry struct {
	UserID         string  `json:"user_id"`
	PointsEarned   int     `json:"points_earned"`
	CurrentStreak  int     `json:"current_streak"`
	CompletionRate float64 `json:"completion_rate"`
	PointsRank     int     `json:"points_rank"`
	CompletionRank int     `json:"completion_rank"`
}

// RankCache serves leaderboard reads from sorted sets.
//
// Layout per challenge:
//   - "ranks:points:{challengeID}" sorted set, userID scored by points
//   - "ranks:info:{challengeID}" hash, userID -> RankEntry JSON
//
// Both keys are replaced wholesale on every refresh, in one pipeline, so a
// reader never observes a half-rebuilt board.
type RankCache struct {
	client *Client
}

// NewRankCache creates a RankCache on a connected client.
func NewRankCache(client *Client) *RankCache {
	return &RankCache{client: client}
}

// StoreRanks replaces the cached rank tables for one challenge.
func (c *RankCache) StoreRanks(ctx context.Context, challengeID string, members []*stats.MemberStat) error {
	zKey := keyRankPoints + challengeID
	hKey := keyRankInfo + challengeID

	zs := make([]redis.Z, 0, len(members))
	info := make(map[string]interface{}, len(members))
	for _, m := range members {
		zs = append(zs, redis.Z{Score: float64(m.PointsEarned), Member: m.UserID})

		entry := RankEntry{
			UserID:         m.UserID,
			PointsEarned:   m.PointsEarned,
			CurrentStreak:  m.CurrentStreak,
			CompletionRate: m.CompletionRate,
			PointsRank:     m.PointsRank,
			CompletionRank: m.CompletionRank,
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("rank_cache: marshal entry: %w", err)
		}
		info[m.UserID] = data
	}

	pipe := c.client.Raw().TxPipeline()
	pipe.Del(ctx, zKey, hKey)
	if len(zs) > 0 {
		pipe.ZAdd(ctx, zKey, zs...)
		pipe.HSet(ctx, hKey, info)
	}
	pipe.Expire(ctx, zKey, rankTTL)
	pipe.Expire(ctx, hKey, rankTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rank_cache: store ranks: %w", err)
	}
	return nil
}

// TopByPoints returns the top n cached entries ordered by points.
func (c *RankCache) TopByPoints(ctx context.Context, challengeID string, n int) ([]RankEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	userIDs, err := c.client.Raw().ZRevRange(ctx, keyRankPoints+challengeID, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("rank_cache: range: %w", err)
	}
	if len(userIDs) == 0 {
		return nil, ErrCacheMiss
	}

	raw, err := c.client.Raw().HMGet(ctx, keyRankInfo+challengeID, userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("rank_cache: info lookup: %w", err)
	}

	entries := make([]RankEntry, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var entry RankEntry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetEntry returns one member's cached row.
func (c *RankCache) GetEntry(ctx context.Context, challengeID, userID string) (*RankEntry, error) {
	raw, err := c.client.Raw().HGet(ctx, keyRankInfo+challengeID, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("rank_cache: entry lookup: %w", err)
	}

	var entry RankEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("rank_cache: unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Invalidate drops the cached board for one challenge.
func (c *RankCache) Invalidate(ctx context.Context, challengeID string) error {
	return c.client.Raw().Del(ctx, keyRankPoints+challengeID, keyRankInfo+challengeID).Err()
}
