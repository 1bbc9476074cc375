// Package session implements the server-side session registry backing
// token revocation. Sessions live in redis: a hash per session keyed by
// session:<id>, plus a per-user set user-sessions:<user_id> so every
// grant for a user can be found on logout-all. Both keys carry a TTL so
// expired sessions age out on their own; manual logout only flips the
// is_valid field, it never deletes the record.
package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskdeck/apiserver/types"
)

const (
	sessionKeyPrefix  = "session:"
	userSessionsKey   = "user-sessions:"
	fieldUserID       = "user_id"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
	fieldIsValid      = "is_valid"
	indexExtraTTL     = time.Hour
	timeLayoutSeconds = time.RFC3339
)

// Registry stores and invalidates sessions in redis.
type Registry struct {
	client *redis.Client
}

func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client}
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Create allocates a new session for the user and returns it. The
// generated id is what token issuance embeds as the jti claim.
func (r *Registry) Create(ctx context.Context, userID int, ttl time.Duration) (types.Session, error) {
	now := time.Now().UTC()
	session := types.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IsValid:   true,
	}

	key := sessionKeyPrefix + session.ID
	indexKey := userSessionsKey + strconv.Itoa(userID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldUserID, strconv.Itoa(userID),
		fieldCreatedAt, session.CreatedAt.Format(timeLayoutSeconds),
		fieldExpiresAt, session.ExpiresAt.Format(timeLayoutSeconds),
		fieldIsValid, "1",
	)
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, indexKey, session.ID)
	// The index must outlive its newest member or logout-all would
	// miss still-valid sessions.
	pipe.Expire(ctx, indexKey, ttl+indexExtraTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// Get returns the session record. Absent or expired sessions report
// ErrNotFound.
func (r *Registry) Get(ctx context.Context, sessionID string) (types.Session, error) {
	values, err := r.client.HGetAll(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return types.Session{}, err
	}
	if len(values) == 0 {
		return types.Session{}, ErrNotFound
	}
	return parseSession(sessionID, values)
}

// Invalidate flips a single session to invalid. Unknown or already
// invalid sessions are a no-op.
func (r *Registry) Invalidate(ctx context.Context, sessionID string) error {
	key := sessionKeyPrefix + sessionID
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return nil
	}
	return r.client.HSet(ctx, key, fieldIsValid, "0").Err()
}

// InvalidateAllForUser flips every currently valid session of the user
// and returns how many were flipped. The batch is best-effort: a
// failure partway returns the sessions invalidated so far along with
// the error.
func (r *Registry) InvalidateAllForUser(ctx context.Context, userID int) (int, error) {
	ids, err := r.client.SMembers(ctx, userSessionsKey+strconv.Itoa(userID)).Result()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		session, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return count, err
		}
		if !session.IsValid {
			continue
		}
		if err := r.Invalidate(ctx, id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ListActiveForUser returns the user's currently valid sessions.
func (r *Registry) ListActiveForUser(ctx context.Context, userID int) ([]types.Session, error) {
	ids, err := r.client.SMembers(ctx, userSessionsKey+strconv.Itoa(userID)).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]types.Session, 0, len(ids))
	for _, id := range ids {
		session, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if session.IsValid {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// ErrNotFound is returned when a session does not exist or has expired
// out of the registry.
var ErrNotFound = errors.New("session not found")

func parseSession(id string, values map[string]string) (types.Session, error) {
	userID, err := strconv.Atoi(values[fieldUserID])
	if err != nil {
		return types.Session{}, err
	}
	createdAt, err := time.Parse(timeLayoutSeconds, values[fieldCreatedAt])
	if err != nil {
		return types.Session{}, err
	}
	expiresAt, err := time.Parse(timeLayoutSeconds, values[fieldExpiresAt])
	if err != nil {
		return types.Session{}, err
	}
	return types.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		IsValid:   values[fieldIsValid] == "1",
	}, nil
}
