package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/taskdeck/apiserver/internal/auth"
	"github.com/taskdeck/apiserver/internal/mq"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
	maxPasswordLen = 72
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) (int, error)
	Stats(ctx context.Context) (store.SystemStats, error)
}

// SessionRevoker invalidates sessions when an account is removed.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID int) (int, error)
}

// UserService encapsulates account use-cases: registration,
// credential checks, profile changes, and the admin mutations.
type UserService struct {
	repo       UserRepository
	revoker    SessionRevoker
	events     *mq.MQ
	eventsChan string
	bcryptCost int
	logger     *slog.Logger
}

func NewUserService(repo UserRepository, revoker SessionRevoker, events *mq.MQ, eventsChannel string, bcryptCost int, logger *slog.Logger) *UserService {
	return &UserService{
		repo:       repo,
		revoker:    revoker,
		events:     events,
		eventsChan: eventsChannel,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// RegisterInput is the validated shape of a registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new account. The first user inserted into an
// empty store becomes an admin; the flag is assigned atomically with
// the insert in the repository.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	// Username length counts characters, not bytes, matching the
	// VARCHAR column. The password limit stays in bytes: bcrypt only
	// reads the first 72 bytes of input.
	if l := utf8.RuneCountInString(input.Username); l < minUsernameLen || l > maxUsernameLen {
		return types.User{}, validationErrorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return types.User{}, validationErrorf("invalid email address")
	}
	if l := len(input.Password); l < minPasswordLen || l > maxPasswordLen {
		return types.User{}, validationErrorf("password must be %d-%d characters", minPasswordLen, maxPasswordLen)
	}

	hashed, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:               input.Username,
		Email:                  input.Email,
		PasswordHash:           hashed,
		IsActive:               true,
		EmailVerified:          true,
		EmailVerificationToken: newVerificationToken(),
	})
	if err != nil {
		return types.User{}, err
	}

	// Email delivery is mocked; the verification link only goes to
	// the log.
	s.logger.Info("verification link issued",
		"email", user.Email,
		"path", "/auth/verify-email/"+user.EmailVerificationToken)
	if user.IsAdmin {
		s.logger.Info("first user registered as admin", "username", user.Username)
	}

	s.publish(ctx, "user.registered", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"is_admin": user.IsAdmin,
	})
	return user, nil
}

// Authenticate checks username and password. Unknown users and wrong
// passwords report the same auth.ErrInvalidCredentials; inactive
// accounts report ErrAccountNotUsable.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, auth.ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return types.User{}, auth.ErrInvalidCredentials
	}
	if !user.IsActive {
		return types.User{}, ErrAccountNotUsable
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Stats(ctx context.Context) (store.SystemStats, error) {
	return s.repo.Stats(ctx)
}

// ProfileUpdate carries the optional profile fields; nil leaves the
// current value in place.
type ProfileUpdate struct {
	Username       *string
	Email          *string
	ProfilePicture *string
}

// UpdateProfile applies the patch to the user's own record and
// returns the updated user plus the replaced picture URL, if the
// update displaced one. The caller is responsible for best-effort
// cleanup of the old picture in object storage.
func (s *UserService) UpdateProfile(ctx context.Context, userID int, update ProfileUpdate) (types.User, string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, "", err
	}

	if update.Username != nil {
		name := strings.TrimSpace(*update.Username)
		if l := utf8.RuneCountInString(name); l < minUsernameLen || l > maxUsernameLen {
			return types.User{}, "", validationErrorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
		}
		user.Username = name
	}
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return types.User{}, "", validationErrorf("invalid email address")
		}
		user.Email = email
	}

	replacedPicture := ""
	if update.ProfilePicture != nil && *update.ProfilePicture != user.ProfilePicture {
		replacedPicture = user.ProfilePicture
		user.ProfilePicture = *update.ProfilePicture
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, "", err
	}
	return updated, replacedPicture, nil
}

// DeleteUser removes the target account and everything it owns. The
// acting admin may not delete themselves. Returns the deleted
// username and how many tasks went with the cascade.
func (s *UserService) DeleteUser(ctx context.Context, adminID, targetID int) (string, int, error) {
	if adminID == targetID {
		return "", 0, ErrSelfActionForbidden
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return "", 0, err
	}

	tasksDeleted, err := s.repo.Delete(ctx, targetID)
	if err != nil {
		return "", 0, err
	}

	// Sessions of a deleted user are dead weight either way (the
	// guard can no longer resolve the subject), but revoking keeps
	// the registry tidy. Best-effort.
	if _, err := s.revoker.RevokeAll(ctx, targetID); err != nil {
		s.logger.Warn("failed to revoke sessions of deleted user", "user_id", targetID, "error", err)
	}

	s.publish(ctx, "user.deleted", map[string]any{
		"user_id":       targetID,
		"username":      target.Username,
		"tasks_deleted": tasksDeleted,
	})
	return target.Username, tasksDeleted, nil
}

// ToggleAdmin flips the target's admin flag. The acting admin may not
// change their own role.
func (s *UserService) ToggleAdmin(ctx context.Context, adminID, targetID int) (types.User, error) {
	if adminID == targetID {
		return types.User{}, ErrSelfActionForbidden
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, err
	}

	target.IsAdmin = !target.IsAdmin
	return s.repo.Update(ctx, target)
}

func (s *UserService) publish(ctx context.Context, event string, payload map[string]any) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := s.events.Publish(ctx, s.eventsChan, data, map[string]string{"event": event}); err != nil {
		s.logger.Warn("failed to publish user event", "event", event, "error", err)
	}
}

func newVerificationToken() string {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf[:])
}
