package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/taskdeck/apiserver/internal/auth"
	"github.com/taskdeck/apiserver/internal/store"
)

func newTestUserService(repo *fakeUserRepo, revoker *fakeRevoker) *UserService {
	return NewUserService(repo, revoker, nil, "user-events", 4, discardLogger())
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, &fakeRevoker{})
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if !first.IsAdmin {
		t.Fatalf("expected first user to be admin")
	}
	if !first.IsActive {
		t.Fatalf("expected new user to be active")
	}
	if first.PasswordHash == "secret1" {
		t.Fatalf("expected password to be hashed, got plaintext")
	}

	second, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "secret2"})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if second.IsAdmin {
		t.Fatalf("expected second user to be a regular user")
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, &fakeRevoker{})
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("register error: %v", err)
	}

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "secret1"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}
	_, err = svc.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "secret1"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected conflicting registrations to leave the store untouched, got %d users", len(repo.users))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), &fakeRevoker{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"short username", RegisterInput{Username: "ab", Email: "a@example.com", Password: "secret1"}},
		{"bad email", RegisterInput{Username: "alice", Email: "not-an-email", Password: "secret1"}},
		{"short password", RegisterInput{Username: "alice", Email: "a@example.com", Password: "12345"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestUsernameLimitCountsCharacters(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), &fakeRevoker{})
	ctx := context.Background()

	// 20 CJK characters are 60 bytes but well within the 50-character
	// username limit.
	name := strings.Repeat("名", 20)
	user, err := svc.Register(ctx, RegisterInput{Username: name, Email: "cjk@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("20-character username rejected: %v", err)
	}
	if user.Username != name {
		t.Fatalf("expected multibyte username to be stored as-is")
	}

	var verr *ValidationError
	long := strings.Repeat("名", 51)
	if _, err := svc.Register(ctx, RegisterInput{Username: long, Email: "cjk2@example.com", Password: "secret1"}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for 51-character username, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, &fakeRevoker{})
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	got, err := svc.Authenticate(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("authenticate error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, got.ID)
	}

	if _, err := svc.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	// Unknown usernames are indistinguishable from wrong passwords.
	if _, err := svc.Authenticate(ctx, "nobody", "secret1"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, &fakeRevoker{})
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	user.IsActive = false
	repo.users[user.ID] = user

	if _, err := svc.Authenticate(ctx, "alice", "secret1"); !errors.Is(err, ErrAccountNotUsable) {
		t.Fatalf("expected ErrAccountNotUsable, got %v", err)
	}
}

func TestUpdateProfileReportsReplacedPicture(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, &fakeRevoker{})
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	oldPic := "https://cdn.example.com/bucket/profile-pictures/1/old.jpg"
	newPic := "https://cdn.example.com/bucket/profile-pictures/1/new.jpg"

	if _, replaced, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{ProfilePicture: &oldPic}); err != nil {
		t.Fatalf("update error: %v", err)
	} else if replaced != "" {
		t.Fatalf("expected no replaced picture on first upload, got %q", replaced)
	}

	updated, replaced, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{ProfilePicture: &newPic})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if replaced != oldPic {
		t.Fatalf("expected replaced picture %q, got %q", oldPic, replaced)
	}
	if updated.ProfilePicture != newPic {
		t.Fatalf("expected new picture to stick, got %q", updated.ProfilePicture)
	}

	name := "alicia"
	updated, _, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Username: &name})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.Username != "alicia" || updated.Email != "alice@example.com" {
		t.Fatalf("expected only the username to change, got %q / %q", updated.Username, updated.Email)
	}
}

func TestDeleteUser(t *testing.T) {
	repo := newFakeUserRepo()
	revoker := &fakeRevoker{}
	svc := newTestUserService(repo, revoker)
	ctx := context.Background()

	admin, _ := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	victim, _ := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "secret2"})
	repo.cascaded = 3

	username, tasksDeleted, err := svc.DeleteUser(ctx, admin.ID, victim.ID)
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if username != "bob" {
		t.Fatalf("expected deleted username bob, got %q", username)
	}
	if tasksDeleted != 3 {
		t.Fatalf("expected 3 cascaded tasks, got %d", tasksDeleted)
	}
	if len(revoker.revoked) != 1 || revoker.revoked[0] != victim.ID {
		t.Fatalf("expected sessions of user %d revoked, got %v", victim.ID, revoker.revoked)
	}
	if _, ok := repo.users[victim.ID]; ok {
		t.Fatalf("expected user row gone")
	}
}

func TestDeleteUserSelfForbidden(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, &fakeRevoker{})
	ctx := context.Background()

	admin, _ := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})

	if _, _, err := svc.DeleteUser(ctx, admin.ID, admin.ID); !errors.Is(err, ErrSelfActionForbidden) {
		t.Fatalf("expected ErrSelfActionForbidden, got %v", err)
	}
	if _, ok := repo.users[admin.ID]; !ok {
		t.Fatalf("expected admin row to survive")
	}
}

func TestToggleAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, &fakeRevoker{})
	ctx := context.Background()

	admin, _ := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	other, _ := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "secret2"})

	promoted, err := svc.ToggleAdmin(ctx, admin.ID, other.ID)
	if err != nil {
		t.Fatalf("toggle error: %v", err)
	}
	if !promoted.IsAdmin {
		t.Fatalf("expected user to be promoted")
	}

	demoted, err := svc.ToggleAdmin(ctx, admin.ID, other.ID)
	if err != nil {
		t.Fatalf("toggle error: %v", err)
	}
	if demoted.IsAdmin {
		t.Fatalf("expected user to be demoted")
	}

	if _, err := svc.ToggleAdmin(ctx, admin.ID, admin.ID); !errors.Is(err, ErrSelfActionForbidden) {
		t.Fatalf("expected ErrSelfActionForbidden, got %v", err)
	}

	if _, err := svc.ToggleAdmin(ctx, admin.ID, 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}
