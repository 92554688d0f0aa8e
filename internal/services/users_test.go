package services

import (
	"context"
	"strings"
	"testing"

	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/google/uuid"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.Register(ctx, RegisterInput{Name: " Dina ", Email: " Dina@Example.COM ", Password: "secret1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Email != "dina@example.com" || user.Name != "Dina" || user.Role != models.UserRoleMember {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash == "secret1" || !utils.CheckPassword("secret1", user.PasswordHash) {
		t.Fatal("expected a bcrypt hash of the password")
	}

	tests := []struct {
		name    string
		input   RegisterInput
		kind    ErrorKind
		message string
	}{
		{"short name", RegisterInput{Name: "D", Email: "d@example.com", Password: "secret1"}, KindValidation, "Name is required"},
		{"bad email", RegisterInput{Name: "Dina", Email: "dina", Password: "secret1"}, KindValidation, "Invalid email"},
		{"short password", RegisterInput{Name: "Dina", Email: "d@example.com", Password: "12345"}, KindValidation, "Password must be at least 6 characters"},
		{"password over bcrypt limit", RegisterInput{Name: "Dina", Email: "long@example.com", Password: strings.Repeat("p", 100)}, KindValidation, "Password must be at most 72 characters"},
		{"multi-byte password over 72 bytes", RegisterInput{Name: "Dina", Email: "wide@example.com", Password: strings.Repeat("é", 40)}, KindValidation, "Password must be at most 72 characters"},
		{"duplicate email", RegisterInput{Name: "Dina", Email: "DINA@example.com", Password: "secret1"}, KindConflict, "Email already registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Register(ctx, tt.input)
			assertServiceError(t, err, tt.kind, tt.message)
		})
	}

	t.Run("password at bcrypt limit", func(t *testing.T) {
		password := strings.Repeat("p", 72)
		user, err := env.users.Register(ctx, RegisterInput{Name: "Eko", Email: "eko@example.com", Password: password})
		if err != nil {
			t.Fatalf("expected a 72-character password to be accepted, got %v", err)
		}
		if !utils.CheckPassword(password, user.PasswordHash) {
			t.Fatal("expected the 72-character password to verify")
		}
	})
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.users.Register(ctx, RegisterInput{Name: "Dina", Email: "dina@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	session, err := env.users.Authenticate(ctx, LoginInput{Email: "DINA@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	claims, err := utils.ValidateToken(session.Token)
	if err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
	if claims.UserID != session.User.ID {
		t.Fatalf("expected token for %s, got %s", session.User.ID, claims.UserID)
	}

	_, err = env.users.Authenticate(ctx, LoginInput{Email: "dina@example.com", Password: "wrong-password"})
	assertServiceError(t, err, KindUnauthorized, "Invalid email or password")

	_, err = env.users.Authenticate(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assertServiceError(t, err, KindUnauthorized, "Invalid email or password")

	_, err = env.users.Authenticate(ctx, LoginInput{Email: "dina@example.com"})
	assertServiceError(t, err, KindValidation, "Password is required")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "dina", models.UserRoleMember)

	name := "Dina Putri"
	password := "new-secret"
	updated, err := env.users.UpdateProfile(ctx, user, UpdateProfileInput{Name: &name, Password: &password})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != name || !utils.CheckPassword(password, updated.PasswordHash) {
		t.Fatalf("expected name and password updated, got %+v", updated)
	}

	short := "x"
	_, err = env.users.UpdateProfile(ctx, user, UpdateProfileInput{Password: &short})
	assertServiceError(t, err, KindValidation, "Password must be at least 6 characters")

	long := strings.Repeat("q", 80)
	_, err = env.users.UpdateProfile(ctx, user, UpdateProfileInput{Password: &long})
	assertServiceError(t, err, KindValidation, "Password must be at most 72 characters")

	if !utils.CheckPassword(password, env.reloadUser(t, user.ID).PasswordHash) {
		t.Fatal("expected the rejected update to keep the previous password")
	}
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	alice := env.createUser(t, "alice", models.UserRoleMember)
	bob := env.createUser(t, "bob", models.UserRoleMember)

	t.Run("members cannot administer users", func(t *testing.T) {
		_, _, err := env.users.List(ctx, alice, "", utils.PaginationParams{Page: 1, Limit: 10})
		assertServiceError(t, err, KindForbidden, "Not allowed")

		_, err = env.users.Promote(ctx, alice, bob.ID)
		assertServiceError(t, err, KindForbidden, "Not allowed")
	})

	t.Run("list with search", func(t *testing.T) {
		users, total, err := env.users.List(ctx, admin, "ALI", utils.PaginationParams{Page: 1, Limit: 10})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 1 || len(users) != 1 || users[0].ID != alice.ID {
			t.Fatalf("expected only alice, got total=%d users=%v", total, users)
		}

		all, total, err := env.users.List(ctx, admin, "", utils.PaginationParams{Page: 1, Limit: 2})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 3 || len(all) != 2 {
			t.Fatalf("expected page of 2 out of 3, got %d of %d", len(all), total)
		}
	})

	t.Run("promote and demote", func(t *testing.T) {
		promoted, err := env.users.Promote(ctx, admin, alice.ID)
		if err != nil {
			t.Fatalf("promote failed: %v", err)
		}
		if promoted.Role != models.UserRoleAdmin {
			t.Fatalf("expected admin, got %q", promoted.Role)
		}

		demoted, err := env.users.Demote(ctx, admin, alice.ID)
		if err != nil {
			t.Fatalf("demote failed: %v", err)
		}
		if demoted.Role != models.UserRoleMember {
			t.Fatalf("expected member, got %q", demoted.Role)
		}

		_, err = env.users.Demote(ctx, admin, admin.ID)
		assertServiceError(t, err, KindConflict, "At least one system admin is required")

		_, err = env.users.Promote(ctx, admin, uuid.New())
		assertServiceError(t, err, KindNotFound, "User not found")
	})

	t.Run("delete rules", func(t *testing.T) {
		err := env.users.Delete(ctx, admin, admin.ID)
		assertServiceError(t, err, KindConflict, "You cannot delete your own account")

		group := env.createGroup(t, alice, "Trip")
		env.addMember(t, alice, group.ID, bob)

		err = env.users.Delete(ctx, admin, alice.ID)
		assertServiceError(t, err, KindConflict, "User is the last admin of a group")

		if _, err := env.expenses.Create(ctx, alice, group.ID, CreateExpenseInput{
			Title: "Fuel", Amount: dec("20"), Splits: []SplitInput{splitOf(bob, "20")},
		}); err != nil {
			t.Fatalf("create expense failed: %v", err)
		}
		err = env.users.Delete(ctx, admin, bob.ID)
		assertServiceError(t, err, KindConflict, "User has expense history and cannot be deleted")

		carol := env.createUser(t, "carol", models.UserRoleMember)
		env.addMember(t, alice, group.ID, carol)
		if err := env.users.Delete(ctx, admin, carol.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if n := countRows(t, env.db, &models.Membership{}, "user_id = ?", carol.ID); n != 0 {
			t.Fatalf("expected memberships removed, found %d", n)
		}

		err = env.users.Delete(ctx, admin, carol.ID)
		assertServiceError(t, err, KindNotFound, "User not found")
	})
}
