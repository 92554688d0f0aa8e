package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/config"
	"github.com/ansyar-project/split-the-bill/internal/database"
	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/internal/report"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	recorder *events.Recorder
	audit    *AuditService
	auth     *Authorizer
	groups   *GroupService
	members  *MembershipService
	invites  *InviteService
	expenses *ExpenseService
	reports  *ReportService
	users    *UserService
	archive  *memoryArchive
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(config.DBConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	recorder := &events.Recorder{}
	audit := NewAuditService(db, recorder, 100)
	t.Cleanup(audit.Close)

	auth := NewAuthorizer(db)
	archive := &memoryArchive{objects: map[string][]byte{}}

	return &testEnv{
		db:       db,
		recorder: recorder,
		audit:    audit,
		auth:     auth,
		groups:   NewGroupService(db, auth, audit),
		members:  NewMembershipService(db, auth, audit),
		invites:  NewInviteService(db, auth, audit, 0),
		expenses: NewExpenseService(db, auth, audit),
		reports:  NewReportService(db, auth, audit, report.NewPDFRenderer("IDR"), archive),
		users:    NewUserService(db, auth, audit),
		archive:  archive,
	}
}

func (e *testEnv) createUser(t *testing.T, name string, role models.UserRole) *models.User {
	t.Helper()

	hash, err := utils.HashPassword("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		PasswordHash: hash,
		Role:         role,
	}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return user
}

func (e *testEnv) reloadUser(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()

	var user models.User
	if err := e.db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload user %s: %v", id, err)
	}
	return &user
}

func (e *testEnv) createGroup(t *testing.T, owner *models.User, name string) *models.Group {
	t.Helper()

	group, err := e.groups.Create(context.Background(), owner, CreateGroupInput{Name: name})
	if err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	return group
}

func (e *testEnv) addMember(t *testing.T, admin *models.User, groupID uuid.UUID, user *models.User) {
	t.Helper()

	if _, err := e.members.InviteByEmail(context.Background(), admin, groupID, InviteByEmailInput{Email: user.Email}); err != nil {
		t.Fatalf("failed to add %s: %v", user.Name, err)
	}
}

func splitOf(user *models.User, amount string) SplitInput {
	return SplitInput{UserID: user.ID.String(), Amount: decimal.RequireFromString(amount)}
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func currentPeriod() (int, int) {
	now := time.Now().UTC()
	return int(now.Month()), now.Year()
}

func assertServiceError(t *testing.T, err error, kind ErrorKind, message string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error %q, got nil", kind, message)
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if svcErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%q)", kind, svcErr.Kind, svcErr.Message)
	}
	if message != "" && svcErr.Message != message {
		t.Fatalf("expected message %q, got %q", message, svcErr.Message)
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var count int64
	if err := db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

type memoryArchive struct {
	mu       sync.Mutex
	objects  map[string][]byte
	fail     bool
	linkFail bool
	lastTTL  time.Duration
}

func (a *memoryArchive) StoreReport(_ context.Context, key string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("archive unavailable")
	}
	a.objects[key] = data
	return nil
}

func (a *memoryArchive) PresignedReportURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.linkFail {
		return "", errors.New("cannot sign")
	}
	a.lastTTL = ttl
	return "memory://" + key, nil
}
