package user

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/internal/platform/notification"
)

// -- Mock Repository --

type mockRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) copyOf(u *User) *User {
	c := *u
	return &c
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperror.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = m.copyOf(u)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return m.copyOf(u), nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return m.copyOf(u), nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return apperror.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	m.users[u.ID] = m.copyOf(u)
	return nil
}

func (m *mockRepo) Approve(_ context.Context, id, adminID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.IsApproved {
		return false, nil
	}
	u.IsApproved = true
	u.ApprovedBy = &adminID
	u.ApprovedAt = &at
	return true, nil
}

func (m *mockRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperror.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockRepo) filter(keep func(*User) bool) []*User {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.users {
		if keep(u) {
			out = append(out, m.copyOf(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func page(in []*User, limit, offset int) []*User {
	if offset >= len(in) {
		return nil
	}
	end := offset + limit
	if end > len(in) {
		end = len(in)
	}
	return in[offset:end]
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	all := m.filter(func(u *User) bool {
		if f.Role != "" && u.Role != f.Role {
			return false
		}
		return f.Search == "" || strings.Contains(strings.ToLower(u.Name+u.Email), strings.ToLower(f.Search))
	})
	return page(all, limit, offset), len(all), nil
}

func (m *mockRepo) ListPending(context.Context) ([]*User, error) {
	return m.filter(func(u *User) bool { return !u.IsApproved && u.IsActive }), nil
}

func (m *mockRepo) ListCHWs(_ context.Context, f CHWFilter, limit, offset int) ([]*User, int, error) {
	all := m.filter(func(u *User) bool {
		if !u.IsCHW() || !u.IsActive || !u.IsApproved {
			return false
		}
		if f.Availability != "" && u.Availability != f.Availability {
			return false
		}
		return f.Sector == "" || (u.Sector != nil && *u.Sector == f.Sector)
	})
	return page(all, limit, offset), len(all), nil
}

func (m *mockRepo) NearbyCHWs(_ context.Context, sector string, limit int) ([]*User, error) {
	all := m.filter(func(u *User) bool {
		if !u.IsCHW() || !u.IsActive || !u.IsApproved || u.Availability != AvailabilityAvailable {
			return false
		}
		return sector == "" || (u.Sector != nil && strings.Contains(strings.ToLower(*u.Sector), strings.ToLower(sector)))
	})
	return page(all, limit, 0), nil
}

func (m *mockRepo) IncrementCompletedPickups(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.ErrNotFound
	}
	u.CompletedPickups++
	return nil
}

// -- Mock Notifier --

type mockNotifier struct {
	mu       sync.Mutex
	pending  []notification.Recipient
	approved []notification.Recipient
}

func (n *mockNotifier) RegistrationPending(r notification.Recipient) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, r)
}

func (n *mockNotifier) AccountApproved(r notification.Recipient) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved = append(n.approved, r)
}

// -- Helpers --

type testEnv struct {
	svc      *Service
	repo     *mockRepo
	notifier *mockNotifier
	revoked  *auth.MemoryRevocationStore
	tokens   *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	repo := newMockRepo()
	n := &mockNotifier{}
	rev := auth.NewMemoryRevocationStore()
	t.Cleanup(rev.Close)
	return &testEnv{
		svc:      NewService(repo, tokens, rev, n, zerolog.Nop()),
		repo:     repo,
		notifier: n,
		revoked:  rev,
		tokens:   tokens,
	}
}

// seed inserts an account directly, bypassing registration rules.
func (e *testEnv) seed(t *testing.T, name, email, role string, approved, active bool) *User {
	t.Helper()
	hash, err := auth.HashPassword("secret123")
	if err != nil {
		t.Fatal(err)
	}
	u := &User{
		Name: name, Email: email, PasswordHash: hash, Role: role,
		Availability: AvailabilityAvailable, IsApproved: approved, IsActive: active,
	}
	if err := e.repo.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func assertKind(t *testing.T, err error, want apperror.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %v, got nil", want)
	}
	if got := apperror.KindOf(err); got != want {
		t.Fatalf("expected kind %v, got %v (%v)", want, got, err)
	}
}

// -- Registration --

func TestRegister_UserPendingApproval(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Register(context.Background(), RegisterInput{
		Name: "Alice Uwase", Email: "Alice@Example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User.IsApproved || res.User.ApprovedAt != nil {
		t.Error("non-admin account must start unapproved")
	}
	if res.Token != "" {
		t.Error("unapproved account must not receive a token")
	}
	if res.User.Email != "alice@example.com" {
		t.Errorf("email not normalized: %s", res.User.Email)
	}
	if res.User.Role != auth.RoleUser {
		t.Errorf("expected default role user, got %s", res.User.Role)
	}
	if res.User.Avatar == nil || *res.User.Avatar != "AU" {
		t.Errorf("unexpected avatar %v", res.User.Avatar)
	}
	if len(env.notifier.pending) != 1 || env.notifier.pending[0].Email != "alice@example.com" {
		t.Errorf("expected registration-pending notification, got %+v", env.notifier.pending)
	}
}

func TestRegister_AdminAutoApproved(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Register(context.Background(), RegisterInput{
		Name: "Root", Email: "root@umutisafe.gov.rw", Password: "secret123", Role: auth.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.User.IsApproved || res.User.ApprovedAt == nil {
		t.Error("admin account must be auto-approved with approvedAt")
	}
	if res.Token == "" {
		t.Error("approved account must receive a token")
	}
	if len(env.notifier.pending) != 0 {
		t.Error("admin registration must not send pending email")
	}
}

func TestRegister_EmailDomainRules(t *testing.T) {
	tests := []struct {
		role, email string
		ok          bool
	}{
		{auth.RoleAdmin, "boss@gmail.com", false},
		{auth.RoleUser, "user@umutisafe.gov.rw", false},
		{auth.RoleCHW, "chw@UMUTISAFE.GOV.RW", false},
		{auth.RoleCHW, "chw@example.rw", true},
		{auth.RoleAdmin, "boss@umutisafe.gov.rw", true},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.email, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.svc.Register(context.Background(), RegisterInput{
				Name: "X", Email: tt.email, Password: "secret123", Role: tt.role,
			})
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				assertKind(t, err, apperror.KindValidation)
				if n, _, _ := env.repo.List(context.Background(), ListFilter{}, 10, 0); len(n) != 0 {
					t.Error("rejected registration must not persist")
				}
			}
		})
	}
}

func TestRegister_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "secret123"})
	assertKind(t, err, apperror.KindValidation)
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "Bob", "bob@example.com", auth.RoleUser, true, true)
	_, err := env.svc.Register(context.Background(), RegisterInput{
		Name: "Bob2", Email: "BOB@example.com", Password: "secret123",
	})
	assertKind(t, err, apperror.KindConflict)
}

// -- Login --

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	u := env.seed(t, "Carol", "carol@example.com", auth.RoleCHW, true, true)

	res, err := env.svc.Login(context.Background(), LoginInput{Email: "carol@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HasLoggedBefore || res.PreviousLastLogin != nil {
		t.Error("first login must report no previous login")
	}
	claims, err := env.tokens.Parse(res.Token)
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Role != auth.RoleCHW {
		t.Errorf("unexpected claims %+v", claims)
	}

	res2, err := env.svc.Login(context.Background(), LoginInput{Email: "carol@example.com", Password: "secret123"})
	if err != nil {
		t.Fatal(err)
	}
	if !res2.HasLoggedBefore || res2.PreviousLastLogin == nil {
		t.Error("second login must report previous login")
	}
}

func TestLogin_NoUserEnumeration(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "Dan", "dan@example.com", auth.RoleUser, true, true)

	_, errUnknown := env.svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "secret123"})
	_, errBadPass := env.svc.Login(context.Background(), LoginInput{Email: "dan@example.com", Password: "wrong-pass"})

	assertKind(t, errUnknown, apperror.KindUnauthorized)
	assertKind(t, errBadPass, apperror.KindUnauthorized)
	if errUnknown.Error() != errBadPass.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown, errBadPass)
	}
}

func TestLogin_Unapproved(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "Eve", "eve@example.com", auth.RoleUser, false, true)
	_, err := env.svc.Login(context.Background(), LoginInput{Email: "eve@example.com", Password: "secret123"})
	assertKind(t, err, apperror.KindForbidden)
}

func TestLogin_Deactivated(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "Finn", "finn@example.com", auth.RoleUser, true, false)
	_, err := env.svc.Login(context.Background(), LoginInput{Email: "finn@example.com", Password: "secret123"})
	assertKind(t, err, apperror.KindUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Login(context.Background(), LoginInput{Email: "x@example.com"})
	assertKind(t, err, apperror.KindValidation)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	exp := time.Now().Add(time.Hour)
	if err := env.svc.Logout(context.Background(), "jti-1", exp); err != nil {
		t.Fatal(err)
	}
	revoked, _ := env.revoked.IsRevoked(context.Background(), "jti-1")
	if !revoked {
		t.Error("expected token to be revoked")
	}
}

// -- Approval --

func TestApproveUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "Admin", "admin@umutisafe.gov.rw", auth.RoleAdmin, true, true)
	u := env.seed(t, "Gina", "gina@example.com", auth.RoleUser, false, true)

	approved, err := env.svc.ApproveUser(context.Background(), u.ID, admin.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approved.IsApproved || approved.ApprovedBy == nil || *approved.ApprovedBy != admin.ID || approved.ApprovedAt == nil {
		t.Errorf("unexpected approval state %+v", approved)
	}
	if len(env.notifier.approved) != 1 {
		t.Error("expected approval email")
	}
}

func TestApproveUser_AlreadyApproved(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "Admin", "admin@umutisafe.gov.rw", auth.RoleAdmin, true, true)
	u := env.seed(t, "Hugo", "hugo@example.com", auth.RoleUser, false, true)

	first, err := env.svc.ApproveUser(context.Background(), u.ID, admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	stamp := *first.ApprovedAt

	_, err = env.svc.ApproveUser(context.Background(), u.ID, admin.ID)
	assertKind(t, err, apperror.KindConflict)

	stored, _ := env.repo.GetByID(context.Background(), u.ID)
	if !stored.ApprovedAt.Equal(stamp) {
		t.Error("approvedAt changed on repeated approval")
	}
}

func TestApproveUser_ConcurrentApprovalsOneWins(t *testing.T) {
	env := newTestEnv(t)
	u := env.seed(t, "Iris", "iris@example.com", auth.RoleUser, false, true)
	admins := make([]uuid.UUID, 8)
	for i := range admins {
		admins[i] = uuid.New()
	}

	var wg sync.WaitGroup
	errs := make([]error, len(admins))
	for i, adminID := range admins {
		wg.Add(1)
		go func(i int, adminID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.svc.ApproveUser(context.Background(), u.ID, adminID)
		}(i, adminID)
	}
	wg.Wait()

	var winner uuid.UUID
	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
			winner = admins[i]
		case apperror.KindOf(err) != apperror.KindConflict:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one approval to succeed, got %d", wins)
	}
	stored, _ := env.repo.GetByID(context.Background(), u.ID)
	if stored.ApprovedBy == nil || *stored.ApprovedBy != winner {
		t.Errorf("approvedBy overwritten: %v, want %s", stored.ApprovedBy, winner)
	}
}

func TestApproveUser_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.ApproveUser(context.Background(), uuid.New(), uuid.New())
	assertKind(t, err, apperror.KindNotFound)
}

func TestRejectUser(t *testing.T) {
	env := newTestEnv(t)
	u := env.seed(t, "Ivy", "ivy@example.com", auth.RoleUser, false, true)
	if err := env.svc.RejectUser(context.Background(), u.ID); err != nil {
		t.Fatal(err)
	}
	stored, _ := env.repo.GetByID(context.Background(), u.ID)
	if stored.IsActive || stored.IsApproved {
		t.Errorf("expected inactive unapproved account, got %+v", stored)
	}
}

// -- Self protection --

func TestSelfProtection(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "Admin", "admin@umutisafe.gov.rw", auth.RoleAdmin, true, true)
	ctx := context.Background()

	_, err := env.svc.DeactivateUser(ctx, admin.ID, admin.ID)
	assertKind(t, err, apperror.KindValidation)

	err = env.svc.DeleteUser(ctx, admin.ID, admin.ID)
	assertKind(t, err, apperror.KindValidation)

	off := false
	_, err = env.svc.UpdateUser(ctx, admin.ID, admin.ID, AdminUpdateInput{IsActive: &off})
	assertKind(t, err, apperror.KindValidation)

	stored, err := env.repo.GetByID(ctx, admin.ID)
	if err != nil {
		t.Fatal("admin must still exist")
	}
	if !stored.IsActive {
		t.Error("admin must still be active")
	}
}

func TestDeleteAndDeactivateOtherUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "Admin", "admin@umutisafe.gov.rw", auth.RoleAdmin, true, true)
	u := env.seed(t, "Jon", "jon@example.com", auth.RoleUser, true, true)
	ctx := context.Background()

	got, err := env.svc.DeactivateUser(ctx, u.ID, admin.ID)
	if err != nil || got.IsActive {
		t.Fatalf("deactivate failed: %v", err)
	}
	acct, _ := env.svc.Account(ctx, u.ID)
	if acct.Active {
		t.Error("Account must report inactive after deactivation")
	}

	if err := env.svc.DeleteUser(ctx, u.ID, admin.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.repo.GetByID(ctx, u.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("expected hard delete")
	}
}

func TestUpdateUser_RoleDomainCheck(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "Admin", "admin@umutisafe.gov.rw", auth.RoleAdmin, true, true)
	u := env.seed(t, "Kim", "kim@example.com", auth.RoleUser, true, true)

	role := auth.RoleAdmin
	_, err := env.svc.UpdateUser(context.Background(), u.ID, admin.ID, AdminUpdateInput{Role: &role})
	assertKind(t, err, apperror.KindValidation)

	chw := auth.RoleCHW
	sector := "Kicukiro"
	got, err := env.svc.UpdateUser(context.Background(), u.ID, admin.ID, AdminUpdateInput{Role: &chw, Sector: &sector})
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != auth.RoleCHW || got.Sector == nil || *got.Sector != "Kicukiro" {
		t.Errorf("unexpected user %+v", got)
	}
}

// -- Profile --

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.seed(t, "Lea", "lea@example.com", auth.RoleCHW, true, true)

	name := "Lea Mukamana"
	busy := AvailabilityBusy
	got, err := env.svc.UpdateProfile(context.Background(), u.ID, ProfileInput{Name: &name, Availability: &busy})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != name || *got.Avatar != "LM" || got.Availability != AvailabilityBusy {
		t.Errorf("unexpected profile %+v", got)
	}

	bad := "sleeping"
	_, err = env.svc.UpdateProfile(context.Background(), u.ID, ProfileInput{Availability: &bad})
	assertKind(t, err, apperror.KindValidation)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	u := env.seed(t, "Max", "max@example.com", auth.RoleUser, true, true)
	ctx := context.Background()

	err := env.svc.ChangePassword(ctx, u.ID, PasswordInput{CurrentPassword: "nope", NewPassword: "newpass1"})
	assertKind(t, err, apperror.KindUnauthorized)

	err = env.svc.ChangePassword(ctx, u.ID, PasswordInput{CurrentPassword: "secret123", NewPassword: "abc"})
	assertKind(t, err, apperror.KindValidation)

	if err := env.svc.ChangePassword(ctx, u.ID, PasswordInput{CurrentPassword: "secret123", NewPassword: "newpass1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Login(ctx, LoginInput{Email: "max@example.com", Password: "newpass1"}); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

// -- CHW directory --

func TestCHWDirectory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chw := env.seed(t, "Nina", "nina@example.com", auth.RoleCHW, true, true)
	sector := "Gasabo"
	chw.Sector = &sector
	env.repo.Update(ctx, chw)
	env.seed(t, "Omar", "omar@example.com", auth.RoleCHW, true, false)
	user := env.seed(t, "Pat", "pat@example.com", auth.RoleUser, true, true)

	list, total, err := env.svc.ListCHWs(ctx, CHWFilter{}, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || list[0].ID != chw.ID {
		t.Errorf("expected only active CHW, got %d", total)
	}

	near, err := env.svc.NearbyCHWs(ctx, "gasa", 0)
	if err != nil || len(near) != 1 {
		t.Errorf("expected nearby CHW, got %v %v", near, err)
	}

	if _, err := env.svc.GetCHW(ctx, user.ID); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("non-CHW lookup must be 404, got %v", err)
	}

	if _, err := env.svc.UpdateAvailability(ctx, user.ID, AvailabilityBusy); !apperror.Is(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden for non-CHW, got %v", err)
	}
	if _, err := env.svc.UpdateAvailability(ctx, chw.ID, "away"); !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestActiveCHW(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chw := env.seed(t, "Quinn", "quinn@example.com", auth.RoleCHW, true, true)
	inactive := env.seed(t, "Rae", "rae@example.com", auth.RoleCHW, true, false)
	user := env.seed(t, "Sam", "sam@example.com", auth.RoleUser, true, true)

	if _, err := env.svc.ActiveCHW(ctx, chw.ID); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, id := range []uuid.UUID{inactive.ID, user.ID, uuid.New()} {
		if _, err := env.svc.ActiveCHW(ctx, id); !apperror.Is(err, apperror.KindNotFound) {
			t.Errorf("expected not found for %s, got %v", id, err)
		}
	}

	if err := env.svc.RecordCompletedPickup(ctx, chw.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := env.repo.GetByID(ctx, chw.ID)
	if got.CompletedPickups != 1 {
		t.Errorf("completedPickups = %d", got.CompletedPickups)
	}
}

func TestAccount_ReflectsRoleChange(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seed(t, "Admin", "admin@umutisafe.gov.rw", auth.RoleAdmin, true, true)
	chw := env.seed(t, "Grace", "grace@example.com", auth.RoleCHW, true, true)
	ctx := context.Background()

	role := auth.RoleUser
	if _, err := env.svc.UpdateUser(ctx, chw.ID, admin.ID, AdminUpdateInput{Role: &role}); err != nil {
		t.Fatal(err)
	}
	acct, err := env.svc.Account(ctx, chw.ID)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Role != auth.RoleUser || !acct.Active {
		t.Errorf("expected active user account, got %+v", acct)
	}

	missing, err := env.svc.Account(ctx, uuid.New())
	if err != nil || missing.Active {
		t.Errorf("expected deleted user to be inactive, got %+v %v", missing, err)
	}
}
