package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/VanHoang0612/Mochi-Chat/internal/config"
	"github.com/VanHoang0612/Mochi-Chat/internal/domain"
	"github.com/VanHoang0612/Mochi-Chat/internal/otp"
	"github.com/VanHoang0612/Mochi-Chat/internal/password"
	"github.com/VanHoang0612/Mochi-Chat/internal/repository"
	"github.com/VanHoang0612/Mochi-Chat/internal/revocation"
	"github.com/VanHoang0612/Mochi-Chat/internal/service"
	"github.com/VanHoang0612/Mochi-Chat/internal/token"
)

type fixture struct {
	svc    *service.AuthService
	codec  *token.Codec
	users  *memoryUserRepo
	codes  *memoryCodeStore
	sender *recordingSender
	now    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := &base
	clock := func() time.Time { return *now }

	codec := token.NewCodec([]byte("0123456789abcdef0123456789abcdef")).WithClock(clock)
	users := newMemoryUserRepo()
	codes := newMemoryCodeStore()
	sender := &recordingSender{sent: map[string]string{}}
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		OTPTTL:          5 * time.Minute,
		ResetTokenTTL:   5 * time.Minute,
	}

	svc := service.NewAuthService(users, codec, newMemoryRevocationStore(), codes, sender, node, cfg, zap.NewNop())
	return &fixture{svc: svc, codec: codec, users: users, codes: codes, sender: sender, now: now}
}

func (f *fixture) addUser(t *testing.T, username, email, secret string, enabled bool) domain.User {
	t.Helper()
	hash, err := password.Hash(secret)
	require.NoError(t, err)
	user, err := f.users.Create(context.Background(), domain.User{
		ID:           int64(len(f.users.byID) + 1),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Enabled:      enabled,
		Provider:     domain.ProviderLocal,
		Roles:        []string{domain.RoleUser},
	})
	require.NoError(t, err)
	return user
}

func TestLoginThenRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	login, err := f.svc.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)
	require.Equal(t, int64(60_000), login.ExpiresInMS)
	require.Equal(t, "alice", login.User.Username)
	require.Contains(t, login.User.Roles, domain.RoleUser)

	*f.now = f.now.Add(2 * time.Second)

	refreshed, err := f.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)

	first, err := f.codec.Decode(login.AccessToken)
	require.NoError(t, err)
	second, err := f.codec.Decode(refreshed.AccessToken)
	require.NoError(t, err)
	require.True(t, second.IssuedAt.After(first.IssuedAt))
}

func TestLoginByEmail(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	_, err := f.svc.Login(context.Background(), "alice@x.com", "Secret1!")
	require.NoError(t, err)
}

func TestLoginFailuresCollapse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	_, unknownUser := f.svc.Login(ctx, "bob", "Secret1!")
	_, wrongPassword := f.svc.Login(ctx, "alice", "nope")
	require.ErrorIs(t, unknownUser, domain.ErrLoginFailed)
	require.ErrorIs(t, wrongPassword, domain.ErrLoginFailed)
}

func TestLoginDisabledAccount(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@x.com", "Secret1!", false)

	_, err := f.svc.Login(context.Background(), "alice", "Secret1!")
	require.ErrorIs(t, err, domain.ErrAccountDisabled)
}

func TestLogoutThenRefreshFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	login, err := f.svc.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.RefreshToken))

	// The token is unexpired and carries a good signature, yet refresh
	// must give the same collapsed failure as an expired token.
	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRefreshTokenInvalid)
}

func TestDoubleLogoutConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	login, err := f.svc.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.RefreshToken))
	require.ErrorIs(t, f.svc.Logout(ctx, login.RefreshToken), domain.ErrAlreadyRevoked)
}

func TestLogoutRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	login, err := f.svc.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)

	err = f.svc.Logout(ctx, login.AccessToken)
	require.ErrorIs(t, err, domain.ErrRefreshTokenInvalid)
}

func TestRefreshExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	login, err := f.svc.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)

	*f.now = f.now.Add(2 * time.Hour)

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRefreshTokenInvalid)
}

func TestRegisterFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Register(ctx, service.RegisterInput{
		Username: "alice", Email: "alice@x.com", Password: "Secret1!",
		FirstName: "Alice", LastName: "Nguyen",
	})
	require.NoError(t, err)

	exists, err := f.users.ExistsByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	require.True(t, exists)

	// Correct password, but the account is not verified yet.
	_, err = f.svc.Login(ctx, "alice", "Secret1!")
	require.ErrorIs(t, err, domain.ErrAccountDisabled)

	code := f.sender.sent["alice@x.com"]
	require.Len(t, code, otp.CodeLength)

	require.NoError(t, f.svc.VerifyEmail(ctx, "alice@x.com", code))

	login, err := f.svc.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)
	require.True(t, login.User.Enabled)
}

func TestRegisterConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	err := f.svc.Register(ctx, service.RegisterInput{Username: "other", Email: "alice@x.com", Password: "x"})
	require.ErrorIs(t, err, domain.ErrEmailRegistered)

	err = f.svc.Register(ctx, service.RegisterInput{Username: "alice", Email: "new@x.com", Password: "x"})
	require.ErrorIs(t, err, domain.ErrUsernameRegistered)
}

func TestVerifyEmailCodeConsumedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", false)

	require.NoError(t, f.svc.ResendCode(ctx, "alice@x.com"))
	code := f.sender.sent["alice@x.com"]

	require.NoError(t, f.svc.VerifyEmail(ctx, "alice@x.com", code))
	require.ErrorIs(t, f.svc.VerifyEmail(ctx, "alice@x.com", code), domain.ErrCodeExpired)
}

func TestVerifyEmailWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", false)

	require.NoError(t, f.svc.ResendCode(ctx, "alice@x.com"))
	require.ErrorIs(t, f.svc.VerifyEmail(ctx, "alice@x.com", "000000"), domain.ErrCodeInvalid)
}

func TestResendCodeOnEnabledAccount(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	err := f.svc.ResendCode(context.Background(), "alice@x.com")
	require.ErrorIs(t, err, domain.ErrAccountEnabled)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ForgotPassword(context.Background(), "ghost@x.com")
	require.ErrorIs(t, err, domain.ErrEmailNotRegistered)
}

func TestResetGrantRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	require.NoError(t, f.svc.ForgotPassword(ctx, "alice@x.com"))
	code := f.sender.sent["alice@x.com"]

	result, err := f.svc.VerifyOTP(ctx, "alice@x.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, result.ResetToken)

	// The code is consumed by the exchange; it cannot be replayed.
	_, err = f.svc.VerifyOTP(ctx, "alice@x.com", code)
	require.ErrorIs(t, err, domain.ErrCodeExpired)

	require.NoError(t, f.svc.ResetPassword(ctx, result.ResetToken, "Secret2!"))

	// The grant is single-use as well.
	err = f.svc.ResetPassword(ctx, result.ResetToken, "Secret3!")
	require.ErrorIs(t, err, domain.ErrInvalidResetToken)

	_, err = f.svc.Login(ctx, "alice", "Secret1!")
	require.ErrorIs(t, err, domain.ErrLoginFailed)
	_, err = f.svc.Login(ctx, "alice", "Secret2!")
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	err := f.svc.ChangePassword(ctx, "alice", "wrong", "Secret2!")
	require.ErrorIs(t, err, domain.ErrOldPasswordIncorrect)

	require.NoError(t, f.svc.ChangePassword(ctx, "alice", "Secret1!", "Secret2!"))

	_, err = f.svc.Login(ctx, "alice", "Secret1!")
	require.ErrorIs(t, err, domain.ErrLoginFailed)
	_, err = f.svc.Login(ctx, "alice", "Secret2!")
	require.NoError(t, err)
}

func TestConcurrentLogoutsOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	login, err := f.svc.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.svc.Logout(ctx, login.RefreshToken)
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, domain.ErrAlreadyRevoked)
			conflicts++
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, workers-1, conflicts)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@x.com", "Secret1!", true)

	profile, err := f.svc.Profile(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", profile.Email)

	_, err = f.svc.Profile(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

// ---- in-memory fakes ----

type memoryUserRepo struct {
	mu   sync.Mutex
	byID map[int64]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byID: map[int64]domain.User{}}
}

func (m *memoryUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *memoryUserRepo) FindByUsernameOrEmail(ctx context.Context, identifier string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == identifier || u.Email == identifier })
}

func (m *memoryUserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *memoryUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *memoryUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsername(ctx, username)
	return err == nil, nil
}

func (m *memoryUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) Save(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[user.ID]; !ok {
		return repository.ErrNotFound
	}
	m.byID[user.ID] = user
	return nil
}

type memoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]revocation.Record
}

func newMemoryRevocationStore() *memoryRevocationStore {
	return &memoryRevocationStore{revoked: map[string]revocation.Record{}}
}

func (m *memoryRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *memoryRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoked[jti]; ok {
		return revocation.ErrAlreadyRevoked
	}
	m.revoked[jti] = revocation.Record{ExpiresAt: expiresAt, RevokedAt: time.Now()}
	return nil
}

type memoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{entries: map[string]string{}}
}

func (m *memoryCodeStore) Issue(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryCodeStore) Verify(ctx context.Context, key, candidate string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.entries[key]
	if !ok {
		return false, otp.ErrExpired
	}
	return stored == candidate, nil
}

func (m *memoryCodeStore) Lookup(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.entries[key]
	if !ok {
		return "", otp.ErrExpired
	}
	return stored, nil
}

func (m *memoryCodeStore) Consume(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent map[string]string
}

func (r *recordingSender) SendCode(ctx context.Context, email, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[email] = code
	return nil
}
