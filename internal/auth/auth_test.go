package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/metrics"
	"github.com/ulritter/freelance-crawler/internal/store"
)

func TestGenerateCodeShape(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 8)
		for _, r := range code {
			require.Contains(t, codeCharset, string(r))
		}
		seen[code] = true
	}
	require.Greater(t, len(seen), 45, "codes should be effectively unique")
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	m, err := NewTokenManager("signing-secret")
	require.NoError(t, err)

	now := time.Now().UTC()
	token, err := m.IssueToken("dev@example.com", time.Hour, now)
	require.NoError(t, err)

	email, err := m.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "dev@example.com", email)
}

func TestTokenExpired(t *testing.T) {
	t.Parallel()

	m, err := NewTokenManager("signing-secret")
	require.NoError(t, err)

	token, err := m.IssueToken("dev@example.com", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	require.Error(t, err)
}

func TestTokenWrongSecret(t *testing.T) {
	t.Parallel()

	m1, err := NewTokenManager("secret-one")
	require.NoError(t, err)
	m2, err := NewTokenManager("secret-two")
	require.NoError(t, err)

	token, err := m1.IssueToken("dev@example.com", time.Hour, time.Now())
	require.NoError(t, err)

	_, err = m2.ValidateToken(token)
	require.Error(t, err)
}

// fakeRepo implements the user and code repositories in memory.
type fakeRepo struct {
	users map[string]store.User
	codes []store.AuthCode
}

func newFakeRepo(emails ...string) *fakeRepo {
	r := &fakeRepo{users: map[string]store.User{}}
	for i, e := range emails {
		r.users[e] = store.User{ID: int64(i + 1), Email: e}
	}
	return r
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := r.users[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) EnsureUser(_ context.Context, email string) (store.User, error) {
	u, ok := r.users[email]
	if !ok {
		u = store.User{ID: int64(len(r.users) + 1), Email: email}
		r.users[email] = u
	}
	return u, nil
}

func (r *fakeRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	for email, u := range r.users {
		if u.ID == id {
			u.LastLogin = &at
			r.users[email] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *fakeRepo) SaveCode(_ context.Context, c store.AuthCode) error {
	r.codes = append(r.codes, c)
	return nil
}

func (r *fakeRepo) ConsumeCode(_ context.Context, email, code string, now time.Time) error {
	for i, c := range r.codes {
		if c.Email == email && c.Code == code && !c.Used && c.ExpiresAt.After(now) {
			r.codes[i].Used = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *fakeRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	kept := r.codes[:0]
	var purged int64
	for _, c := range r.codes {
		if c.ExpiresAt.After(now) {
			kept = append(kept, c)
		} else {
			purged++
		}
	}
	r.codes = kept
	return purged, nil
}

type captureMailer struct {
	email string
	code  string
}

func (m *captureMailer) SendCode(_ context.Context, email, code string, _ int) error {
	m.email = email
	m.code = code
	return nil
}

func newTestService(repo *fakeRepo, mailer Mailer) *Service {
	metrics.Init()
	tokens, _ := NewTokenManager("test-secret")
	return NewService(repo, repo, tokens, mailer, ServiceConfig{
		AllowedEmailDomain: "example.com",
		CodeExpiry:         10 * time.Minute,
		SessionValidity:    time.Hour,
	}, zap.NewNop())
}

func TestLoginFlow(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo("dev@example.com")
	mailer := &captureMailer{}
	svc := newTestService(repo, mailer)
	ctx := context.Background()

	require.NoError(t, svc.SendCode(ctx, "Dev@Example.com"))
	require.Equal(t, "dev@example.com", mailer.email)
	require.Len(t, mailer.code, 8)

	session, err := svc.VerifyCode(ctx, "dev@example.com", strings.ToUpper(mailer.code))
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	email, err := svc.ValidateToken(session.Token)
	require.NoError(t, err)
	require.Equal(t, "dev@example.com", email)

	// The code is single use.
	_, err = svc.VerifyCode(ctx, "dev@example.com", mailer.code)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestSendCodeUnknownUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo(), &captureMailer{})
	err := svc.SendCode(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestSendCodeForeignDomain(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo("dev@example.com"), &captureMailer{})
	err := svc.SendCode(context.Background(), "dev@elsewhere.org")
	require.ErrorIs(t, err, ErrDomainNotAllowed)
}

func TestVerifyCodeWrongCode(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo("dev@example.com")
	mailer := &captureMailer{}
	svc := newTestService(repo, mailer)
	ctx := context.Background()

	require.NoError(t, svc.SendCode(ctx, "dev@example.com"))
	_, err := svc.VerifyCode(ctx, "dev@example.com", "00000000")
	require.ErrorIs(t, err, ErrInvalidCode)
}
