package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/db"
)

type fakeStaffQueries struct {
	byEmail map[string]db.StaffUser
	byID    map[uuid.UUID]db.StaffUser
}

func (f *fakeStaffQueries) GetStaffUserByEmail(ctx context.Context, email string) (db.StaffUser, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return db.StaffUser{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStaffQueries) GetStaffUserByID(ctx context.Context, id uuid.UUID) (db.StaffUser, error) {
	u, ok := f.byID[id]
	if !ok {
		return db.StaffUser{}, pgx.ErrNoRows
	}
	return u, nil
}

func newTestService(t *testing.T) (*Service, db.StaffUser, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := argon2id.CreateHash("s3cret-pass", argon2id.DefaultParams)
	require.NoError(t, err)
	estID := uuid.New()
	staff := db.StaffUser{
		ID:              uuid.New(),
		EstablishmentID: &estID,
		Name:            "Maria",
		Email:           "maria@cantina.com",
		PasswordHash:    hash,
		Role:            RoleOwner,
	}
	queries := &fakeStaffQueries{
		byEmail: map[string]db.StaffUser{staff.Email: staff},
		byID:    map[uuid.UUID]db.StaffUser{staff.ID: staff},
	}

	svc, err := NewService(Config{
		Queries:  queries,
		Sessions: client,
		Secret:   "test-secret-test-secret-test-secret",
	})
	require.NoError(t, err)
	return svc, staff, mr
}

func TestLoginIssuesTokens(t *testing.T) {
	svc, staff, _ := newTestService(t)

	result, err := svc.Login(context.Background(), "MARIA@cantina.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, staff.ID.String(), result.User.ID)
	require.Equal(t, RoleOwner, result.User.Role)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)

	claims, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, staff.ID.String(), claims.UserID)
	require.Equal(t, RoleOwner, claims.Role)
	require.Equal(t, staff.EstablishmentID.String(), claims.EstablishmentID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "maria@cantina.com", "wrong")
	require.Error(t, err)

	_, err = svc.Login(context.Background(), "nobody@cantina.com", "s3cret-pass")
	require.Error(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	login, err := svc.Login(context.Background(), "maria@cantina.com", "s3cret-pass")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the old token must be dead after rotation
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)

	_, err = svc.Refresh(context.Background(), refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, _, mr := newTestService(t)

	login, err := svc.Login(context.Background(), "maria@cantina.com", "s3cret-pass")
	require.NoError(t, err)

	mr.FastForward(31 * 24 * time.Hour)

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	login, err := svc.Login(context.Background(), "maria@cantina.com", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken))

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
}

func TestParseAccessTokenExpiry(t *testing.T) {
	svc, _, _ := newTestService(t)

	login, err := svc.Login(context.Background(), "maria@cantina.com", "s3cret-pass")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(16 * time.Minute) })
	_, err = svc.ParseAccessToken(login.AccessToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsUnknownRole(t *testing.T) {
	svc, staff, _ := newTestService(t)
	staff.Role = "superuser"

	token, _, err := svc.signAccessToken(staff)
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(token)
	require.Error(t, err, "tokens with roles outside the staff set must be refused")
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ParseAccessToken("")
	require.Error(t, err)
	_, err = svc.ParseAccessToken("not-a-token")
	require.Error(t, err)
}
