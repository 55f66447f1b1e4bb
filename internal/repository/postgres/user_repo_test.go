package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userCols = []string{"id", "username", "email", "pwd_hash", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: "alice",
		Email:    "alice@x.com",
		PwdHash:  "$argon2id$...",
	}
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO users \(id, username, email, pwd_hash\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING created_at`).
		WithArgs(u.ID, u.Username, u.Email, u.PwdHash).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, now, u.CreatedAt)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(u.ID, u.Username, u.Email, u.PwdHash).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(u.ID, u.Username, u.Email, u.PwdHash).
		WillReturnError(errors.New("conn reset"))
	err := r.Create(ctx, u)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, username, email, pwd_hash, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, "u", "u@x.com", "h", time.Now()))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "u@x.com", u.Email)

	mock.ExpectQuery(`SELECT id, username, email, pwd_hash, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, username, email, pwd_hash, created_at FROM users WHERE email=\$1`).
		WithArgs("bob@x.com").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, "bob", "bob@x.com", "h", time.Now()))
	u, err := r.GetByEmail(ctx, "bob@x.com")
	require.NoError(t, err)
	require.Equal(t, "bob", u.Username)

	mock.ExpectQuery(`SELECT id, username, email, pwd_hash, created_at FROM users WHERE email=\$1`).
		WithArgs("nobody@x.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "nobody@x.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`SELECT id, username, email, pwd_hash, created_at FROM users WHERE email=\$1`).
		WithArgs("x@x.com").
		WillReturnError(context.Canceled)
	_, err = r.GetByEmail(ctx, "x@x.com")
	require.ErrorIs(t, err, context.Canceled)
}

func TestUserRepo_Search_EscapesWildcards(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, username FROM users WHERE username ILIKE \$1`).
		WithArgs(`%al\%i\_%`, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username"}).AddRow(id, "al%i_ce"))
	out, err := r.Search(ctx, "al%i_", 10)
	require.NoError(t, err)
	require.Equal(t, []model.UserSummary{{ID: id, Username: "al%i_ce"}}, out)
	require.NoError(t, mock.ExpectationsWereMet())
}
