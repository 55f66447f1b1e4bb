package postgres

import (
	"context"
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

func TestFriendRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewFriendRepo(db)
	ctx := context.Background()

	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())
	lo, hi := model.OrderedPair(a, b)

	mock.ExpectQuery(`INSERT INTO friendships \(requester_id, addressee_id, user_lo, user_hi, status\) VALUES \(\$1, \$2, \$3, \$4, 'pending'\) RETURNING id, created_at`).
		WithArgs(a, b, lo, hi).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), time.Now()))
	f := &model.Friendship{RequesterID: a, AddresseeID: b}
	require.NoError(t, r.Create(ctx, f))
	require.Equal(t, int64(3), f.ID)
	require.Equal(t, model.FriendPending, f.Status)

	// Reverse direction hits the same canonical pair.
	mock.ExpectQuery(`INSERT INTO friendships`).
		WithArgs(b, a, lo, hi).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, &model.Friendship{RequesterID: b, AddresseeID: a}), errs.ErrAlreadyExists)

	mock.ExpectQuery(`INSERT INTO friendships`).
		WithArgs(a, b, lo, hi).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, r.Create(ctx, &model.Friendship{RequesterID: a, AddresseeID: b}), errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

var pendingCols = []string{"requester_id", "addressee_id", "status", "created_at"}

func TestFriendRepo_Accept(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewFriendRepo(db)
	ctx := context.Background()

	req := uuid.Must(uuid.NewV4())
	addr := uuid.Must(uuid.NewV4())

	// OK
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT requester_id, addressee_id, status, created_at FROM friendships WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(pendingCols).AddRow(req, addr, "pending", time.Now()))
	mock.ExpectExec(`UPDATE friendships SET status='accepted', responded_at=\$2 WHERE id=\$1`).
		WithArgs(int64(5), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	f, err := r.Accept(ctx, 5, addr)
	require.NoError(t, err)
	require.Equal(t, model.FriendAccepted, f.Status)
	require.NotNil(t, f.RespondedAt)

	// Requester cannot accept their own request.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT requester_id, addressee_id, status, created_at FROM friendships`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(pendingCols).AddRow(req, addr, "pending", time.Now()))
	mock.ExpectRollback()
	_, err = r.Accept(ctx, 5, req)
	require.ErrorIs(t, err, errs.ErrForbidden)

	// Already accepted.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT requester_id, addressee_id, status, created_at FROM friendships`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(pendingCols).AddRow(req, addr, "accepted", time.Now()))
	mock.ExpectRollback()
	_, err = r.Accept(ctx, 5, addr)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	// Missing.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT requester_id, addressee_id, status, created_at FROM friendships`).
		WithArgs(int64(6)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	_, err = r.Accept(ctx, 6, addr)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendRepo_DeletePending(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewFriendRepo(db)
	ctx := context.Background()

	req := uuid.Must(uuid.NewV4())
	addr := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT requester_id, addressee_id, status, created_at FROM friendships`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(pendingCols).AddRow(req, addr, "pending", time.Now()))
	mock.ExpectExec(`DELETE FROM friendships WHERE id=\$1`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	require.NoError(t, r.DeletePending(ctx, 5, addr))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT requester_id, addressee_id, status, created_at FROM friendships`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(pendingCols).AddRow(req, addr, "accepted", time.Now()))
	mock.ExpectRollback()
	require.ErrorIs(t, r.DeletePending(ctx, 5, addr), errs.ErrInvalidState)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendRepo_ListFriends_And_Pending(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewFriendRepo(db)
	ctx := context.Background()

	me := uuid.Must(uuid.NewV4())
	bob := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT u.id, u.username FROM friendships f JOIN users u ON u.id = CASE WHEN f.requester_id = \$1`).
		WithArgs(me).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username"}).AddRow(bob, "bob"))
	friends, err := r.ListFriends(ctx, me)
	require.NoError(t, err)
	require.Equal(t, []model.UserSummary{{ID: bob, Username: "bob"}}, friends)

	created := time.Now()
	mock.ExpectQuery(`WHERE f.status = 'pending' AND f.addressee_id = \$1`).
		WithArgs(me).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "rq_id", "rq_name", "ad_id", "ad_name"}).
			AddRow(int64(9), created, bob, "bob", me, "me"))
	in, err := r.ListPending(ctx, me, true)
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, "bob", in[0].From.Username)
	require.Equal(t, me, in[0].To.ID)

	mock.ExpectQuery(`WHERE f.status = 'pending' AND f.requester_id = \$1`).
		WithArgs(me).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "rq_id", "rq_name", "ad_id", "ad_name"}))
	out, err := r.ListPending(ctx, me, false)
	require.NoError(t, err)
	require.Empty(t, out)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendRepo_AreFriends_UsesCanonicalPair(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewFriendRepo(db)

	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())
	lo, hi := model.OrderedPair(a, b)

	for _, args := range [][2]uuid.UUID{{a, b}, {b, a}} {
		mock.ExpectQuery(`SELECT EXISTS \( SELECT 1 FROM friendships WHERE user_lo=\$1 AND user_hi=\$2 AND status='accepted' \)`).
			WithArgs(lo, hi).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		ok, err := r.AreFriends(context.Background(), args[0], args[1])
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}
