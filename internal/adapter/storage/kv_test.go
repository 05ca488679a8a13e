package storage

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemFileKV(t *testing.T) (FileKV, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	kv, err := NewFileKV(fsys, "/profile")
	require.NoError(t, err)
	return kv, fsys
}

func newTestRedisKV(t *testing.T) (RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKV(client, "darkstore"), mr
}

// kvContract runs the behavior every KV backend shares.
func kvContract(t *testing.T, kv KV) {
	ctx := t.Context()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
	require.NoError(t, kv.Set(ctx, "k", []byte("v2")))

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, kv.Delete(ctx, "k"))
	require.NoError(t, kv.Delete(ctx, "k"))

	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = kv.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestFileKV(t *testing.T) {
	t.Run("Contract", func(t *testing.T) {
		kv, _ := newMemFileKV(t)
		kvContract(t, kv)
	})

	t.Run("OneFilePerKeyNoTempLeftovers", func(t *testing.T) {
		kv, fsys := newMemFileKV(t)
		require.NoError(t, kv.Set(t.Context(), "darkstore-cart", []byte("[]")))
		require.NoError(t, kv.Set(t.Context(), "darkstore-products", []byte("[]")))

		entries, err := afero.ReadDir(fsys, "/profile")
		require.NoError(t, err)

		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		assert.ElementsMatch(t,
			[]string{"darkstore-cart.dat", "darkstore-products.dat"}, names)
	})

	t.Run("RejectsPathKeys", func(t *testing.T) {
		kv, _ := newMemFileKV(t)
		err := kv.Set(t.Context(), "../escape", []byte("x"))
		assert.Error(t, err)
	})

	t.Run("ReadOnlyFsFailsWrite", func(t *testing.T) {
		kv, fsys := newMemFileKV(t)
		ro := FileKV{fs: afero.NewReadOnlyFs(fsys), dir: kv.dir}
		err := ro.Set(t.Context(), "k", []byte("x"))
		assert.Error(t, err)
	})
}

func TestRedisKV(t *testing.T) {
	t.Run("Contract", func(t *testing.T) {
		kv, _ := newTestRedisKV(t)
		kvContract(t, kv)
	})

	t.Run("PrefixedKeyWithoutTTL", func(t *testing.T) {
		kv, mr := newTestRedisKV(t)
		require.NoError(t, kv.Set(t.Context(), "darkstore-cart", []byte("[]")))

		assert.True(t, mr.Exists("darkstore:darkstore-cart"))
		assert.Zero(t, mr.TTL("darkstore:darkstore-cart"))
	})

	t.Run("ServerDown", func(t *testing.T) {
		kv, mr := newTestRedisKV(t)
		mr.Close()
		_, err := kv.Get(t.Context(), "k")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func newSQLKV(t *testing.T) (SQLKV, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLKV(db), mock
}

func TestSQLKV(t *testing.T) {
	selectQ := regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key = $1;`)

	t.Run("Get", func(t *testing.T) {
		kv, mock := newSQLKV(t)
		mock.ExpectQuery(selectQ).
			WithArgs("darkstore-cart").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("[]")))

		got, err := kv.Get(t.Context(), "darkstore-cart")
		require.NoError(t, err)
		assert.Equal(t, []byte("[]"), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetMissing", func(t *testing.T) {
		kv, mock := newSQLKV(t)
		mock.ExpectQuery(selectQ).
			WithArgs("darkstore-cart").
			WillReturnError(sql.ErrNoRows)

		_, err := kv.Get(t.Context(), "darkstore-cart")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Set", func(t *testing.T) {
		kv, mock := newSQLKV(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_store (key, value, updated_at)`)).
			WithArgs("darkstore-cart", []byte("[]")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, kv.Set(t.Context(), "darkstore-cart", []byte("[]")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SetError", func(t *testing.T) {
		kv, mock := newSQLKV(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_store`)).
			WillReturnError(errors.New("disk full"))

		err := kv.Set(t.Context(), "darkstore-cart", []byte("[]"))
		assert.ErrorContains(t, err, "disk full")
	})

	t.Run("Delete", func(t *testing.T) {
		kv, mock := newSQLKV(t)
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_store WHERE key = $1;`)).
			WithArgs("darkstore-cart").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, kv.Delete(t.Context(), "darkstore-cart"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
