package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewRepo(mock), mock
}

func TestRepoGet(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT state, payload FROM dialog_states WHERE chat_id = \$1`).
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"state", "payload"}).
			AddRow(string(StateSaleQty), []byte(`{"prod_id":"p1","last_mid":15}`)))

	it, err := r.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, StateSaleQty, it.State)
	id, _ := GetString(it.Payload, "prod_id")
	assert.Equal(t, "p1", id)
}

func TestRepoGetWithoutRowIsIdle(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(`FROM dialog_states WHERE chat_id = \$1`).
		WithArgs(int64(11)).
		WillReturnError(pgx.ErrNoRows)

	it, err := r.Get(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, it.State)
	assert.NotNil(t, it.Payload)
}

func TestRepoGetError(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(`FROM dialog_states`).
		WithArgs(int64(12)).
		WillReturnError(errors.New("conn reset"))

	_, err := r.Get(context.Background(), 12)
	assert.Error(t, err)
}

func TestRepoSetUpserts(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO dialog_states \(chat_id, state, payload, updated_at\)\s+VALUES \(\$1,\$2,\$3,now\(\)\)\s+ON CONFLICT \(chat_id\) DO UPDATE SET`).
		WithArgs(int64(10), string(StateAccPayDebt), []byte(`{"acc_id":"c1"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO dialog_states`).
		WithArgs(int64(10), string(StateIdle), []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Set(context.Background(), 10, StateAccPayDebt, Payload{"acc_id": "c1"}))
	require.NoError(t, r.Set(context.Background(), 10, StateIdle, nil))
}

func TestRepoReset(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectExec(`DELETE FROM dialog_states WHERE chat_id = \$1`).
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, r.Reset(context.Background(), 10))
}

func TestPayloadHelpers(t *testing.T) {
	raw, err := json.Marshal(Payload{"prod_id": "p1", "qty": 2, "last_mid": 15})
	require.NoError(t, err)
	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))

	id, ok := GetString(p, "prod_id")
	assert.True(t, ok)
	assert.Equal(t, "p1", id)

	qty, ok := GetFloat(p, "qty")
	assert.True(t, ok)
	assert.Equal(t, 2.0, qty)

	_, ok = GetString(p, "qty")
	assert.False(t, ok)
	_, ok = GetFloat(p, "missing")
	assert.False(t, ok)

	v, ok := GetFloat(Payload{"n": 3}, "n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}
