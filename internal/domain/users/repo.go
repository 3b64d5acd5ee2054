package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("users: not found")

// trialDays — длительность пробного периода для новых пользователей.
const trialDays = 14

// DB — то, что репозиторию нужно от *pgxpool.Pool.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct {
	pool DB
}

func NewRepo(pool DB) *Repo { return &Repo{pool: pool} }

const userColumns = `id, telegram_id, store_id, email, name, subscription, trial_ends_at, next_billing_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var sub string
	if err := row.Scan(&u.ID, &u.TelegramID, &u.StoreID, &u.Email, &u.Name, &sub,
		&u.TrialEndsAt, &u.NextBillingAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Subscription = SubscriptionState(sub)
	return &u, nil
}

func (r *Repo) GetByTelegramID(ctx context.Context, tgID int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, tgID))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// UpsertFromTelegram создаёт пользователя с триалом или обновляет имя.
// Магазин и подписку существующего пользователя не трогаем.
func (r *Repo) UpsertFromTelegram(ctx context.Context, tg Telegram, storeID string) (*User, error) {
	name := tg.FirstName
	if tg.LastName != "" {
		name += " " + tg.LastName
	}
	if name == "" {
		name = tg.Username
	}
	return scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (telegram_id, store_id, name, subscription, trial_ends_at)
		VALUES ($1, $2, $3, 'TRIAL', now() + make_interval(days => $4))
		ON CONFLICT (telegram_id)
		DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		RETURNING `+userColumns, tg.ID, storeID, name, trialDays))
}

func (r *Repo) SetEmail(ctx context.Context, userID int64, email string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET email = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, userID, email))
}

func (r *Repo) SetStore(ctx context.Context, userID int64, storeID string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET store_id = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, userID, storeID))
}

// ActivateSubscription — локальная активация после того, как провайдер подтвердил оплату.
// Следующее списание — через месяц.
func (r *Repo) ActivateSubscription(ctx context.Context, userID int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET subscription = 'ACTIVE',
		    next_billing_at = now() + interval '1 month',
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, userID))
}
