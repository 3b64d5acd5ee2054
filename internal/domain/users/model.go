package users

import "time"

type SubscriptionState string

const (
	SubActive   SubscriptionState = "ACTIVE"
	SubPending  SubscriptionState = "PENDING"
	SubCanceled SubscriptionState = "CANCELED"
	SubFree     SubscriptionState = "FREE"
	SubTrial    SubscriptionState = "TRIAL"
)

type User struct {
	ID            int64
	TelegramID    int64
	StoreID       string // магазин (тенант), к которому привязан пользователь
	Email         string
	Name          string
	Subscription  SubscriptionState
	TrialEndsAt   *time.Time
	NextBillingAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Telegram struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// EffectiveStatus применяет проверки по датам: закончившийся триал — FREE,
// просроченное продление активной подписки — PENDING.
func (u User) EffectiveStatus(now time.Time) SubscriptionState {
	switch u.Subscription {
	case SubTrial:
		if u.TrialEndsAt != nil && now.After(*u.TrialEndsAt) {
			return SubFree
		}
	case SubActive:
		if u.NextBillingAt != nil && now.After(*u.NextBillingAt) {
			return SubPending
		}
	case "":
		return SubFree
	}
	return u.Subscription
}

func (u User) HasPaidAccess(now time.Time) bool {
	switch u.EffectiveStatus(now) {
	case SubActive, SubTrial:
		return true
	default:
		return false
	}
}
