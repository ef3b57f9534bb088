package storage

import "time"

// SessionEntity is the legacy relational session row. Only one row is ever
// active.
type SessionEntity struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	AccessToken string `gorm:"not null"`
	TokenType   string
	UserID      int64
	UserUUID    string `gorm:"index"`
	IsActive    bool   `gorm:"index"`
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

func (SessionEntity) TableName() string { return "sessions" }

// UserEntity caches the authenticated profile, keyed by UUID.
type UserEntity struct {
	UUID          string `gorm:"primaryKey;column:uuid"`
	RemoteID      int64  `gorm:"column:remote_id"`
	Username      string
	Email         string
	FirstName     string
	LastName      string
	Avatar        string
	Phone         string
	Balance       string
	FrozenBalance string
	CanWithdraw   *bool
	CanDeposit    *bool
	CanTransfer   *bool
	CanBuy        *bool
	CanSell       *bool
	IsKYC         bool `gorm:"column:is_kyc"`
	IsVIP         bool `gorm:"column:is_vip"`
	PhoneVerified bool
	TwoFAEnabled  bool   `gorm:"column:two_fa_enabled"`
	TwoFASecret   string `gorm:"column:two_fa_secret"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (UserEntity) TableName() string { return "users" }

// SettingsEntity is the single settings row, id 1.
type SettingsEntity struct {
	ID                   uint `gorm:"primaryKey"`
	Theme                string
	Language             string
	NotificationsEnabled bool
	BiometricEnabled     bool
	CreatedAt            time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime:false"`
}

func (SettingsEntity) TableName() string { return "settings" }

// OfferEntity is the cached form of a P2P offer. Nested structures are kept
// as opaque JSON text.
type OfferEntity struct {
	UUID            string `gorm:"primaryKey;column:uuid"`
	Type            string `gorm:"not null"`
	Coin            string `gorm:"index"`
	PeerID          *int64
	Amount          string
	Receive         string
	Details         string
	Message         string
	OnlyKYC         int `gorm:"column:only_kyc"`
	Private         int
	OnlyVIP         int `gorm:"column:only_vip"`
	Status          string
	TransactionID   *string
	ServerCreatedAt string `gorm:"column:created_at;index"`
	ServerUpdatedAt string `gorm:"column:updated_at"`
	CoinJSON        string `gorm:"column:coin_json"`
	OwnerJSON       string `gorm:"column:owner_json"`
	PeerJSON        string `gorm:"column:peer_json"`
	LastSync        time.Time `gorm:"index"`
	IsMine          bool      `gorm:"index"`
	LocalStatus     *string
}

func (OfferEntity) TableName() string { return "p2p_offers" }

// AlertEntity is a user-defined offer alert.
type AlertEntity struct {
	ID                   int64 `gorm:"primaryKey;autoIncrement"`
	Name                 string
	CoinType             string
	OfferType            string
	MinAmount            *string
	MaxAmount            *string
	TargetRate           string
	RateComparison       string
	OnlyKYC              bool `gorm:"column:only_kyc"`
	OnlyVIP              bool `gorm:"column:only_vip"`
	IsActive             bool `gorm:"index"`
	CheckIntervalMinutes int
	CreatedAt            time.Time `gorm:"autoCreateTime:false"`
	LastCheckedAt        *time.Time
	LastTriggeredAt      *time.Time
}

func (AlertEntity) TableName() string { return "offer_alerts" }

// TemplateEntity stores an offer template. Details hold JSON name/value pairs.
type TemplateEntity struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"uniqueIndex;not null"`
	Type      string
	Coin      string
	Amount    string
	Receive   string
	Details   string
	OnlyKYC   bool `gorm:"column:only_kyc"`
	Private   bool
	OnlyVIP   bool `gorm:"column:only_vip"`
	Message   string
	Webhook   string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (TemplateEntity) TableName() string { return "offer_templates" }
