package domain

import "time"

// DefaultStorageLimit applies to users created on first sign-in (5GB).
const DefaultStorageLimit int64 = 5368709120

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FullName     *string   `json:"full_name,omitempty" db:"full_name"`
	StorageUsed  int64     `json:"storage_used" db:"storage_used"`
	StorageLimit int64     `json:"storage_limit" db:"storage_limit"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the full name when set, otherwise the email.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}

type UsageBand string

const (
	BandNominal  UsageBand = "nominal"
	BandWarning  UsageBand = "warning"
	BandCritical UsageBand = "critical"
)

type QuotaInfo struct {
	TotalSpace     int64     `json:"total_space"`
	UsedSpace      int64     `json:"used_space"`
	AvailableSpace int64     `json:"available_space"`
	UsagePercent   float64   `json:"usage_percent"`
	BarPercent     float64   `json:"bar_percent"`
	Band           UsageBand `json:"band"`
	UsedGB         string    `json:"used_gb"`
	TotalGB        string    `json:"total_gb"`
}
