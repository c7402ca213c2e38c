package service

import (
	"context"
	"fmt"

	"willcloud/internal/domain"
)

// Usage band thresholds, in percent of the limit.
const (
	warningThreshold  = 70
	criticalThreshold = 90
)

type StorageQuotaService struct {
	users UserStore
}

func NewStorageQuotaService(users UserStore) *StorageQuotaService {
	return &StorageQuotaService{users: users}
}

func (s *StorageQuotaService) GetQuotaInfo(ctx context.Context, userID string) (*domain.QuotaInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	info := QuotaInfoFor(user)
	return &info, nil
}

// QuotaInfoFor computes the usage figures shown on the dashboard. A nil user
// shows as empty usage.
func QuotaInfoFor(user *domain.User) domain.QuotaInfo {
	if user == nil {
		return domain.QuotaInfo{Band: domain.BandNominal, UsedGB: FormatStorageGB(0), TotalGB: FormatStorageGB(0)}
	}

	var usagePercent float64
	if user.StorageLimit > 0 {
		usagePercent = float64(user.StorageUsed) / float64(user.StorageLimit) * 100
	}

	return domain.QuotaInfo{
		TotalSpace:     user.StorageLimit,
		UsedSpace:      user.StorageUsed,
		AvailableSpace: max(user.StorageLimit-user.StorageUsed, 0),
		UsagePercent:   usagePercent,
		BarPercent:     min(usagePercent, 100),
		Band:           BandFor(usagePercent),
		UsedGB:         FormatStorageGB(user.StorageUsed),
		TotalGB:        FormatStorageGB(user.StorageLimit),
	}
}

func BandFor(percent float64) domain.UsageBand {
	switch {
	case percent > criticalThreshold:
		return domain.BandCritical
	case percent > warningThreshold:
		return domain.BandWarning
	}
	return domain.BandNominal
}

// CheckSpaceAvailable reports whether size more bytes fit the given snapshot.
func CheckSpaceAvailable(snapshot *domain.User, size int64) bool {
	return snapshot.StorageUsed+size <= snapshot.StorageLimit
}
