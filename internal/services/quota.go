package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/config"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/repos"
	"github.com/yungbote/inkwell-backend/internal/types"
)

// adminBypassRemaining is the synthetic remaining count reported for
// administrators. Kept as a literal 999, not "unlimited"; clients display it
// as-is.
const adminBypassRemaining = 999

type QuotaService interface {
	// CheckAndConsume atomically gates one use of (service, action) for the
	// user. A denial is a normal result, not an error, and never mutates the
	// ledger.
	CheckAndConsume(ctx context.Context, userID uuid.UUID, service, action, userEmail string) (*types.QuotaDecision, error)
	GetUserUsage(ctx context.Context, userID uuid.UUID) ([]types.ActionUsage, error)
}

type quotaService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.UsageRecordRepo
	limits config.QuotaLimits
	admins map[string]struct{}
	now    func() time.Time
}

func NewQuotaService(db *gorm.DB, log *logger.Logger, repo repos.UsageRecordRepo, limits config.QuotaLimits, adminEmails []string) QuotaService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = struct{}{}
		}
	}
	return &quotaService{
		db:     db,
		log:    log.With("service", "QuotaService"),
		repo:   repo,
		limits: limits,
		admins: admins,
		now:    time.Now,
	}
}

func (qs *quotaService) dailyLimit(service, action string) (int, error) {
	actions, ok := qs.limits[service]
	if !ok {
		return 0, apierr.Configuration("unknown quota service %q", service)
	}
	limit, ok := actions[action]
	if !ok {
		return 0, apierr.Configuration("unknown quota action %q for service %q", action, service)
	}
	return limit, nil
}

func (qs *quotaService) isAdmin(email string) bool {
	if email == "" {
		return false
	}
	_, ok := qs.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// nextMidnight is the start of the next calendar day in server local time.
func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

func (qs *quotaService) CheckAndConsume(ctx context.Context, userID uuid.UUID, service, action, userEmail string) (*types.QuotaDecision, error) {
	limit, err := qs.dailyLimit(service, action)
	if err != nil {
		return nil, err
	}

	now := qs.now()

	if qs.isAdmin(userEmail) {
		return &types.QuotaDecision{
			Allowed:   true,
			Remaining: adminBypassRemaining,
			ResetAt:   nextMidnight(now),
			Limit:     limit,
		}, nil
	}

	var decision types.QuotaDecision
	txErr := qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := qs.repo.GetForUpdate(ctx, tx, userID, service, action)
		if err != nil {
			return err
		}

		if record == nil {
			record = &types.UsageRecord{
				ID:      uuid.New(),
				UserID:  userID,
				Service: service,
				Action:  action,
				Count:   0,
				ResetAt: nextMidnight(now),
			}
		} else if !now.Before(record.ResetAt) {
			// Expired window behaves exactly like an absent record.
			record.Count = 0
			record.ResetAt = nextMidnight(now)
		}

		if record.Count >= limit {
			decision = types.QuotaDecision{
				Allowed:   false,
				Remaining: 0,
				ResetAt:   record.ResetAt,
				Limit:     limit,
			}
			return nil
		}

		record.Count++
		if err := qs.repo.Save(ctx, tx, record); err != nil {
			return err
		}
		decision = types.QuotaDecision{
			Allowed:   true,
			Remaining: limit - record.Count,
			ResetAt:   record.ResetAt,
			Limit:     limit,
		}
		return nil
	})
	if txErr != nil {
		qs.log.Error("CheckAndConsume transaction failed", "service", service, "action", action, "user_id", userID.String(), "error", txErr)
		return nil, txErr
	}
	return &decision, nil
}

func (qs *quotaService) GetUserUsage(ctx context.Context, userID uuid.UUID) ([]types.ActionUsage, error) {
	now := qs.now()

	services := make([]string, 0, len(qs.limits))
	for service := range qs.limits {
		services = append(services, service)
	}
	sort.Strings(services)

	perService := make([][]types.ActionUsage, len(services))
	g, gctx := errgroup.WithContext(ctx)
	for i, service := range services {
		g.Go(func() error {
			records, err := qs.repo.GetByUserAndService(gctx, nil, userID, service)
			if err != nil {
				return err
			}
			byAction := make(map[string]*types.UsageRecord, len(records))
			for _, rec := range records {
				byAction[rec.Action] = rec
			}

			actions := make([]string, 0, len(qs.limits[service]))
			for action := range qs.limits[service] {
				actions = append(actions, action)
			}
			sort.Strings(actions)

			usages := make([]types.ActionUsage, 0, len(actions))
			for _, action := range actions {
				limit := qs.limits[service][action]
				usage := types.ActionUsage{
					Service:   service,
					Action:    action,
					Used:      0,
					Limit:     limit,
					Remaining: limit,
				}
				if rec, ok := byAction[action]; ok && now.Before(rec.ResetAt) {
					usage.Used = rec.Count
					usage.Remaining = limit - rec.Count
					if usage.Remaining < 0 {
						usage.Remaining = 0
					}
					resetAt := rec.ResetAt
					usage.ResetAt = &resetAt
				}
				usages = append(usages, usage)
			}
			perService[i] = usages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []types.ActionUsage
	for _, usages := range perService {
		out = append(out, usages...)
	}
	return out, nil
}
