package service

import (
	"context"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	autoapprovaldomain "github.com/subvisor/subvisor/internal/autoapproval/domain"
	"github.com/subvisor/subvisor/internal/config"
	directorydomain "github.com/subvisor/subvisor/internal/directory/domain"
	plandomain "github.com/subvisor/subvisor/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	repo          autoapprovaldomain.Repository
	planRepo      plandomain.Repository
	directoryRepo directorydomain.Repository

	mu      sync.RWMutex
	enabled bool
}

type ServiceParam struct {
	fx.In

	Config        config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	Repo          autoapprovaldomain.Repository
	PlanRepo      plandomain.Repository
	DirectoryRepo directorydomain.Repository
}

func NewService(p ServiceParam) autoapprovaldomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("autoapproval.service"),
		repo:          p.Repo,
		planRepo:      p.PlanRepo,
		directoryRepo: p.DirectoryRepo,
		enabled:       p.Config.AutoApprovalEnabled,
	}
}

func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Evaluate reports whether any active rule approves the request. When the
// engine is disabled every request is a no-match regardless of stored rules.
func (s *Service) Evaluate(ctx context.Context, req autoapprovaldomain.Request) (bool, error) {
	rule, err := s.firstMatch(ctx, req)
	if err != nil {
		return false, err
	}
	return rule != nil, nil
}

// GetAppliedRule returns the rule Evaluate would apply, or nil. Read-only.
func (s *Service) GetAppliedRule(ctx context.Context, req autoapprovaldomain.Request) (*autoapprovaldomain.Rule, error) {
	return s.firstMatch(ctx, req)
}

func (s *Service) GetRule(ctx context.Context, id string) (*autoapprovaldomain.Rule, error) {
	ruleID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, autoapprovaldomain.ErrInvalidRule
	}

	rule, err := s.repo.FindByID(ctx, s.db, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, autoapprovaldomain.ErrRuleNotFound
	}
	return rule, nil
}

func (s *Service) firstMatch(ctx context.Context, req autoapprovaldomain.Request) (*autoapprovaldomain.Rule, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	rules, err := s.repo.ListActiveOrdered(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}

	plan, err := s.planRepo.FindByID(ctx, s.db, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}

	for i := range rules {
		rule := rules[i]

		ok, err := s.matches(ctx, rule, req, plan)
		if err != nil {
			return nil, err
		}
		if ok {
			s.log.Debug("auto-approval rule matched",
				zap.String("rule_id", rule.ID.String()),
				zap.String("rule_name", rule.Name),
				zap.Int("priority", rule.Priority),
			)
			return &rule, nil
		}
	}

	return nil, nil
}

func (s *Service) matches(ctx context.Context, rule autoapprovaldomain.Rule, req autoapprovaldomain.Request, plan *plandomain.Plan) (bool, error) {
	if !rule.AllowsPlan(req.PlanID) {
		return false, nil
	}

	if rule.VerifiedTenantsOnly {
		verified, err := s.directoryRepo.IsTenantVerified(ctx, s.db, req.TenantID)
		if err != nil {
			return false, err
		}
		if !verified {
			return false, nil
		}
	}

	// Payment-method conditions cannot be checked: the creation request does
	// not carry a payment method. The condition is stored and reported only.

	if !rule.AllowsPrice(plan.Price) {
		return false, nil
	}

	return true, nil
}
