// Package subscription содержит тарифную сетку и правила смены тарифа организации.
package subscription

import (
	"time"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/models"
)

// Unlimited — значение квоты без ограничения.
const Unlimited = -1

// Plan — квоты и длительность пробного периода тарифа.
type Plan struct {
	Name      string
	MaxUsers  int
	MaxCases  int
	TrialDays int
}

var plans = map[string]Plan{
	models.PlanFree:         {Name: models.PlanFree, MaxUsers: 1, MaxCases: 10},
	models.PlanStarter:      {Name: models.PlanStarter, MaxUsers: 5, MaxCases: 100, TrialDays: 15},
	models.PlanProfessional: {Name: models.PlanProfessional, MaxUsers: 20, MaxCases: 1000, TrialDays: 14},
	models.PlanEnterprise:   {Name: models.PlanEnterprise, MaxUsers: Unlimited, MaxCases: Unlimited, TrialDays: 30},
}

// Lookup возвращает тариф по имени.
func Lookup(name string) (Plan, bool) {
	p, ok := plans[name]
	return p, ok
}

func lookup(name string) (Plan, error) {
	p, ok := plans[name]
	if !ok {
		return Plan{}, apperr.Validation("unknown subscription plan", []apperr.FieldError{
			{Field: "subscriptionPlan", Message: "must be one of free starter professional enterprise"},
		})
	}
	return p, nil
}

// Initial заполняет подписку новой организации: тариф с пробным периодом
// стартует в статусе trial, без него сразу active.
func Initial(org *models.Organization, planName string, now time.Time) error {
	plan, err := lookup(planName)
	if err != nil {
		return err
	}
	org.SubscriptionPlan = plan.Name
	org.MaxUsers = plan.MaxUsers
	org.MaxCases = plan.MaxCases
	if plan.TrialDays > 0 {
		end := now.AddDate(0, 0, plan.TrialDays)
		org.SubscriptionStatus = models.StatusTrial
		org.TrialEndDate = &end
		return nil
	}
	start := now
	org.SubscriptionStatus = models.StatusActive
	org.SubscriptionStartDate = &start
	return nil
}

// Transition вычисляет новое состояние организации после смены тарифа.
//
// Правила применяются по порядку:
//  1. квоты и тариф всегда берутся из запрошенного тарифа;
//  2. явно переданный статус ставится как есть; явный trial без даты
//     окончания получает trialEndDate = now + дни пробного периода тарифа;
//  3. если у тарифа есть пробный период и организация уже в trial, trial
//     сохраняется вместе с trialEndDate (или он вычисляется, если не задан);
//  4. иначе статус active и subscriptionStartDate = now.
//
// Организация не в trial не получает новый пробный период при смене тарифа.
func Transition(org models.Organization, change models.SubscriptionChange, now time.Time) (models.Organization, error) {
	plan, err := lookup(change.SubscriptionPlan)
	if err != nil {
		return org, err
	}

	next := org
	next.SubscriptionPlan = plan.Name
	next.MaxUsers = plan.MaxUsers
	next.MaxCases = plan.MaxCases
	next.UpdatedAt = now

	switch {
	case change.SubscriptionStatus != nil:
		next.SubscriptionStatus = *change.SubscriptionStatus
		if next.SubscriptionStatus == models.StatusTrial && next.TrialEndDate == nil {
			end := now.AddDate(0, 0, plan.TrialDays)
			next.TrialEndDate = &end
		}
	case plan.TrialDays > 0 && org.SubscriptionStatus == models.StatusTrial:
		next.SubscriptionStatus = models.StatusTrial
		if next.TrialEndDate == nil {
			end := now.AddDate(0, 0, plan.TrialDays)
			next.TrialEndDate = &end
		}
	default:
		start := now
		next.SubscriptionStatus = models.StatusActive
		next.SubscriptionStartDate = &start
	}
	return next, nil
}

// TrialExpired сообщает, что пробный период организации истёк к моменту now.
func TrialExpired(org models.Organization, now time.Time) bool {
	return org.SubscriptionStatus == models.StatusTrial &&
		org.TrialEndDate != nil && !org.TrialEndDate.After(now)
}

// Active сообщает, может ли организация создавать новые записи.
func Active(org models.Organization, now time.Time) bool {
	switch org.SubscriptionStatus {
	case models.StatusExpired, models.StatusCancelled:
		return false
	}
	return !TrialExpired(org, now)
}

// WithinQuota сообщает, можно ли добавить ещё один элемент при текущем значении счётчика.
func WithinQuota(limit, current int) bool {
	return limit < 0 || current < limit
}
