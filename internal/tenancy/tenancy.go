// Package tenancy решает, какие записи видит принципал и может ли он
// изменять конкретную запись.
//
// Запись видна принципалу (userId, organizationId?), если она принадлежит
// этому пользователю и:
//   - у принципала есть организация: у записи организации нет (наследованная)
//     либо она совпадает с организацией принципала;
//   - у принципала организации нет: у записи её тоже нет.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
)

// Principal — пользователь, от имени которого выполняется операция.
type Principal struct {
	UserID         string
	OrganizationID *string
}

// HasOrganization сообщает, состоит ли принципал в организации.
func (p Principal) HasOrganization() bool { return p.OrganizationID != nil }

// Visible реализует предикат видимости записи.
func Visible(p Principal, env *models.Envelope) bool {
	if env == nil || env.UserID != p.UserID {
		return false
	}
	if env.OrganizationID == nil {
		return true
	}
	return p.OrganizationID != nil && *env.OrganizationID == *p.OrganizationID
}

// Filter оставляет видимые принципалу записи, сохраняя исходный порядок.
func Filter[T any, PT interface {
	*T
	models.Record
}](p Principal, records []*T) []*T {
	result := make([]*T, 0, len(records))
	for _, r := range records {
		if Visible(p, PT(r).Meta()) {
			result = append(result, r)
		}
	}
	return result
}

// UserLookup загружает профиль пользователя. Отсутствие профиля — storage.ErrNotFound.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Resolver определяет организацию принципала.
type Resolver struct {
	users UserLookup
}

// NewResolver создаёт Resolver.
func NewResolver(users UserLookup) *Resolver {
	return &Resolver{users: users}
}

// Resolve строит принципала. Явно переданная организация используется как есть,
// иначе берётся из профиля пользователя. found=false означает, что профиля нет:
// вызывающий должен вернуть пустой список, а не нефильтрованные данные.
func (r *Resolver) Resolve(ctx context.Context, userID string, organizationID *string) (Principal, bool, error) {
	const op = "tenancy.Resolver.Resolve"

	if organizationID != nil && *organizationID != "" {
		return Principal{UserID: userID, OrganizationID: organizationID}, true, nil
	}

	user, err := r.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return Principal{UserID: userID}, false, nil
	}
	if err != nil {
		return Principal{}, false, apperr.Unavailable("failed to resolve user organization", fmt.Errorf("%s: %w", op, err))
	}

	p := Principal{UserID: userID}
	if user.OrganizationID != nil && *user.OrganizationID != "" {
		p.OrganizationID = user.OrganizationID
	}
	return p, true, nil
}

// Authorize — проверка владельца перед чтением или изменением записи.
// nil-конверт означает отсутствующую запись.
func Authorize(env *models.Envelope, userID string) error {
	if env == nil {
		return apperr.NotFound("record not found")
	}
	if env.UserID != userID {
		return apperr.Forbidden("record belongs to another user")
	}
	return nil
}

// SortPayments упорядочивает платежи по дате от новых к старым.
// Равные даты сохраняют порядок вставки; платежи с нераспознанной датой идут в конце.
func SortPayments(payments []*models.Payment) {
	key := func(p *models.Payment) (time.Time, bool) {
		t, err := time.Parse(models.DateLayout, p.Date)
		return t, err == nil
	}
	sort.SliceStable(payments, func(i, j int) bool {
		ti, okI := key(payments[i])
		tj, okJ := key(payments[j])
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
}
