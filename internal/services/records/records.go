// Package records содержит общую логику CRUD для записей с конвертом
// (дела, клиенты, платежи): проверку схемы, фильтр видимости и проверку владельца.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/metrics"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/repository"
	"github.com/Xmananti/llb-case-tracker/internal/tenancy"
)

// Query — параметры списка записей.
type Query struct {
	UserID         string
	OrganizationID *string
	// ClientID сужает список до записей одного клиента, если у записи есть ссылка на клиента.
	ClientID string
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type clientScoped interface {
	ClientRef() string
}

// Base реализует операции над коллекцией записей типа T.
type Base[T any, PT interface {
	*T
	models.Record
}] struct {
	log      *slog.Logger
	coll     *repository.Collection[T]
	resolver *tenancy.Resolver
	schema   *schema.Validator
	order    func([]*T)
	now      func() time.Time
}

// NewBase создаёт Base для коллекции collection.
func NewBase[T any, PT interface {
	*T
	models.Record
}](log *slog.Logger, store storage.Store, collection string, resolver *tenancy.Resolver, v *schema.Validator) *Base[T, PT] {
	return &Base[T, PT]{
		log:      log,
		coll:     repository.NewCollection[T](store, collection),
		resolver: resolver,
		schema:   v,
		now:      time.Now,
	}
}

// WithOrder задаёт порядок выдачи списка. По умолчанию используется порядок вставки.
func (b *Base[T, PT]) WithOrder(order func([]*T)) *Base[T, PT] {
	b.order = order
	return b
}

// Collection возвращает типизированную коллекцию.
func (b *Base[T, PT]) Collection() *repository.Collection[T] { return b.coll }

// Now возвращает текущее время сервиса в UTC.
func (b *Base[T, PT]) Now() time.Time { return b.now().UTC() }

// Resolve строит принципала по пользователю и необязательной организации.
func (b *Base[T, PT]) Resolve(ctx context.Context, userID string, organizationID *string) (tenancy.Principal, bool, error) {
	return b.resolver.Resolve(ctx, userID, organizationID)
}

// List возвращает видимые принципалу записи. Пользователь без профиля получает пустой список.
func (b *Base[T, PT]) List(ctx context.Context, q Query) ([]*T, error) {
	const op = "records.List"

	p, found, err := b.resolver.Resolve(ctx, q.UserID, q.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !found {
		b.log.Debug("user profile not found, returning empty list", sl.Op(op), slog.String("user_id", q.UserID))
		return []*T{}, nil
	}

	all, err := b.coll.List(ctx)
	if err != nil {
		return nil, StoreError(op, "failed to list "+b.coll.Name(), err)
	}

	visible := tenancy.Filter[T, PT](p, all)
	if q.ClientID != "" {
		filtered := visible[:0]
		for _, r := range visible {
			if cs, ok := any(PT(r)).(clientScoped); ok && cs.ClientRef() != q.ClientID {
				continue
			}
			filtered = append(filtered, r)
		}
		visible = filtered
	}
	if b.order != nil {
		b.order(visible)
	}
	return visible, nil
}

// Load возвращает запись без проверки владельца.
func (b *Base[T, PT]) Load(ctx context.Context, id string) (*T, error) {
	const op = "records.Load"

	rec, err := b.coll.Get(ctx, id)
	if err != nil {
		return nil, StoreError(op, b.coll.Name()+" record not found", err)
	}
	return rec, nil
}

// Get возвращает запись владельцу: NotFound, если записи нет, Forbidden, если владелец другой.
func (b *Base[T, PT]) Get(ctx context.Context, userID, id string) (*T, error) {
	rec, err := b.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tenancy.Authorize(PT(rec).Meta(), userID); err != nil {
		return nil, err
	}
	return rec, nil
}

// Prepare проверяет новую запись и определяет её организацию.
// Переданная организация должна совпадать с организацией пользователя;
// если она не передана, запись получает организацию пользователя.
func (b *Base[T, PT]) Prepare(ctx context.Context, rec *T) (tenancy.Principal, error) {
	env := PT(rec).Meta()
	if env.OrganizationID != nil && *env.OrganizationID == "" {
		env.OrganizationID = nil
	}
	if err := b.schema.Check(rec); err != nil {
		return tenancy.Principal{}, err
	}

	p, _, err := b.resolver.Resolve(ctx, env.UserID, nil)
	if err != nil {
		return tenancy.Principal{}, err
	}
	if env.OrganizationID != nil {
		if p.OrganizationID == nil || *p.OrganizationID != *env.OrganizationID {
			return tenancy.Principal{}, apperr.Forbidden("organization does not match the user's organization")
		}
	} else {
		env.OrganizationID = p.OrganizationID
	}
	return p, nil
}

// Insert присваивает записи ключ и временные метки и сохраняет её.
func (b *Base[T, PT]) Insert(ctx context.Context, rec *T) (*T, error) {
	const op = "records.Insert"

	env := PT(rec).Meta()
	now := b.Now()
	env.ID = storage.NewKey()
	env.CreatedAt = now
	env.UpdatedAt = now

	if err := b.coll.Put(ctx, env.ID, rec); err != nil {
		return nil, StoreError(op, "failed to create "+b.coll.Name()+" record", err)
	}
	metrics.RecordCreated(b.coll.Name())
	return rec, nil
}

// Create проверяет и сохраняет новую запись.
func (b *Base[T, PT]) Create(ctx context.Context, rec *T) (*T, error) {
	if _, err := b.Prepare(ctx, rec); err != nil {
		return nil, err
	}
	return b.Insert(ctx, rec)
}

// Update сливает patch с сохранённой записью. Поля, отсутствующие в patch,
// сохраняют прежние значения; id, userId, organizationId и createdAt не меняются.
// В хранилище пишутся только переданные поля и updatedAt одним многопутевым
// обновлением: конверт и остальные поля записи не перезаписываются.
func (b *Base[T, PT]) Update(ctx context.Context, userID, id string, patch json.RawMessage) (*T, error) {
	const op = "records.Update"

	keys, err := b.checkPatch(patch)
	if err != nil {
		return nil, err
	}

	rec, err := b.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	before := *PT(rec).Meta()
	if err := json.Unmarshal(patch, rec); err != nil {
		return nil, DecodeError(err)
	}
	env := PT(rec).Meta()
	env.ID = before.ID
	env.UserID = before.UserID
	env.OrganizationID = before.OrganizationID
	env.CreatedAt = before.CreatedAt
	env.UpdatedAt = b.Now()

	if err := b.schema.Check(rec); err != nil {
		return nil, err
	}

	updates, err := b.fieldUpdates(id, rec, keys)
	if err != nil {
		return nil, apperr.Internal("failed to encode "+b.coll.Name()+" record", fmt.Errorf("%s: %w", op, err))
	}
	if err := b.coll.Update(ctx, updates); err != nil {
		return nil, StoreError(op, b.coll.Name()+" record not found", err)
	}

	saved, err := b.coll.Get(ctx, id)
	if err != nil {
		return nil, StoreError(op, b.coll.Name()+" record not found", err)
	}
	return saved, nil
}

// envelopeFields не меняются через обновление записи.
var envelopeFields = map[string]bool{
	"id":             true,
	"userId":         true,
	"organizationId": true,
	"createdAt":      true,
	"updatedAt":      true,
}

// fieldUpdates строит пути полей из patch с их значениями после слияния.
// Ключи, которых нет в записи, пропускаются.
func (b *Base[T, PT]) fieldUpdates(id string, rec *T, keys []string) (map[string]any, error) {
	merged, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(merged, &fields); err != nil {
		return nil, err
	}

	updates := map[string]any{
		b.coll.FieldPath(id, "updatedAt"): PT(rec).Meta().UpdatedAt,
	}
	for _, k := range keys {
		if envelopeFields[k] {
			continue
		}
		v, ok := fields[k]
		if !ok {
			continue
		}
		updates[b.coll.FieldPath(id, k)] = v
	}
	return updates, nil
}

// CheckPatch проверяет только переданные в patch поля.
func (b *Base[T, PT]) CheckPatch(patch json.RawMessage) error {
	_, err := b.checkPatch(patch)
	return err
}

func (b *Base[T, PT]) checkPatch(patch json.RawMessage) ([]string, error) {
	keys, err := patchKeys(patch)
	if err != nil {
		return nil, err
	}
	var decoded T
	if err := json.Unmarshal(patch, &decoded); err != nil {
		return nil, DecodeError(err)
	}
	if err := b.schema.CheckPatch(&decoded, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete удаляет запись владельца и возвращает её.
func (b *Base[T, PT]) Delete(ctx context.Context, userID, id string) (*T, error) {
	rec, err := b.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := b.Remove(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove удаляет запись без проверки владельца.
func (b *Base[T, PT]) Remove(ctx context.Context, id string) error {
	const op = "records.Remove"
	if err := b.coll.Delete(ctx, id); err != nil {
		return StoreError(op, "failed to delete "+b.coll.Name()+" record", err)
	}
	metrics.RecordDeleted(b.coll.Name())
	return nil
}

func patchKeys(patch json.RawMessage) ([]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil || fields == nil {
		return nil, apperr.Validation("request body must be a JSON object", nil)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return keys, nil
}

// DecodeError переводит ошибку разбора JSON в ошибку валидации с указанием поля, если оно известно.
func DecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.Validation("invalid fields: "+typeErr.Field, []apperr.FieldError{
			{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()},
		})
	}
	return apperr.Validation("invalid request body", nil)
}

// StoreError переводит ошибку хранилища в ошибку приложения.
func StoreError(op, msg string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return apperr.Unavailable(msg, fmt.Errorf("%s: %w", op, err))
}

// Notify публикует событие. Ошибка публикации только логируется.
func Notify(ctx context.Context, log *slog.Logger, pub Publisher, event models.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := pub.Publish(ctx, event); err != nil {
		metrics.EventFailed(event.Type)
		log.Warn("failed to publish event", slog.String("type", event.Type), sl.Err(err))
	}
}
