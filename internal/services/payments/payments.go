// Package payments содержит бизнес-логику платежей клиентов.
package payments

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/services/records"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/repository"
	"github.com/Xmananti/llb-case-tracker/internal/tenancy"
)

// Service реализует операции над платежами. Список отсортирован по дате, новые первыми.
type Service struct {
	*records.Base[models.Payment, *models.Payment]

	log     *slog.Logger
	clients *repository.Collection[models.Client]
}

// New создаёт Service.
func New(log *slog.Logger, store storage.Store, resolver *tenancy.Resolver, v *schema.Validator) *Service {
	return &Service{
		Base: records.NewBase[models.Payment](log, store, models.CollectionPayments, resolver, v).
			WithOrder(tenancy.SortPayments),
		log:     log,
		clients: repository.NewCollection[models.Client](store, models.CollectionClients),
	}
}

// Create создаёт платёж. Клиент платежа должен существовать и принадлежать тому же пользователю.
func (s *Service) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	const op = "services.payments.Create"

	if _, err := s.Prepare(ctx, p); err != nil {
		return nil, err
	}

	if err := s.checkClient(ctx, p.UserID, p.ClientID); err != nil {
		return nil, err
	}

	created, err := s.Insert(ctx, p)
	if err != nil {
		return nil, err
	}
	s.log.Info("payment created", sl.Op(op), slog.String("payment_id", created.ID), slog.String("client_id", created.ClientID))
	return created, nil
}

// Update меняет платёж. Новый клиент, если передан, должен существовать и принадлежать пользователю.
func (s *Service) Update(ctx context.Context, userID, id string, patch json.RawMessage) (*models.Payment, error) {
	if err := s.CheckPatch(patch); err != nil {
		return nil, err
	}
	var ref struct {
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal(patch, &ref); err != nil {
		return nil, records.DecodeError(err)
	}
	if ref.ClientID != "" {
		if err := s.checkClient(ctx, userID, ref.ClientID); err != nil {
			return nil, err
		}
	}
	return s.Base.Update(ctx, userID, id, patch)
}

func (s *Service) checkClient(ctx context.Context, userID, clientID string) error {
	const op = "services.payments.checkClient"

	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return records.StoreError(op, "client not found", err)
	}
	if client.UserID != userID {
		return apperr.Forbidden("client belongs to another user")
	}
	return nil
}
