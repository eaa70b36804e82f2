// Package clients содержит бизнес-логику клиентов практики.
package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Xmananti/llb-case-tracker/internal/lib/apperr"
	"github.com/Xmananti/llb-case-tracker/internal/lib/schema"
	"github.com/Xmananti/llb-case-tracker/internal/lib/sl"
	"github.com/Xmananti/llb-case-tracker/internal/metrics"
	"github.com/Xmananti/llb-case-tracker/internal/models"
	"github.com/Xmananti/llb-case-tracker/internal/services/records"
	"github.com/Xmananti/llb-case-tracker/internal/storage"
	"github.com/Xmananti/llb-case-tracker/internal/storage/repository"
	"github.com/Xmananti/llb-case-tracker/internal/tenancy"
)

// Service реализует операции над клиентами.
type Service struct {
	*records.Base[models.Client, *models.Client]

	log      *slog.Logger
	payments *repository.Collection[models.Payment]
	events   records.Publisher
}

// New создаёт Service.
func New(log *slog.Logger, store storage.Store, resolver *tenancy.Resolver, v *schema.Validator, events records.Publisher) *Service {
	return &Service{
		Base:     records.NewBase[models.Client](log, store, models.CollectionClients, resolver, v),
		log:      log,
		payments: repository.NewCollection[models.Payment](store, models.CollectionPayments),
		events:   events,
	}
}

// Delete удаляет клиента вместе со всеми его платежами одним атомарным
// многопутевым обновлением. При ошибке не удаляется ничего: клиент и все
// платежи остаются на месте, возвращается одна общая ошибка.
func (s *Service) Delete(ctx context.Context, userID, id string) (*models.Client, error) {
	const op = "services.clients.Delete"
	log := s.log.With(sl.Op(op), slog.String("user_id", userID), slog.String("client_id", id))

	client, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	dependent, err := s.dependentPayments(ctx, id)
	if err != nil {
		return nil, records.StoreError(op, "failed to list client payments", err)
	}

	updates := make(map[string]any, len(dependent)+1)
	for _, paymentID := range dependent {
		updates[s.payments.Path(paymentID)] = nil
	}
	updates[s.Collection().Path(id)] = nil

	if err := s.Collection().Update(ctx, updates); err != nil {
		log.Error("cascade delete failed", slog.Int("payments", len(dependent)), sl.Err(err))
		return nil, apperr.Unavailable(
			fmt.Sprintf("failed to delete client and %d payments", len(dependent)),
			fmt.Errorf("%s: %w", op, err),
		)
	}
	metrics.RecordDeleted(models.CollectionClients)
	metrics.PaymentsCascaded(len(dependent))

	swept := s.sweepOrphans(ctx, log, id)

	records.Notify(ctx, log, s.events, models.Event{
		Type:           models.EventClientDeleted,
		UserID:         userID,
		OrganizationID: models.Deref(client.OrganizationID),
		RecordID:       id,
		Count:          len(dependent) + swept,
	})
	log.Info("client deleted", slog.Int("payments", len(dependent)+swept))
	return client, nil
}

func (s *Service) dependentPayments(ctx context.Context, clientID string) ([]string, error) {
	all, err := s.payments.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, p := range all {
		if p.ClientID == clientID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// sweepOrphans удаляет платежи, записанные для клиента уже после каскадного
// удаления. Ошибки только логируются: клиент к этому моменту удалён.
func (s *Service) sweepOrphans(ctx context.Context, log *slog.Logger, clientID string) int {
	orphans, err := s.dependentPayments(ctx, clientID)
	if err != nil {
		log.Warn("failed to check for orphaned payments", sl.Err(err))
		return 0
	}
	if len(orphans) == 0 {
		return 0
	}
	updates := make(map[string]any, len(orphans))
	for _, paymentID := range orphans {
		updates[s.payments.Path(paymentID)] = nil
	}
	if err := s.payments.Update(ctx, updates); err != nil {
		log.Warn("failed to delete orphaned payments", slog.Int("payments", len(orphans)), sl.Err(err))
		return 0
	}
	metrics.PaymentsCascaded(len(orphans))
	return len(orphans)
}
