package reminders

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/metrics"
	"github.com/mamadbah2/medrefill/internal/notification"
)

const (
	variantSingle  = "single"
	variantMulti   = "multiple"
	variantSummary = "summary"

	modeManual = "MANUAL"
)

// Dispatcher groups due medicines per owner and sends one reminder per owner.
type Dispatcher struct {
	channel notification.Channel
	workers int
	logger  *zap.Logger
}

// NewDispatcher builds a dispatcher delivering through channel with at most
// workers concurrent deliveries.
func NewDispatcher(channel notification.Channel, workers int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{channel: channel, workers: workers, logger: logger}
}

type ownerGroup struct {
	owner     models.User
	medicines []models.Medicine
}

// Run sends one reminder per owner in selected. A failed delivery is recorded
// in the report and does not affect other owners.
func (d *Dispatcher) Run(ctx context.Context, selected []models.DueMedicine, mode models.DispatchMode) models.DispatchReport {
	groups := groupByOwner(selected)

	report := models.DispatchReport{
		Mode:          mode,
		Selected:      len(selected),
		UsersNotified: len(groups),
		Failures:      []models.DispatchFailure{},
	}
	if len(groups) == 0 {
		return report
	}

	results := make([]error, len(groups))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			results[i] = d.deliver(ctx, group, mode)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		group := groups[i]
		if err == nil {
			report.EmailsSent++
			continue
		}

		d.logger.Warn("reminder delivery failed",
			zap.String("mode", string(mode)),
			zap.String("user_id", group.owner.ID),
			zap.String("email", group.owner.Email),
			zap.Int("medicines", len(group.medicines)),
			zap.Error(err))

		report.Failures = append(report.Failures, models.DispatchFailure{
			UserID:    group.owner.ID,
			Email:     group.owner.Email,
			Medicines: len(group.medicines),
			Reason:    err.Error(),
		})
	}

	return report
}

// SendImmediate sends the single-medicine reminder regardless of the
// medicine's status or notification flags.
func (d *Dispatcher) SendImmediate(ctx context.Context, user models.User, medicine models.Medicine) (err error) {
	defer recoverDelivery(&err)

	err = d.channel.SendSingle(ctx, user, medicine)
	metrics.ObserveDelivery(modeManual, variantSingle, err == nil)
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, group ownerGroup, mode models.DispatchMode) (err error) {
	defer recoverDelivery(&err)

	variant := variantFor(mode, len(group.medicines))
	if variant == variantSingle {
		err = d.channel.SendSingle(ctx, group.owner, group.medicines[0])
	} else {
		err = d.channel.SendBatch(ctx, group.owner, group.medicines, mode)
	}
	metrics.ObserveDelivery(string(mode), variant, err == nil)

	if err == nil {
		d.logger.Info("sent refill reminder",
			zap.String("mode", string(mode)),
			zap.String("variant", variant),
			zap.String("user_id", group.owner.ID),
			zap.Int("medicines", len(group.medicines)))
	}
	return err
}

func variantFor(mode models.DispatchMode, medicines int) string {
	switch {
	case mode == models.DispatchWeekly:
		return variantSummary
	case medicines == 1:
		return variantSingle
	default:
		return variantMulti
	}
}

// groupByOwner keeps owners in first-seen order.
func groupByOwner(selected []models.DueMedicine) []ownerGroup {
	index := make(map[string]int)
	var groups []ownerGroup
	for _, row := range selected {
		key := row.Owner.ID
		if key == "" {
			key = row.Medicine.OwnerID
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ownerGroup{owner: row.Owner})
		}
		groups[i].medicines = append(groups[i].medicines, row.Medicine)
	}
	return groups
}

func recoverDelivery(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("reminder delivery panicked: %v", r)
	}
}
