package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fornax/internal/logging"
	"fornax/internal/notifications"
	"fornax/internal/services"
	"fornax/internal/sips"
)

// Operation executes one stage's work against a claimed SIP. Implementations
// may mutate the SIP's Path and ExternalReference; the runner persists those
// changes together with the status transition.
type Operation interface {
	Name() sips.StageName
	Execute(ctx context.Context, sip *sips.SIP) error
}

// Runner drives the stage state machine. Each RunStage call processes at
// most one SIP: the in-progress status acts as the stage's advisory lock, so
// two concurrent triggers for the same stage cannot both claim work.
type Runner struct {
	store    *sips.Store
	ops      map[sips.StageName]Operation
	logger   *slog.Logger
	notifier notifications.Service
}

// NewRunner wires stage operations into a runner.
func NewRunner(store *sips.Store, logger *slog.Logger, operations ...Operation) *Runner {
	ops := make(map[sips.StageName]Operation, len(operations))
	for _, op := range operations {
		ops[op.Name()] = op
	}
	return &Runner{
		store:  store,
		ops:    ops,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// SetNotifier attaches a notification service for stage milestones. Delivery
// is best effort; a failed push never fails the stage.
func (r *Runner) SetNotifier(notifier notifications.Service) {
	r.notifier = notifier
}

// RunStage claims the oldest SIP waiting at the stage's start status and
// executes the stage operation on it. On success the SIP advances to the end
// status. A busy signal from the operation reverts the claim and reports an
// informational busy outcome. Any other failure reverts the claim and
// returns an error naming the SIP.
func (r *Runner) RunStage(ctx context.Context, name sips.StageName) (Outcome, error) {
	stage, ok := sips.StageNamed(name)
	if !ok {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "pipeline", "run stage",
			fmt.Sprintf("unknown stage %q", name), nil)
	}
	op, ok := r.ops[name]
	if !ok {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "pipeline", "run stage",
			fmt.Sprintf("no operation registered for stage %s", name), nil)
	}

	claimed, err := r.store.HasStatus(ctx, stage.InProgress)
	if err != nil {
		return Outcome{}, fmt.Errorf("check %s claims: %w", name, err)
	}
	if claimed {
		return Outcome{
			Kind:    OutcomeAlreadyRunning,
			Message: fmt.Sprintf("a package is already %s", stage.InProgress),
		}, nil
	}

	sip, err := r.store.NextForStatus(ctx, stage.Start)
	if err != nil {
		return Outcome{}, fmt.Errorf("claim for %s: %w", name, err)
	}
	if sip == nil {
		return Outcome{
			Kind:    OutcomeIdle,
			Message: fmt.Sprintf("no packages waiting at %s", stage.Start),
		}, nil
	}

	sip.Status = stage.InProgress
	if err := r.store.Update(ctx, sip); err != nil {
		return Outcome{}, fmt.Errorf("persist %s claim for %s: %w", name, sip.Identifier, err)
	}

	requestID := uuid.NewString()
	ctx = services.WithIdentifier(ctx, sip.Identifier)
	ctx = services.WithStage(ctx, string(name))
	ctx = services.WithRequestID(ctx, requestID)
	logger := r.logger.With(
		logging.String(logging.FieldStage, string(name)),
		logging.String(logging.FieldIdentifier, sip.Identifier),
		logging.String(logging.FieldRequestID, requestID))
	logger.Info("stage started")

	execErr := op.Execute(ctx, sip)
	switch {
	case execErr == nil:
		sip.Status = stage.End
		if err := r.store.Update(ctx, sip); err != nil {
			return Outcome{}, fmt.Errorf("persist %s result for %s: %w", name, sip.Identifier, err)
		}
		logger.Info("stage completed", logging.String("status", string(stage.End)))
		r.announce(ctx, logger, stage.Name, sip)
		return Outcome{
			Kind:       OutcomeProcessed,
			Identifier: sip.Identifier,
			Message:    fmt.Sprintf("%s %s", sip.Identifier, stage.End),
		}, nil

	case services.IsBusy(execErr):
		if err := r.revert(ctx, sip, stage); err != nil {
			return Outcome{}, err
		}
		logger.Info("stage deferred", logging.String("reason", execErr.Error()))
		return Outcome{
			Kind:       OutcomeBusy,
			Identifier: sip.Identifier,
			Message:    execErr.Error(),
		}, nil

	default:
		if err := r.revert(ctx, sip, stage); err != nil {
			return Outcome{}, errors.Join(fmt.Errorf("%s: %w", sip.Identifier, execErr), err)
		}
		logger.Error("stage failed", logging.Error(execErr))
		if r.notifier != nil {
			if err := r.notifier.NotifyError(ctx, execErr, string(name)); err != nil {
				logger.Warn("error notification failed", logging.Error(err))
			}
		}
		return Outcome{}, fmt.Errorf("%s: %w", sip.Identifier, execErr)
	}
}

// announce pushes stage milestone notifications.
func (r *Runner) announce(ctx context.Context, logger *slog.Logger, name sips.StageName, sip *sips.SIP) {
	if r.notifier == nil {
		return
	}
	var err error
	switch name {
	case sips.StageAssemble:
		err = r.notifier.NotifyAssembled(ctx, sip.Identifier)
	case sips.StageStartTransfer:
		err = r.notifier.NotifyTransferStarted(ctx, sip.Identifier, sip.ExternalReference)
	default:
		return
	}
	if err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}
}

// revert releases a claim by restoring the stage's start status.
func (r *Runner) revert(ctx context.Context, sip *sips.SIP, stage sips.Stage) error {
	sip.Status = stage.Start
	if err := r.store.Update(ctx, sip); err != nil {
		return fmt.Errorf("revert %s claim for %s: %w", stage.Name, sip.Identifier, err)
	}
	return nil
}

// Stages lists the stage names this runner can execute, in pipeline order.
func (r *Runner) Stages() []sips.StageName {
	var names []sips.StageName
	for _, stage := range sips.Stages() {
		if _, ok := r.ops[stage.Name]; ok {
			names = append(names, stage.Name)
		}
	}
	return names
}
