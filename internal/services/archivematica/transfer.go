package archivematica

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"fornax/internal/config"
	"fornax/internal/logging"
	"fornax/internal/services"
	"fornax/internal/sips"
)

// TransferStarter is the stage operation that hands an assembled zipped bag
// to Archivematica: start the transfer, then approve it, recording the
// approved unit UUID on the SIP.
type TransferStarter struct {
	store   *sips.Store
	clients Factory
	logger  *slog.Logger
}

// NewTransferStarter creates the start-transfer stage operation.
func NewTransferStarter(store *sips.Store, clients Factory, logger *slog.Logger) *TransferStarter {
	return &TransferStarter{
		store:   store,
		clients: clients,
		logger:  logging.NewComponentLogger(logger, "transfer"),
	}
}

// Name returns the stage this operation serves.
func (t *TransferStarter) Name() sips.StageName {
	return sips.StageStartTransfer
}

// Execute starts and approves the transfer for one SIP. Before approving it
// checks whether the most recently approved SIP for the same origin is still
// processing; if so the stage reports busy and the claim is reverted so the
// trigger can be retried later.
func (t *TransferStarter) Execute(ctx context.Context, sip *sips.SIP) error {
	client, err := t.clients(sip.Origin)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "transfer", "resolve origin", sip.Origin, err)
	}

	busy, err := t.originBusy(ctx, client, sip.Origin)
	if err != nil {
		return err
	}
	if busy {
		return services.Wrap(services.ErrBusy, "transfer", "start",
			fmt.Sprintf("origin %s still processing a previous transfer", sip.Origin), nil)
	}

	if err := client.StartTransfer(ctx, sip.Identifier); err != nil {
		return err
	}
	// Start and approve are two dashboard calls with no transaction between
	// them. If approve fails after start succeeded, the revert-and-retry
	// starts a second unapproved transfer on the dashboard; operators should
	// hide the orphan via the remove-completed surface.
	uuid, err := client.ApproveTransfer(ctx, sip.Identifier)
	if err != nil {
		return err
	}
	sip.ExternalReference = uuid
	return nil
}

// originBusy reports whether the last approved SIP for the origin still shows
// PROCESSING in Archivematica.
func (t *TransferStarter) originBusy(ctx context.Context, client *Client, origin string) (bool, error) {
	last, err := t.store.LastForStatus(ctx, sips.StatusApproved, origin)
	if err != nil {
		return false, services.Wrap(nil, "transfer", "look up last approved", origin, err)
	}
	if last == nil || last.ExternalReference == "" {
		return false, nil
	}
	status, err := client.GetUnitStatus(ctx, UnitTransfer, last.ExternalReference)
	if err != nil {
		return false, err
	}
	return status.Status == StatusProcessing, nil
}

// CloseAllCompleted hides completed units of one type across every origin
// whose profile opts into close_completed. Returns closed UUIDs per origin;
// origins that partially fail contribute their closed subset and an error.
func CloseAllCompleted(ctx context.Context, cfg *config.Config, clients Factory, unitType string) (map[string][]string, error) {
	origins := make([]string, 0, len(cfg.Archivematica))
	for origin := range cfg.Archivematica {
		origins = append(origins, origin)
	}
	sort.Strings(origins)

	closed := make(map[string][]string)
	var failures []error
	for _, origin := range origins {
		if !cfg.Archivematica[origin].CloseCompleted {
			continue
		}
		client, err := clients(origin)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		ids, err := client.CloseCompleted(ctx, unitType)
		if len(ids) > 0 {
			closed[origin] = ids
		}
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return closed, fmt.Errorf("close completed %s: %d origins failed: %w", unitType, len(failures), failures[0])
	}
	return closed, nil
}
