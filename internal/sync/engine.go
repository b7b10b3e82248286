// Package sync implements the periodic reconciliation between the tracking
// system's vacancy statuses and the local case mirror, publishing outcome
// events for every observed transition.
package sync

import (
	"context"
	"strconv"
	"strings"
	"time"

	"huntflow-sync/internal/bus"
	"huntflow-sync/internal/common/config"
	apperrors "huntflow-sync/internal/common/errors"
	"huntflow-sync/internal/common/huntflow"
	"huntflow-sync/internal/common/logger"
	"huntflow-sync/internal/common/metrics"
	"huntflow-sync/internal/store"
)

// TrackingAPI is the slice of the tracking-system client the engine uses.
type TrackingAPI interface {
	VacancyStatusApplicants(ctx context.Context, vacancyID, statusID int64) ([]huntflow.ApplicantSummary, error)
	ApplicantLog(ctx context.Context, applicantID int64) ([]huntflow.LogEntry, error)
	RejectionReason(ctx context.Context, reasonID int64) (string, error)
}

// Engine reconciles external vacancy statuses back into the local mirror.
type Engine struct {
	store     store.Store
	tracking  TrackingAPI
	publisher bus.Publisher
	vacancyID int64
	statuses  config.StatusConfig
	logger    logger.Logger
}

func NewEngine(
	s store.Store,
	tracking TrackingAPI,
	publisher bus.Publisher,
	vacancyID int64,
	statuses config.StatusConfig,
	log logger.Logger,
) *Engine {
	return &Engine{
		store:     s,
		tracking:  tracking,
		publisher: publisher,
		vacancyID: vacancyID,
		statuses:  statuses,
		logger:    log,
	}
}

type caseRef struct {
	id       int64
	statusID *int64
}

type watchedStatus struct {
	label    string
	statusID int64
	send     func(ctx context.Context, caseID, externalID int64) error
}

// watchedStatuses returns the statuses the engine reconciles, in the order
// they are processed. Order matters when an applicant moved through several
// watched statuses between runs.
func (e *Engine) watchedStatuses() []watchedStatus {
	return []watchedStatus{
		{label: "security_check", statusID: e.statuses.SecurityCheck, send: e.sendSecurityCheckPrepared},
		{label: "rejected", statusID: e.statuses.Rejected, send: e.sendRejected},
		{label: "reserve", statusID: e.statuses.Reserve, send: e.sendReserved},
	}
}

// Run executes one full reconciliation pass. Per-case failures are logged
// and counted but never abort the rest of the pass; the failed case is
// retried on the next run because its local status stays unchanged.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.SyncRunDuration.Observe(time.Since(start).Seconds())
	}()

	applicants, err := e.store.GetAll(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return err
	}

	byExternalID := make(map[int64]caseRef, len(applicants))
	for _, a := range applicants {
		if a.ApplicantID == nil {
			continue
		}
		byExternalID[*a.ApplicantID] = caseRef{id: a.ID, statusID: a.StatusID}
	}

	for _, watched := range e.watchedStatuses() {
		e.logger.Info("reconciling applicants at status", map[string]interface{}{
			"status":   watched.label,
			"statusId": watched.statusID,
		})

		summaries, err := e.tracking.VacancyStatusApplicants(ctx, e.vacancyID, watched.statusID)
		if err != nil {
			e.logger.WithError(err).Error("failed to list applicants at status", map[string]interface{}{
				"statusId": watched.statusID,
			})
			metrics.SyncCaseErrors.Inc()
			continue
		}

		for _, summary := range summaries {
			ref, ok := byExternalID[summary.ID]
			if !ok {
				continue
			}
			if ref.statusID != nil && *ref.statusID == watched.statusID {
				continue
			}

			if err := e.reconcileCase(ctx, watched, ref.id, summary.ID); err != nil {
				e.logger.WithError(err).Error("failed to reconcile case", map[string]interface{}{
					"caseId":      ref.id,
					"applicantId": summary.ID,
					"statusId":    watched.statusID,
				})
				metrics.SyncCaseErrors.Inc()
			}
		}
	}

	metrics.SyncRuns.WithLabelValues("success").Inc()
	return nil
}

// reconcileCase publishes the outcome event for the transition and then
// persists the new local status. The status is written only after the event
// went out, so a failed publish is retried on the next run.
func (e *Engine) reconcileCase(ctx context.Context, watched watchedStatus, caseID, externalID int64) error {
	if err := watched.send(ctx, caseID, externalID); err != nil {
		return err
	}
	if err := e.store.Update(ctx, caseID, store.Update{StatusID: &watched.statusID}); err != nil {
		return err
	}
	metrics.SyncCasesUpdated.WithLabelValues(watched.label).Inc()
	return nil
}

func (e *Engine) publish(ctx context.Context, eventType string, caseID int64) error {
	key := strconv.FormatInt(caseID, 10)
	return e.publisher.Publish(ctx, eventType, key, bus.ApplicantEvent{ID: caseID})
}

func (e *Engine) sendSecurityCheckPrepared(ctx context.Context, caseID, _ int64) error {
	return e.publish(ctx, bus.TypeSecurityCheckPrepared, caseID)
}

// sendRejected classifies the rejection from the applicant's external log.
// The first rejected log entry carrying a rejection reason decides the
// event type. An applicant at the rejected status with no such entry gets
// one run of grace before the case is reported as broken: the sticky
// sync-error flag is set on the first run and raises on every later one.
func (e *Engine) sendRejected(ctx context.Context, caseID, externalID int64) error {
	entries, err := e.tracking.ApplicantLog(ctx, externalID)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.Status != e.statuses.Rejected || entry.RejectionReason == 0 {
			continue
		}

		reason, err := e.tracking.RejectionReason(ctx, entry.RejectionReason)
		if err != nil {
			return err
		}

		eventType := bus.TypeRejected
		lowered := strings.ToLower(reason)
		if strings.Contains(lowered, "сам:") {
			eventType = bus.TypeSelfRejected
		} else if strings.Contains(lowered, "не прошел сб") {
			eventType = bus.TypeSBRejected
		}
		return e.publish(ctx, eventType, caseID)
	}

	applicant, err := e.store.GetByID(ctx, caseID)
	if err != nil {
		return err
	}
	previous := applicant.LastSyncError

	flag := store.SyncErrorNoRejectionReason
	if err := e.store.Update(ctx, caseID, store.Update{LastSyncError: &flag}); err != nil {
		return err
	}

	if previous == nil || *previous != store.SyncErrorNoRejectionReason {
		return apperrors.NewMissingRejectionReasonError(externalID)
	}
	return nil
}

func (e *Engine) sendReserved(ctx context.Context, caseID, _ int64) error {
	return e.publish(ctx, bus.TypeAlreadyRecommended, caseID)
}
