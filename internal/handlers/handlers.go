// Package handlers implements the inbound event handlers: pushing new
// referral candidates to the tracking system and mirroring security-check
// progress as vacancy status comments.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"huntflow-sync/internal/bus"
	"huntflow-sync/internal/common/config"
	apperrors "huntflow-sync/internal/common/errors"
	"huntflow-sync/internal/common/huntflow"
	"huntflow-sync/internal/common/intranet"
	"huntflow-sync/internal/common/logger"
	"huntflow-sync/internal/store"
)

// TrackingAPI is the slice of the tracking-system client the handlers use.
type TrackingAPI interface {
	CreateCandidate(ctx context.Context, req huntflow.CandidateRequest) (int64, error)
	SetVacancyStatus(ctx context.Context, applicantID int64, upd huntflow.StatusUpdate) (int64, error)
	UploadFiles(ctx context.Context, files [][]byte) ([]int64, error)
}

// Directory resolves usernames against the employee directory.
type Directory interface {
	GetUsers(ctx context.Context, username string) ([]intranet.User, error)
}

// FileFetcher downloads attachment bodies by URL.
type FileFetcher interface {
	Download(ctx context.Context, urls []string) ([][]byte, error)
}

// Handlers groups the inbound event handlers and their dependencies.
type Handlers struct {
	store     store.Store
	tracking  TrackingAPI
	directory Directory
	files     FileFetcher
	statuses  config.StatusConfig
	logger    logger.Logger
}

func New(
	s store.Store,
	tracking TrackingAPI,
	directory Directory,
	files FileFetcher,
	statuses config.StatusConfig,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		store:     s,
		tracking:  tracking,
		directory: directory,
		files:     files,
		statuses:  statuses,
		logger:    log,
	}
}

// Register wires every inbound event type to its handler.
func (h *Handlers) Register(reg *bus.Registry) {
	reg.On(bus.TypeRecommendationSubmitted, decode(bus.TypeRecommendationSubmitted, h.HandleRecommendationSubmitted))
	reg.On(bus.TypeSecurityCheckCreated, decode(bus.TypeSecurityCheckCreated, h.HandleSecurityCheckCreated))
	reg.On(bus.TypeSecurityCheckFilled, decode(bus.TypeSecurityCheckFilled, h.HandleSecurityCheckFilled))
	reg.On(bus.TypeSecurityCheckFailed, decode(bus.TypeSecurityCheckFailed, h.HandleSecurityCheckFailed))
	reg.On(bus.TypeSecurityCheckFinished, decode(bus.TypeSecurityCheckFinished, h.HandleSecurityCheckFinished))
}

func decode[E any](eventType string, handle func(ctx context.Context, event E) error) bus.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		if err := bus.ValidatePayload(eventType, payload); err != nil {
			return apperrors.NewInvalidEventPayloadError(eventType, err)
		}
		var event E
		if err := json.Unmarshal(payload, &event); err != nil {
			return apperrors.NewInvalidEventPayloadError(eventType, err)
		}
		return handle(ctx, event)
	}
}

// renderResume builds the free-text résumé body shown to recruiters.
func renderResume(event bus.RecommendationSubmitted, email string) string {
	circle := event.Circle
	if circle == "" {
		circle = "нет информации о круге"
	}
	notified := "нет"
	if event.IsNotified {
		notified = "да"
	}
	about := event.About
	if about == "" {
		about = "без комментария"
	}

	return fmt.Sprintf(
		"Рекомендатель: %s %s\n"+
			"Логин рекомендателя: %s\n"+
			"Почта рекомендателя: %s\n\n"+
			"Город кандидата: %s\n"+
			"Круг: %s\n"+
			"Уведомлён и ждет ответа: %s\n"+
			"Комментарий: %s",
		event.Inviter.FirstName, event.Inviter.LastName,
		event.Inviter.Username,
		email,
		event.City,
		circle,
		notified,
		about,
	)
}

// HandleRecommendationSubmitted pushes a recommended candidate to the
// tracking system. Both the candidate push and the vacancy push are
// idempotent: redelivered events skip whatever already happened.
func (h *Handlers) HandleRecommendationSubmitted(ctx context.Context, event bus.RecommendationSubmitted) error {
	users, err := h.directory.GetUsers(ctx, event.Inviter.Username)
	if err != nil {
		return err
	}
	email := ""
	if len(users) == 1 {
		email = users[0].Mail
	}
	resume := renderResume(event, email)

	applicant, err := h.store.GetByID(ctx, event.ID)
	if err != nil {
		if err != store.ErrNotFound {
			return err
		}
		if err := h.store.Create(ctx, event.ID, nil, nil); err != nil {
			return err
		}
		applicant = &store.Applicant{ID: event.ID}
	}

	if err := h.pushCandidate(ctx, applicant, event, resume); err != nil {
		return err
	}
	return h.pushToVacancy(ctx, applicant)
}

// pushCandidate creates the external applicant record once. The uploaded
// file ids are persisted alongside the external id so the vacancy push can
// attach them.
func (h *Handlers) pushCandidate(ctx context.Context, applicant *store.Applicant, event bus.RecommendationSubmitted, resume string) error {
	if applicant.ApplicantID != nil {
		return nil
	}

	var fileIDs []int64
	if len(event.Files) > 0 {
		bodies, err := h.files.Download(ctx, event.Files)
		if err != nil {
			return err
		}
		fileIDs, err = h.tracking.UploadFiles(ctx, bodies)
		if err != nil {
			return err
		}
		h.logger.Info("uploaded candidate files", map[string]interface{}{
			"candidateId": event.ID,
			"fileIds":     fileIDs,
		})
	}

	applicantID, err := h.tracking.CreateCandidate(ctx, huntflow.CandidateRequest{
		FirstName:      event.FirstName,
		LastName:       event.LastName,
		Phone:          event.Phone,
		Specialization: event.Specialization,
		Body:           resume,
		FileIDs:        fileIDs,
	})
	if err != nil {
		return err
	}

	if err := h.store.Update(ctx, event.ID, store.Update{
		ApplicantID: &applicantID,
		FileIDs:     fileIDs,
	}); err != nil {
		return err
	}

	applicant.ApplicantID = &applicantID
	applicant.FileIDs = fileIDs
	return nil
}

// pushToVacancy puts the applicant on the referral vacancy at the initial
// status, once. The status persisted locally is the one echoed by the API.
func (h *Handlers) pushToVacancy(ctx context.Context, applicant *store.Applicant) error {
	if applicant.StatusID != nil {
		return nil
	}
	if applicant.ApplicantID == nil {
		return apperrors.NewApplicantNotFoundError(applicant.ID)
	}

	statusID, err := h.tracking.SetVacancyStatus(ctx, *applicant.ApplicantID, huntflow.StatusUpdate{
		FileIDs: applicant.FileIDs,
	})
	if err != nil {
		return err
	}

	return h.store.Update(ctx, applicant.ID, store.Update{StatusID: &statusID})
}

// HandleSecurityCheckCreated posts the security-check link as a comment at
// the security-check status.
func (h *Handlers) HandleSecurityCheckCreated(ctx context.Context, event bus.SecurityCheckCreated) error {
	comment := fmt.Sprintf("Создана ссылка на проверку в СБ: %s", event.ArmsURL)
	return h.pushSecurityCheckComment(ctx, event.ID, comment)
}

func (h *Handlers) HandleSecurityCheckFilled(ctx context.Context, event bus.SecurityCheckFilled) error {
	return h.pushSecurityCheckComment(ctx, event.ID, "Анкета СБ заполнена")
}

func (h *Handlers) HandleSecurityCheckFailed(ctx context.Context, event bus.SecurityCheckFailed) error {
	return h.pushSecurityCheckComment(ctx, event.ID, "Анкета СБ была заполнена некорректно.")
}

// HandleSecurityCheckFinished posts the check verdict. Known verdicts get a
// human-readable description, anything else is passed through verbatim.
func (h *Handlers) HandleSecurityCheckFinished(ctx context.Context, event bus.SecurityCheckFinished) error {
	description := event.Status
	switch event.Status {
	case "done":
		description = "Проверка завершена."
	case "refuse":
		description = "Отказ от проверки."
	}
	comment := fmt.Sprintf("Проверка СБ завершена со статусом: %s", description)
	return h.pushSecurityCheckComment(ctx, event.ID, comment)
}

func (h *Handlers) pushSecurityCheckComment(ctx context.Context, candidateID int64, comment string) error {
	applicant, err := h.store.GetByID(ctx, candidateID)
	if err != nil {
		if err == store.ErrNotFound {
			return apperrors.NewApplicantNotFoundError(candidateID)
		}
		return err
	}
	if applicant.ApplicantID == nil {
		return apperrors.NewApplicantNotFoundError(candidateID)
	}

	_, err = h.tracking.SetVacancyStatus(ctx, *applicant.ApplicantID, huntflow.StatusUpdate{
		StatusID: h.statuses.SecurityCheck,
		Comment:  comment,
	})
	return err
}
