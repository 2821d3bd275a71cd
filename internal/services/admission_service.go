package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"stepchat-backend/internal/models"
	"stepchat-backend/internal/supabase"
	"stepchat-backend/internal/worker"
)

// ErrInsufficientCredits is the distinguished gate rejection surfaced
// as HTTP 402.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrPipelineClosed means the project is paused or terminal and accepts
// no new advance calls.
var ErrPipelineClosed = errors.New("project does not accept new steps")

// AdmissionService is the server side of the admission gate: it checks
// and consumes credits before authorizing the external worker to run a
// pipeline step. It never runs the step itself; the worker writes the
// resulting step row out of band.
type AdmissionService struct {
	dbClient       *supabase.DatabaseClient
	workerClient   *worker.Client
	realtimeClient *supabase.RealtimeClient
	callbackURL    string
}

func NewAdmissionService(
	dbClient *supabase.DatabaseClient,
	workerClient *worker.Client,
	realtimeClient *supabase.RealtimeClient,
	callbackURL string,
) *AdmissionService {
	return &AdmissionService{
		dbClient:       dbClient,
		workerClient:   workerClient,
		realtimeClient: realtimeClient,
		callbackURL:    callbackURL,
	}
}

// Admit performs the authoritative credit check and records the
// consumption. Administrators bypass the check entirely, whether the
// role comes from the token claims or from the profile row.
//
// The balance read and the decrement are deliberately separate
// statements: two near-simultaneous calls from the same user may both
// pass before either decrement lands. Preserved as observed behavior,
// not tightened; see DESIGN.md.
func (s *AdmissionService) Admit(userID uuid.UUID, tokenAdmin bool) error {
	if tokenAdmin {
		return nil
	}
	profile, err := s.dbClient.GetProfile(userID)
	if err != nil {
		return fmt.Errorf("failed to resolve profile: %w", err)
	}
	if profile.IsAdmin {
		return nil
	}
	if profile.Credits <= 0 {
		return ErrInsufficientCredits
	}
	if err := s.dbClient.ConsumeCredit(userID); err != nil {
		return fmt.Errorf("failed to consume credit: %w", err)
	}
	return nil
}

// Advance gates and authorizes production of the project's next step.
func (s *AdmissionService) Advance(project *models.Project, req models.AdvanceRequest, tokenAdmin bool) error {
	if models.IsTerminal(project.Status) || project.Status == models.StatusPaused {
		return ErrPipelineClosed
	}
	if err := s.Admit(project.UserID, tokenAdmin); err != nil {
		return err
	}

	nextStep := project.CurrentStep + 1
	s.trigger(worker.JobRequest{
		ProjectID:   project.ID.String(),
		StepNumber:  nextStep,
		SeedPrompt:  project.SeedPrompt,
		UserInput:   req.UserInput,
		Attachments: req.Attachments,
		CallbackURL: s.callbackURL,
	})

	s.realtimeClient.PublishProjectEvent(project.ID, "advance_accepted",
		supabase.AdvanceAcceptedPayload(project.ID, nextStep))
	return nil
}

// TriggerFirstStep hands step 1 of a freshly created project to the
// worker. The caller has already run the gate; no second credit is
// consumed here.
func (s *AdmissionService) TriggerFirstStep(project *models.Project, prompt string) {
	s.trigger(worker.JobRequest{
		ProjectID:   project.ID.String(),
		StepNumber:  1,
		SeedPrompt:  prompt,
		CallbackURL: s.callbackURL,
	})
}

// Regenerate gates, deletes the step row outright and asks the worker
// to re-create it. Reports whether a row was actually deleted.
func (s *AdmissionService) Regenerate(project *models.Project, step *models.StepResult, tokenAdmin bool) (bool, error) {
	if err := s.Admit(project.UserID, tokenAdmin); err != nil {
		return false, err
	}

	deleted, err := s.dbClient.DeleteStepResult(step.ID)
	if err != nil {
		return false, err
	}

	s.trigger(worker.JobRequest{
		ProjectID:   project.ID.String(),
		StepNumber:  step.StepNumber,
		SeedPrompt:  project.SeedPrompt,
		CallbackURL: s.callbackURL,
	})

	s.realtimeClient.PublishProjectEvent(project.ID, "step_regenerating",
		supabase.StepRegeneratedPayload(project.ID, step.ID))
	return deleted, nil
}

// trigger hands the job to the worker without blocking the caller; the
// accepted response has already been decided by the gate.
func (s *AdmissionService) trigger(job worker.JobRequest) {
	go func() {
		err := s.workerClient.RetryWithBackoff(func() error {
			return s.workerClient.TriggerStep(job)
		}, 3)
		if err != nil {
			log.Printf("services: failed to trigger worker for project %s step %d: %v",
				job.ProjectID, job.StepNumber, err)
		}
	}()
}
