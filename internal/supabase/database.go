package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"stepchat-backend/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) CreateProject(userID uuid.UUID, name, prompt string) (*models.Project, error) {
	var project models.Project
	err := d.db.QueryRow(`
		INSERT INTO projects (id, user_id, name, seed_prompt, current_step, status)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING id, user_id, name, seed_prompt, current_step, status, error_message, created_at, updated_at
	`, uuid.New(), userID, name, prompt, models.StatusInProgress).Scan(
		&project.ID, &project.UserID, &project.Name, &project.SeedPrompt,
		&project.CurrentStep, &project.Status, &project.ErrorMessage,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return &project, nil
}

func (d *DatabaseClient) GetProject(projectID, userID uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := d.db.QueryRow(`
		SELECT id, user_id, name, seed_prompt, current_step, status, error_message, created_at, updated_at
		FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID).Scan(
		&project.ID, &project.UserID, &project.Name, &project.SeedPrompt,
		&project.CurrentStep, &project.Status, &project.ErrorMessage,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// FetchProject implements chat.Store.
func (d *DatabaseClient) FetchProject(ctx context.Context, projectID uuid.UUID) (models.Project, error) {
	var project models.Project
	err := d.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, seed_prompt, current_step, status, error_message, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(
		&project.ID, &project.UserID, &project.Name, &project.SeedPrompt,
		&project.CurrentStep, &project.Status, &project.ErrorMessage,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return models.Project{}, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

func (d *DatabaseClient) ListProjects(userID uuid.UUID) ([]models.Project, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, name, seed_prompt, current_step, status, error_message, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var project models.Project
		err := rows.Scan(
			&project.ID, &project.UserID, &project.Name, &project.SeedPrompt,
			&project.CurrentStep, &project.Status, &project.ErrorMessage,
			&project.CreatedAt, &project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, nil
}

func (d *DatabaseClient) UpdateProjectName(projectID, userID uuid.UUID, name string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET name = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
	`, name, projectID, userID)
	return err
}

func (d *DatabaseClient) UpdateProjectStatus(projectID uuid.UUID, status string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, projectID)
	return err
}

func (d *DatabaseClient) UpdateProjectStep(projectID uuid.UUID, currentStep int) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET current_step = $1, updated_at = NOW()
		WHERE id = $2
	`, currentStep, projectID)
	return err
}

func (d *DatabaseClient) SetProjectError(projectID uuid.UUID, errorMsg string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`, models.StatusError, errorMsg, projectID)
	return err
}

func (d *DatabaseClient) DeleteProject(projectID, userID uuid.UUID) error {
	_, err := d.db.Exec(`
		DELETE FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID)
	return err
}

func (d *DatabaseClient) GetStepResult(stepResultID uuid.UUID) (*models.StepResult, error) {
	var step models.StepResult
	var selection []byte
	err := d.db.QueryRow(`
		SELECT id, project_id, step_number, step_name, llm_output, user_selection, approved, created_at
		FROM step_results
		WHERE id = $1
	`, stepResultID).Scan(
		&step.ID, &step.ProjectID, &step.StepNumber, &step.StepName,
		&step.LLMOutput, &selection, &step.Approved, &step.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get step result: %w", err)
	}
	step.UserSelection = json.RawMessage(selection)

	return &step, nil
}

// FetchStepResults implements chat.Store: the full step history of a
// project, ascending by creation time.
func (d *DatabaseClient) FetchStepResults(ctx context.Context, projectID uuid.UUID) ([]models.StepResult, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, project_id, step_number, step_name, llm_output, user_selection, approved, created_at
		FROM step_results
		WHERE project_id = $1
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step results: %w", err)
	}
	defer rows.Close()

	var steps []models.StepResult
	for rows.Next() {
		var step models.StepResult
		var selection []byte
		err := rows.Scan(
			&step.ID, &step.ProjectID, &step.StepNumber, &step.StepName,
			&step.LLMOutput, &selection, &step.Approved, &step.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		step.UserSelection = json.RawMessage(selection)
		steps = append(steps, step)
	}

	return steps, nil
}

// CreateStepResult records a worker-produced step. The unique
// (project_id, step_number) constraint makes worker retries idempotent:
// a replayed callback overwrites the same row instead of duplicating it.
func (d *DatabaseClient) CreateStepResult(projectID uuid.UUID, stepNumber int, stepName string, llmOutput json.RawMessage) (*models.StepResult, error) {
	var step models.StepResult
	var selection []byte
	err := d.db.QueryRow(`
		INSERT INTO step_results (id, project_id, step_number, step_name, llm_output)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, step_number)
		DO UPDATE SET step_name = EXCLUDED.step_name, llm_output = EXCLUDED.llm_output
		RETURNING id, project_id, step_number, step_name, llm_output, user_selection, approved, created_at
	`, uuid.New(), projectID, stepNumber, stepName, []byte(llmOutput)).Scan(
		&step.ID, &step.ProjectID, &step.StepNumber, &step.StepName,
		&step.LLMOutput, &selection, &step.Approved, &step.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step result: %w", err)
	}
	step.UserSelection = json.RawMessage(selection)

	return &step, nil
}

// SetStepSelection records the user's option choice. The guard keeps
// the unset-to-set-once invariant: a second selection is a no-op.
func (d *DatabaseClient) SetStepSelection(stepResultID uuid.UUID, selection json.RawMessage) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE step_results
		SET user_selection = $1, approved = TRUE
		WHERE id = $2 AND user_selection IS NULL
	`, []byte(selection), stepResultID)
	if err != nil {
		return false, fmt.Errorf("failed to set step selection: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// ApproveStep records a generic approval with no option choice.
func (d *DatabaseClient) ApproveStep(stepResultID uuid.UUID) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE step_results
		SET approved = TRUE
		WHERE id = $1 AND approved = FALSE
	`, stepResultID)
	if err != nil {
		return false, fmt.Errorf("failed to approve step: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// DeleteStepResult removes a step so the worker can re-create it.
// Returns false when the row was already gone.
func (d *DatabaseClient) DeleteStepResult(stepResultID uuid.UUID) (bool, error) {
	result, err := d.db.Exec(`
		DELETE FROM step_results
		WHERE id = $1
	`, stepResultID)
	if err != nil {
		return false, fmt.Errorf("failed to delete step result: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (d *DatabaseClient) GetProfile(userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := d.db.QueryRow(`
		SELECT id, credits, is_admin, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, userID).Scan(
		&profile.ID, &profile.Credits, &profile.IsAdmin,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

// ConsumeCredit records one unit of consumption. It is deliberately a
// separate statement from the balance read in the admission gate; two
// near-simultaneous advances may both pass the check before either
// decrement lands. See DESIGN.md.
func (d *DatabaseClient) ConsumeCredit(userID uuid.UUID) error {
	_, err := d.db.Exec(`
		UPDATE profiles
		SET credits = credits - 1, updated_at = NOW()
		WHERE id = $1
	`, userID)
	return err
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
