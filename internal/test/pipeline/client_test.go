package pipeline_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stepchat-backend/internal/chat"
	"stepchat-backend/internal/models"
	"stepchat-backend/internal/pipeline"
)

func TestAdvance_Accepted(t *testing.T) {
	projectID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/projects/"+projectID.String()+"/advance", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req models.AdvanceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "make it darker", req.UserInput)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(models.AdvanceResponse{ProjectID: projectID.String(), Accepted: true})
	}))
	defer server.Close()

	client := pipeline.NewClient(server.URL, "test-token")
	err := client.Advance(context.Background(), projectID, models.AdvanceRequest{UserInput: "make it darker"})
	assert.NoError(t, err)
}

func TestAdvance_InsufficientCredits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error:   "insufficient_credits",
			Message: "No credits remaining",
		})
	}))
	defer server.Close()

	client := pipeline.NewClient(server.URL, "test-token")
	err := client.Advance(context.Background(), uuid.New(), models.AdvanceRequest{})

	var admission *chat.AdmissionError
	require.ErrorAs(t, err, &admission)
	assert.True(t, admission.InsufficientCredits())
	assert.Contains(t, admission.Message, "No credits remaining")
}

func TestAdvance_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := pipeline.NewClient(server.URL, "test-token")
	err := client.Advance(context.Background(), uuid.New(), models.AdvanceRequest{})

	var admission *chat.AdmissionError
	require.ErrorAs(t, err, &admission)
	assert.False(t, admission.InsufficientCredits())
}

func TestAdvance_TransportFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := pipeline.NewClient(server.URL, "test-token")
	err := client.Advance(context.Background(), uuid.New(), models.AdvanceRequest{})

	var admission *chat.AdmissionError
	require.ErrorAs(t, err, &admission)
	assert.Equal(t, chat.ReasonGeneric, admission.Reason)
}

func TestSelectOption_SendsIndex(t *testing.T) {
	stepID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/steps/"+stepID.String()+"/select", r.URL.Path)

		var req models.SelectOptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.OptionIndex)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := pipeline.NewClient(server.URL, "test-token")
	assert.NoError(t, client.SelectOption(context.Background(), stepID, 2))
}

func TestApproveStep(t *testing.T) {
	stepID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/steps/"+stepID.String()+"/approve", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := pipeline.NewClient(server.URL, "test-token")
	assert.NoError(t, client.ApproveStep(context.Background(), stepID))
}

func TestApproveStep_InsufficientCredits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: "insufficient_credits"})
	}))
	defer server.Close()

	client := pipeline.NewClient(server.URL, "test-token")
	err := client.ApproveStep(context.Background(), uuid.New())

	var admission *chat.AdmissionError
	require.ErrorAs(t, err, &admission)
	assert.True(t, admission.InsufficientCredits())
}

func TestRegenerateStep_MissingRowIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Not found"})
	}))
	defer server.Close()

	// Retried regenerates race the worker re-creating the row; a missing
	// step already is the requested end state.
	client := pipeline.NewClient(server.URL, "test-token")
	assert.NoError(t, client.RegenerateStep(context.Background(), uuid.New()))
}

func TestRegenerateStep_OtherFailuresStillReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: "insufficient_credits"})
	}))
	defer server.Close()

	client := pipeline.NewClient(server.URL, "test-token")
	err := client.RegenerateStep(context.Background(), uuid.New())

	var admission *chat.AdmissionError
	require.ErrorAs(t, err, &admission)
	assert.True(t, admission.InsufficientCredits())
}
