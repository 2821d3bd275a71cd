package worker_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stepchat-backend/internal/worker"
)

func TestClient_TriggerStep(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var job worker.JobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&job))
		assert.Equal(t, 2, job.StepNumber)
		assert.Equal(t, "darker tone", job.UserInput)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := worker.NewClient(server.URL, "test-key")
	err := client.TriggerStep(worker.JobRequest{
		ProjectID:  "project-1",
		StepNumber: 2,
		UserInput:  "darker tone",
	})
	assert.NoError(t, err)
}

func TestClient_TriggerStep_WorkerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := worker.NewClient(server.URL, "test-key")
	err := client.TriggerStep(worker.JobRequest{ProjectID: "project-1", StepNumber: 1})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "worker returned status 502")
}

func TestClient_RetryWithBackoff(t *testing.T) {
	client := worker.NewClient("https://worker.test", "test-key")

	callCount := 0
	err := client.RetryWithBackoff(func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestClient_RetryWithBackoff_Exhausted(t *testing.T) {
	client := worker.NewClient("https://worker.test", "test-key")

	err := client.RetryWithBackoff(func() error {
		return assert.AnError
	}, 3)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}
