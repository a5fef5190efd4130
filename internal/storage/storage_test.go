package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/storage"
)

// TestNewDeliveryRecord verifies the expectation maps onto a pending record.
func TestNewDeliveryRecord(t *testing.T) {
	requestedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	record := storage.NewDeliveryRecord(artifact.Expectation{
		ID:           "exp-1",
		Name:         "INV12345.pdf",
		Path:         "/tmp/downloads/INV12345.pdf",
		Destination:  "/srv/archive/Invoice_PDFs/INV12345.pdf",
		MaxWait:      time.Minute,
		PollInterval: 2 * time.Second,
		RequestedAt:  requestedAt,
	})

	assert.Equal(t, "exp-1", record.ID)
	assert.Equal(t, "/tmp/downloads/INV12345.pdf", record.SourcePath)
	assert.Equal(t, string(artifact.StatePending), record.Status)
	assert.Equal(t, requestedAt.Format(time.RFC3339), record.RequestedAt)
}

// TestRecordExpectation verifies zero wait overrides fall back to the
// configured defaults while explicit ones survive.
func TestRecordExpectation(t *testing.T) {
	record := &storage.DeliveryRecord{
		ID:          "exp-1",
		Name:        "INV12345.pdf",
		SourcePath:  "/tmp/downloads/INV12345.pdf",
		RequestedAt: "2025-06-01T12:00:00Z",
	}

	exp := record.Expectation(30*time.Second, time.Second)
	assert.Equal(t, 30*time.Second, exp.MaxWait)
	assert.Equal(t, time.Second, exp.PollInterval)
	assert.Equal(t, 2025, exp.RequestedAt.Year())

	record.MaxWait = 2 * time.Minute
	record.PollInterval = 5 * time.Second

	exp = record.Expectation(30*time.Second, time.Second)
	assert.Equal(t, 2*time.Minute, exp.MaxWait)
	assert.Equal(t, 5*time.Second, exp.PollInterval)
}

// TestGenerateInstanceID verifies ids are non-empty and unique per call.
func TestGenerateInstanceID(t *testing.T) {
	first := storage.GenerateInstanceID()
	second := storage.GenerateInstanceID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
