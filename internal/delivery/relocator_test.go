package delivery_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelocate_MovesArtifact(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "INV12345.pdf")
	destination := filepath.Join(dir, "Invoice_PDFs", "INV12345.pdf")

	require.NoError(t, os.WriteFile(source, []byte("%PDF-1.4 fresh"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(destination), 0755))

	r := delivery.NewRelocator()

	result, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)

	assert.True(t, result.Moved())
	assert.False(t, result.Replaced)
	assert.NoFileExists(t, source)

	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fresh"), content)
}

func TestRelocate_ReplacesStaleDestination(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "INV12345.pdf")
	destination := filepath.Join(dir, "Invoice_PDFs", "INV12345.pdf")

	require.NoError(t, os.WriteFile(source, []byte("fresh"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(destination), 0755))
	require.NoError(t, os.WriteFile(destination, []byte("stale"), 0644))

	r := delivery.NewRelocator()

	result, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)

	assert.True(t, result.Moved())
	assert.True(t, result.Replaced)
	assert.NoFileExists(t, source)

	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), content)
}

func TestRelocate_SourceMissing(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "missing.pdf")
	destination := filepath.Join(dir, "out", "missing.pdf")

	require.NoError(t, os.MkdirAll(filepath.Dir(destination), 0755))
	require.NoError(t, os.WriteFile(destination, []byte("stale"), 0644))

	r := delivery.NewRelocator()

	result, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)

	assert.False(t, result.Moved())

	var missingErr *artifact.SourceMissingError
	require.ErrorAs(t, result.Reason, &missingErr)
	assert.Equal(t, source, missingErr.Source)

	// The occupant must not be touched when the source is gone.
	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, []byte("stale"), content)
}

func TestRelocate_SecondCallReportsSourceMissing(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "INV12345.pdf")
	destination := filepath.Join(dir, "Invoice_PDFs", "INV12345.pdf")

	require.NoError(t, os.WriteFile(source, []byte("fresh"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(destination), 0755))

	r := delivery.NewRelocator()

	first, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)
	require.True(t, first.Moved())

	second, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)

	assert.False(t, second.Moved())

	var missingErr *artifact.SourceMissingError
	require.ErrorAs(t, second.Reason, &missingErr)

	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), content)
}

func TestRelocate_MoveRejected(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "INV12345.pdf")
	destination := filepath.Join(dir, "no-such-dir", "INV12345.pdf")

	require.NoError(t, os.WriteFile(source, []byte("fresh"), 0644))

	r := delivery.NewRelocator()

	result, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)

	assert.False(t, result.Moved())
	assert.False(t, result.Replaced)

	var rejectedErr *artifact.MoveRejectedError
	require.ErrorAs(t, result.Reason, &rejectedErr)

	assert.FileExists(t, source)
}

func TestRelocate_DestinationBusy(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "INV12345.pdf")
	destination := filepath.Join(dir, "occupied")

	require.NoError(t, os.WriteFile(source, []byte("fresh"), 0644))
	// A non-empty directory at the destination cannot be deleted with a
	// plain remove, which is exactly the undeletable-occupant case.
	require.NoError(t, os.MkdirAll(filepath.Join(destination, "keep"), 0755))

	r := delivery.NewRelocator()

	result, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)

	assert.False(t, result.Moved())
	assert.False(t, result.Replaced)

	var busyErr *artifact.DestinationBusyError
	require.ErrorAs(t, result.Reason, &busyErr)
	assert.Equal(t, destination, busyErr.Destination)

	assert.FileExists(t, source)
}

func TestRelocate_PartialFailureIsDistinct(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "INV12345.pdf")
	destination := filepath.Join(dir, "Invoice_PDFs", "INV12345.pdf")

	require.NoError(t, os.WriteFile(source, []byte("fresh"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(destination), 0755))
	require.NoError(t, os.WriteFile(destination, []byte("stale"), 0644))

	renameErr := errors.New("cross-device link")
	r := delivery.NewRelocator(delivery.WithRename(func(oldpath, newpath string) error {
		return renameErr
	}))

	result, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)

	assert.False(t, result.Moved())
	assert.True(t, result.Replaced)

	var partialErr *artifact.PartialRelocationError
	require.ErrorAs(t, result.Reason, &partialErr)
	assert.ErrorIs(t, result.Reason, renameErr)

	// The stale occupant is gone, the artifact is still at the source.
	assert.NoFileExists(t, destination)
	assert.FileExists(t, source)

	// Without a pre-existing occupant the same failure is a plain rejection.
	plain, err := r.Relocate(context.Background(), source, destination)
	require.NoError(t, err)

	var rejectedErr *artifact.MoveRejectedError
	require.ErrorAs(t, plain.Reason, &rejectedErr)
}

func TestRelocate_InvalidArguments(t *testing.T) {
	r := delivery.NewRelocator()

	tests := []struct {
		name        string
		source      string
		destination string
		wantArg     string
	}{
		{name: "empty source", source: "", destination: "out/a.pdf", wantArg: "source"},
		{name: "empty destination", source: "/tmp/a.pdf", destination: "", wantArg: "destination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Relocate(context.Background(), tt.source, tt.destination)

			var invalidErr *artifact.InvalidArgumentError
			require.ErrorAs(t, err, &invalidErr)
			assert.Equal(t, tt.wantArg, invalidErr.Argument)
		})
	}
}
