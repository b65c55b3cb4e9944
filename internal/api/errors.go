package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/vcompress/internal/batch"
	"github.com/smazurov/vcompress/internal/probe"
	"github.com/smazurov/vcompress/internal/settings"
)

// mapBatchError converts orchestrator, settings and probe errors to huma errors.
func mapBatchError(err error) error {
	switch {
	case errors.Is(err, batch.ErrBusy), errors.Is(err, batch.ErrAlreadyRunning):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, batch.ErrIndexOutOfRange), errors.Is(err, settings.ErrMissingSettings):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, batch.ErrEmptyBatch), errors.Is(err, batch.ErrNoOutputDirectory):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, settings.ErrInvalidSettings), errors.Is(err, probe.ErrProbe):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
