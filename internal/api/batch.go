package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/vcompress/internal/api/models"
	"github.com/smazurov/vcompress/internal/batch"
	"github.com/smazurov/vcompress/internal/ffmpeg"
	"github.com/smazurov/vcompress/internal/settings"
)

// fileEntry describes the input at index i.
func (s *Server) fileEntry(i int, path string) (models.FileEntry, error) {
	b, err := s.orch.Store().Get(path)
	if err != nil {
		return models.FileEntry{}, err
	}

	entry := models.FileEntry{
		Index:    i,
		Path:     path,
		Name:     filepath.Base(path),
		Settings: b,
		Summary:  b.Summary(),
	}
	if dir := s.orch.OutputDir(); dir != "" {
		entry.Output = ffmpeg.OutputPath(dir, path)
	}
	return entry, nil
}

func (s *Server) fileEntries() ([]models.FileEntry, error) {
	files := s.orch.Files()
	entries := make([]models.FileEntry, 0, len(files))
	for i, path := range files {
		entry, err := s.fileEntry(i, path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Server) fileAt(i int) (models.FileEntry, error) {
	path, err := s.orch.File(i)
	if err != nil {
		return models.FileEntry{}, err
	}
	return s.fileEntry(i, path)
}

func (s *Server) filesResponse() (*models.FilesResponse, error) {
	entries, err := s.fileEntries()
	if err != nil {
		return nil, mapBatchError(err)
	}
	resp := &models.FilesResponse{}
	resp.Body.Files = entries
	return resp, nil
}

// requireIdle rejects changes to per-file state while a run is active.
// Writes recheck under the orchestrator lock through SetFileSettings.
func (s *Server) requireIdle() error {
	if s.orch.Snapshot().State != batch.StateIdle {
		return batch.ErrBusy
	}
	return nil
}

// registerBatchRoutes registers the file list endpoints.
func (s *Server) registerBatchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-batch",
		Method:      http.MethodGet,
		Path:        "/api/batch",
		Summary:     "Get Batch",
		Description: "Orchestrator state, the file list with settings, and the default bundle",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.BatchResponse, error) {
		entries, err := s.fileEntries()
		if err != nil {
			return nil, mapBatchError(err)
		}
		return &models.BatchResponse{Body: models.BatchData{
			Status:   s.orch.Snapshot(),
			Files:    entries,
			Defaults: s.orch.Defaults(),
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "add-files",
		Method:        http.MethodPost,
		Path:          "/api/batch/files",
		Summary:       "Add Files",
		Description:   "Append inputs to the batch. New files get the default bundle; duplicates are skipped.",
		Tags:          []string{"batch"},
		Security:      withAuth(),
		DefaultStatus: http.StatusCreated,
		Errors:        []int{401, 409, 422},
	}, func(_ context.Context, input *models.AddFilesRequest) (*models.AddFilesResponse, error) {
		added, err := s.orch.AddFiles(input.Body.Paths...)
		if err != nil {
			return nil, mapBatchError(err)
		}
		entries, err := s.fileEntries()
		if err != nil {
			return nil, mapBatchError(err)
		}
		resp := &models.AddFilesResponse{}
		resp.Body.Added = added
		resp.Body.Files = entries
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-file",
		Method:      http.MethodDelete,
		Path:        "/api/batch/files/{index}",
		Summary:     "Remove File",
		Description: "Remove one input together with its settings",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *models.FileIndexInput) (*models.FilesResponse, error) {
		if _, err := s.orch.RemoveFile(input.Index); err != nil {
			return nil, mapBatchError(err)
		}
		return s.filesResponse()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-files",
		Method:      http.MethodDelete,
		Path:        "/api/batch/files",
		Summary:     "Clear Files",
		Description: "Remove every input and its settings",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.FilesResponse, error) {
		if err := s.orch.ClearFiles(); err != nil {
			return nil, mapBatchError(err)
		}
		return s.filesResponse()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "move-file",
		Method:      http.MethodPost,
		Path:        "/api/batch/files/{index}/move",
		Summary:     "Reorder File",
		Description: "Move one input a position up or down. Moving past either end is a no-op.",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422},
	}, func(_ context.Context, input *models.MoveFileRequest) (*models.FilesResponse, error) {
		move := s.orch.MoveDown
		if input.Body.Direction == "up" {
			move = s.orch.MoveUp
		}
		if err := move(input.Index); err != nil {
			return nil, mapBatchError(err)
		}
		return s.filesResponse()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-output-dir",
		Method:      http.MethodGet,
		Path:        "/api/batch/output",
		Summary:     "Get Output Directory",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OutputDirResponse, error) {
		return &models.OutputDirResponse{Body: models.OutputDirData{OutputDir: s.orch.OutputDir()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "put-output-dir",
		Method:      http.MethodPut,
		Path:        "/api/batch/output",
		Summary:     "Set Output Directory",
		Description: "Set where transcodes are written. The directory must exist.",
		Tags:        []string{"batch"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422},
	}, func(_ context.Context, input *models.PutOutputDirRequest) (*models.OutputDirResponse, error) {
		dir := input.Body.OutputDir
		if err := checkDirectory(dir); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		if err := s.orch.SetOutputDir(dir); err != nil {
			return nil, mapBatchError(err)
		}
		return &models.OutputDirResponse{Body: models.OutputDirData{OutputDir: dir}}, nil
	})
}

// registerSettingsRoutes registers per-file and default bundle endpoints.
func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-file-settings",
		Method:      http.MethodGet,
		Path:        "/api/batch/files/{index}/settings",
		Summary:     "Get File Settings",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.FileIndexInput) (*models.SettingsResponse, error) {
		entry, err := s.fileAt(input.Index)
		if err != nil {
			return nil, mapBatchError(err)
		}
		return &models.SettingsResponse{Body: entry}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "put-file-settings",
		Method:      http.MethodPut,
		Path:        "/api/batch/files/{index}/settings",
		Summary:     "Replace File Settings",
		Description: "Replace the whole bundle of one input",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422},
	}, func(_ context.Context, input *models.PutSettingsRequest) (*models.SettingsResponse, error) {
		if err := s.requireIdle(); err != nil {
			return nil, mapBatchError(err)
		}
		path, err := s.orch.File(input.Index)
		if err != nil {
			return nil, mapBatchError(err)
		}
		if err := input.Body.Validate(); err != nil {
			return nil, mapBatchError(err)
		}
		if err := s.orch.SetFileSettings(path, input.Body); err != nil {
			return nil, mapBatchError(err)
		}

		entry, err := s.fileEntry(input.Index, path)
		if err != nil {
			return nil, mapBatchError(err)
		}
		return &models.SettingsResponse{Body: entry}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "recommend-file-settings",
		Method:      http.MethodPost,
		Path:        "/api/batch/files/{index}/recommend",
		Summary:     "Recommend File Settings",
		Description: "Probe one input and replace its bundle with settings sized for the output budget",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422, 503},
	}, func(ctx context.Context, input *models.RecommendRequest) (*models.RecommendResponse, error) {
		if s.options.Recommender == nil {
			return nil, huma.Error503ServiceUnavailable("recommendations are not available")
		}
		if err := s.requireIdle(); err != nil {
			return nil, mapBatchError(err)
		}
		path, err := s.orch.File(input.Index)
		if err != nil {
			return nil, mapBatchError(err)
		}

		base, err := s.orch.Store().Get(path)
		if err != nil {
			return nil, mapBatchError(err)
		}
		rec, err := s.options.Recommender.Recommend(ctx, path, base, input.Body.Mono)
		if err != nil {
			return nil, mapBatchError(err)
		}
		// The probe can take seconds; a run may have started meanwhile.
		if err := s.orch.SetFileSettings(path, rec.Bundle); err != nil {
			return nil, mapBatchError(err)
		}

		entry, err := s.fileEntry(input.Index, path)
		if err != nil {
			return nil, mapBatchError(err)
		}
		return &models.RecommendResponse{Body: models.RecommendData{
			File:     entry,
			Probe:    rec.Probe,
			Warnings: rec.Warnings,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-defaults",
		Method:      http.MethodGet,
		Path:        "/api/batch/defaults",
		Summary:     "Get Default Settings",
		Description: "Bundle given to newly added files",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.DefaultsResponse, error) {
		return &models.DefaultsResponse{Body: s.orch.Defaults()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "put-defaults",
		Method:      http.MethodPut,
		Path:        "/api/batch/defaults",
		Summary:     "Set Default Settings",
		Description: "Replace the bundle given to files added from now on. Existing files keep theirs.",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.PutDefaultsRequest) (*models.DefaultsResponse, error) {
		if err := input.Body.Validate(); err != nil {
			return nil, mapBatchError(err)
		}
		s.orch.SetDefaults(input.Body)
		return &models.DefaultsResponse{Body: input.Body}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-settings-options",
		Method:      http.MethodGet,
		Path:        "/api/settings/options",
		Summary:     "Settings Options",
		Description: "Selectable codecs and presets, and the factory defaults for this machine",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		hw := s.options.Hardware
		return &models.OptionsResponse{Body: models.OptionsData{
			Codecs:   settings.Codecs(hw),
			Presets:  settings.Presets(),
			Hardware: hw,
			Defaults: settings.Defaults(hw),
		}}, nil
	})
}

// registerControlRoutes registers run control endpoints.
func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "start-batch",
		Method:        http.MethodPost,
		Path:          "/api/batch/start",
		Summary:       "Start Batch",
		Description:   "Encode every file in order on a background worker. Follow progress on /api/events.",
		Tags:          []string{"control"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		if err := s.orch.Start(s.options.RunContext); err != nil {
			return nil, mapBatchError(err)
		}
		return &models.StatusResponse{Body: s.orch.Snapshot()}, nil
	})

	control := []struct {
		id, path, summary, description string
		action                         func()
	}{
		{"pause-batch", "/api/batch/pause", "Pause Batch", "Stop reading encoder output until resumed. Ignored when idle.", s.orch.Pause},
		{"resume-batch", "/api/batch/resume", "Resume Batch", "Continue a paused run", s.orch.Resume},
		{"cancel-batch", "/api/batch/cancel", "Cancel Batch", "Terminate the current encoder and skip the remaining files. Ignored when idle.", s.orch.Cancel},
	}
	for _, c := range control {
		huma.Register(s.api, huma.Operation{
			OperationID: c.id,
			Method:      http.MethodPost,
			Path:        c.path,
			Summary:     c.summary,
			Description: c.description,
			Tags:        []string{"control"},
			Security:    withAuth(),
			Errors:      []int{401},
		}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
			c.action()
			return &models.StatusResponse{Body: s.orch.Snapshot()}, nil
		})
	}
}

func checkDirectory(dir string) error {
	if dir == "" {
		return errors.New("output directory must not be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
