// Package models holds request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/vcompress/internal/batch"
	"github.com/smazurov/vcompress/internal/probe"
	"github.com/smazurov/vcompress/internal/settings"
	"github.com/smazurov/vcompress/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	FFmpeg  bool   `json:"ffmpeg" doc:"Whether the ffmpeg binary was found"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// FileEntry is one input of the batch with its settings.
type FileEntry struct {
	Index    int             `json:"index" example:"0" doc:"Position in the batch"`
	Path     string          `json:"path" example:"/videos/clip.mov" doc:"Input path"`
	Name     string          `json:"name" example:"clip.mov" doc:"Input base name"`
	Settings settings.Bundle `json:"settings" doc:"Encode settings"`
	Summary  string          `json:"summary" example:"Res: 640x360 | Codec: libx265 | CRF: 28 | Audio: 96k" doc:"Settings summary"`
	Output   string          `json:"output,omitempty" doc:"Output path, empty until an output directory is set"`
}

type BatchData struct {
	Status   batch.Snapshot  `json:"status" doc:"Orchestrator state"`
	Files    []FileEntry     `json:"files" doc:"Inputs in processing order"`
	Defaults settings.Bundle `json:"defaults" doc:"Bundle given to newly added files"`
}

type BatchResponse struct {
	Body BatchData
}

type StatusResponse struct {
	Body batch.Snapshot
}

// AddFilesRequest appends inputs to the batch.
type AddFilesRequest struct {
	Body struct {
		Paths []string `json:"paths" minItems:"1" doc:"Input paths; duplicates are skipped"`
	}
}

type AddFilesResponse struct {
	Body struct {
		Added []string    `json:"added" doc:"Paths that were not already in the batch"`
		Files []FileEntry `json:"files" doc:"Inputs in processing order"`
	}
}

// FileIndexInput addresses one batch entry.
type FileIndexInput struct {
	Index int `path:"index" minimum:"0" doc:"Position in the batch"`
}

type FilesResponse struct {
	Body struct {
		Files []FileEntry `json:"files" doc:"Inputs in processing order"`
	}
}

type MoveFileRequest struct {
	Index int `path:"index" minimum:"0" doc:"Position in the batch"`
	Body  struct {
		Direction string `json:"direction" enum:"up,down" doc:"Move one position earlier or later"`
	}
}

type SettingsResponse struct {
	Body FileEntry
}

type PutSettingsRequest struct {
	Index int `path:"index" minimum:"0" doc:"Position in the batch"`
	Body  settings.Bundle
}

type RecommendRequest struct {
	Index int `path:"index" minimum:"0" doc:"Position in the batch"`
	Body  struct {
		Mono bool `json:"mono,omitempty" doc:"Prefer a mono downmix"`
	}
}

type RecommendData struct {
	File     FileEntry    `json:"file" doc:"Entry after the recommendation was applied"`
	Probe    probe.Result `json:"probe" doc:"Measured media properties"`
	Warnings []string     `json:"warnings,omitempty" doc:"Assumptions made while recommending"`
}

type RecommendResponse struct {
	Body RecommendData
}

type DefaultsResponse struct {
	Body settings.Bundle
}

type PutDefaultsRequest struct {
	Body settings.Bundle
}

type OutputDirData struct {
	OutputDir string `json:"output_dir" example:"/videos/mobile" doc:"Directory transcodes are written to"`
}

type OutputDirResponse struct {
	Body OutputDirData
}

type PutOutputDirRequest struct {
	Body OutputDirData
}

// OptionsData lists the selectable encode settings.
type OptionsData struct {
	Codecs   []settings.Codec  `json:"codecs" doc:"Selectable video codecs"`
	Presets  []settings.Preset `json:"presets" doc:"Encoder presets"`
	Hardware bool              `json:"hardware" doc:"Whether hardware encoding is available"`
	Defaults settings.Bundle   `json:"defaults" doc:"Factory default bundle"`
}

type OptionsResponse struct {
	Body OptionsData
}

type LogsResponse struct {
	Body struct {
		Entries []LogEntry `json:"entries" doc:"Buffered log entries, oldest first"`
	}
}

type LogsRequest struct {
	Module string `query:"module" doc:"Only entries from this module"`
	Level  string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level"`
}

// LogEntry is a buffered log line.
type LogEntry struct {
	Timestamp  string         `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"batch" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}
