package models

import "github.com/smazurov/vcompress/internal/updater"

// UpdateCheckResponse wraps the result of a release check.
type UpdateCheckResponse struct {
	Body updater.UpdateInfo
}

// UpdateStatusResponse wraps the updater state.
type UpdateStatusResponse struct {
	Body updater.Status
}

// UpdateApplyResponse reports an applied update.
type UpdateApplyResponse struct {
	Body struct {
		Message string             `json:"message" example:"Updated to 1.1.0, restart to use it" doc:"Status message"`
		Info    updater.UpdateInfo `json:"info" doc:"Release that was installed"`
	}
}

// UpdateRollbackResponse reports a completed rollback.
type UpdateRollbackResponse struct {
	Body struct {
		Message string `json:"message" example:"Rollback complete, restart to use it" doc:"Status message"`
	}
}
