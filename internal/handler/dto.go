package handler

import "pinksync/internal/models"

type generateRequest struct {
	Text          string `json:"text"`
	TargetVariant string `json:"targetVariant"`
	RenderStyle   string `json:"renderStyle"`
	QualityTier   string `json:"qualityTier"`
	RequesterID   string `json:"requesterId"`
}

func (r generateRequest) toModel() models.GenerationRequest {
	return models.GenerationRequest{
		Text:          r.Text,
		TargetVariant: r.TargetVariant,
		RenderStyle:   models.RenderStyle(r.RenderStyle),
		QualityTier:   models.QualityTier(r.QualityTier),
		RequesterID:   r.RequesterID,
	}
}

type preferencesRequest struct {
	TargetVariant string `json:"targetVariant"`
	RenderStyle   string `json:"renderStyle"`
	QualityTier   string `json:"qualityTier"`
}

func (r preferencesRequest) toModel(requesterID string) models.RequesterPreferences {
	return models.RequesterPreferences{
		RequesterID:   requesterID,
		TargetVariant: r.TargetVariant,
		RenderStyle:   models.RenderStyle(r.RenderStyle),
		QualityTier:   models.QualityTier(r.QualityTier),
	}
}

type listJobsResponse struct {
	Jobs   []*models.JobStatusRecord `json:"jobs"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

type processBatchRequest struct {
	MaxJobs            int `json:"maxJobs"`
	MaxDurationSeconds int `json:"maxDurationSeconds"`
}
