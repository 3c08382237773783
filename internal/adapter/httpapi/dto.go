package httpapi

import (
	"time"

	"litwatch/internal/domain"
	"litwatch/internal/usecase"
)

type startRunRequest struct {
	Keyword     string `json:"keyword"`
	MaxArticles int    `json:"max_articles,omitempty"`
}

type runResponse struct {
	ID            string    `json:"id"`
	Keyword       string    `json:"keyword"`
	MaxArticles   int       `json:"max_articles"`
	Status        string    `json:"status"`
	ArticleIDs    []string  `json:"article_ids,omitempty"`
	QuickSummary  string    `json:"quick_summary,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	ReportPath    string    `json:"report_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type chunkRefResponse struct {
	ArticleSourceID string `json:"article_source_id"`
	SequenceIndex   int    `json:"sequence_index"`
}

type summaryResponse struct {
	ArticleSourceID  string             `json:"article_source_id"`
	Status           string             `json:"status"`
	SummaryText      string             `json:"summary_text"`
	ErrorDetail      string             `json:"error_detail,omitempty"`
	ContextChunkRefs []chunkRefResponse `json:"context_chunk_refs,omitempty"`
}

type synthesisResponse struct {
	SynthesisText   string   `json:"synthesis_text"`
	CitedArticleIDs []string `json:"cited_article_ids"`
}

type runDetailsResponse struct {
	Run       runResponse        `json:"run"`
	Summaries []summaryResponse  `json:"summaries,omitempty"`
	Synthesis *synthesisResponse `json:"synthesis,omitempty"`
}

func toRunResponse(run domain.Run) runResponse {
	return runResponse{
		ID:            run.ID.String(),
		Keyword:       run.Keyword,
		MaxArticles:   run.RequestedArticleCount,
		Status:        string(run.Status),
		ArticleIDs:    run.ArticleIDs,
		QuickSummary:  run.QuickSummary,
		FailureReason: run.FailureReason,
		ReportPath:    run.ReportPath,
		CreatedAt:     run.CreatedAt,
		UpdatedAt:     run.UpdatedAt,
	}
}

func toSummaryResponse(s domain.Summary) summaryResponse {
	refs := make([]chunkRefResponse, len(s.ContextChunkRefs))
	for i, r := range s.ContextChunkRefs {
		refs[i] = chunkRefResponse{ArticleSourceID: r.ArticleSourceID, SequenceIndex: r.SequenceIndex}
	}
	return summaryResponse{
		ArticleSourceID:  s.ArticleSourceID,
		Status:           string(s.Status),
		SummaryText:      s.SummaryText,
		ErrorDetail:      s.ErrorDetail,
		ContextChunkRefs: refs,
	}
}

func toRunDetailsResponse(details *usecase.RunDetails) runDetailsResponse {
	resp := runDetailsResponse{Run: toRunResponse(details.Run)}
	for _, s := range details.Summaries {
		resp.Summaries = append(resp.Summaries, toSummaryResponse(s))
	}
	if details.Synthesis != nil {
		resp.Synthesis = &synthesisResponse{
			SynthesisText:   details.Synthesis.SynthesisText,
			CitedArticleIDs: details.Synthesis.CitedArticleIDs,
		}
	}
	return resp
}
