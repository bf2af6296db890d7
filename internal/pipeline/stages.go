package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

// extractStage bounds the document text and applies the local heuristic.
// A local rejection ends the invocation before any provider call.
func (p *Processor) extractStage(ctx context.Context, logger *slog.Logger, doc document.Document) (document.Excerpt, error) {
	excerpt, err := p.Extractor.Extract(ctx, doc)
	if err != nil {
		return document.Excerpt{}, err
	}
	logger.Info("pipeline.extract.ok",
		"document", doc.Name,
		"format", doc.Format,
		"pages", excerpt.PageCount,
		"pages_consulted", excerpt.PagesConsulted,
		"chars", excerpt.Len(),
		"truncated", excerpt.Truncated,
	)

	if v := p.Classifier.CheckLocal(excerpt); v.Err() != nil {
		return excerpt, v.Err()
	}
	return excerpt, nil
}

// modelStage builds the prompt, calls the provider and turns the reply into
// a validated result. The sentinel check runs before repair and validation.
func (p *Processor) modelStage(ctx context.Context, logger *slog.Logger, excerpt document.Excerpt, cfg llm.ProviderConfig) (llm.AnalysisResult, string, error) {
	req := llm.BuildPrompt(excerpt.Text, p.Contract, p.Classifier.Sentinel())

	reply, err := p.Invoker.Invoke(ctx, req, cfg)
	if err != nil {
		return llm.AnalysisResult{}, "", err
	}
	logger.Debug("pipeline.invoke.ok", "provider", reply.Provider, "model", reply.Model, "reply_len", len(reply.Text))

	if v := p.Classifier.CheckReply(reply.Text); v.Err() != nil {
		return llm.AnalysisResult{}, reply.Model, v.Err()
	}

	candidate, err := llm.Repair(reply.Text)
	if err != nil {
		return llm.AnalysisResult{}, reply.Model, err
	}
	res, err := p.Validator.Validate(candidate, p.Contract)
	if err != nil {
		return llm.AnalysisResult{}, reply.Model, err
	}
	return res, reply.Model, nil
}
