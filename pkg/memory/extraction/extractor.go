package extraction

import (
	"context"
	"fmt"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/memory"
	"sdm-platform-be/pkg/status"

	"golang.org/x/time/rate"
)

const moduleName = "memory.extraction"

const defaultPointThreshold = 0.7

// Config tunes the extraction model calls.
type Config struct {
	Model string
	// CallsPerMinute bounds extraction LLM calls across all jobs.
	CallsPerMinute int
}

// Extractor turns a conversation window into profile and conversation point memories.
type Extractor struct {
	provider llm.LLMProvider
	profiles *memory.ProfileManager
	points   *memory.PointManager
	catalog  memory.PointCatalog
	notifier status.Notifier
	limiter  *rate.Limiter
	model    string
	logger   logger.ILogger
}

func NewExtractor(
	provider llm.LLMProvider,
	profiles *memory.ProfileManager,
	points *memory.PointManager,
	catalog memory.PointCatalog,
	notifier status.Notifier,
	cfg Config,
	log logger.ILogger,
) *Extractor {
	limit := rate.Inf
	burst := 1
	if cfg.CallsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.CallsPerMinute) / 60)
		burst = cfg.CallsPerMinute
	}
	if notifier == nil {
		notifier = status.NopNotifier{}
	}
	return &Extractor{
		provider: provider,
		profiles: profiles,
		points:   points,
		catalog:  catalog,
		notifier: notifier,
		limiter:  rate.NewLimiter(limit, burst),
		model:    cfg.Model,
		logger:   log,
	}
}

// Run extracts memories for one job. Malformed model output is logged and skipped so the
// stored memory stays untouched; only infrastructure failures are returned for retry.
func (e *Extractor) Run(ctx context.Context, job jobs.ExtractionJob) error {
	if job.UserID == "" || len(job.Messages) == 0 {
		return nil
	}

	e.notifier.Send(ctx, job.ThreadID, status.ExtractionStart())
	summaryTriggered := false
	// Every start is paired with a complete so clients can clear their indicator.
	defer func() {
		e.notifier.Send(context.WithoutCancel(ctx), job.ThreadID, status.ExtractionComplete(summaryTriggered))
	}()

	conversation := FormatConversation(job.Messages)
	if err := e.extractProfile(ctx, job.UserID, conversation); err != nil {
		return err
	}

	if job.JourneySlug != "" && e.catalog != nil {
		completed, err := e.extractPoints(ctx, job, conversation)
		if err != nil {
			return err
		}
		summaryTriggered = completed
	}
	return nil
}

func (e *Extractor) extractProfile(ctx context.Context, userID, conversation string) error {
	raw, err := e.complete(ctx, buildProfilePrompt(conversation), profileInstruction)
	if err != nil {
		return fmt.Errorf("profile extraction: %w", err)
	}

	out, err := parseProfile(raw)
	if err != nil {
		e.logger.Warn(moduleName, "Failed to parse profile extraction", map[string]interface{}{
			"user":  memory.EncodeUserID(userID),
			"error": err.Error(),
		})
		return nil
	}

	var update memory.ProfileUpdate
	if out.Name != "" {
		update.Name = &out.Name
	}
	if out.PreferredName != "" {
		update.PreferredName = &out.PreferredName
	}
	if out.Birthday != "" {
		if d, err := memory.ParseDate(out.Birthday); err == nil {
			update.Birthday = &d
		}
	}
	if update.IsEmpty() {
		e.logger.Debug(moduleName, "No profile data extracted", map[string]interface{}{
			"user": memory.EncodeUserID(userID),
		})
		return nil
	}

	if _, err := e.profiles.Update(ctx, userID, update, memory.SourceLLMExtraction); err != nil {
		return fmt.Errorf("store extracted profile: %w", err)
	}
	return nil
}

// extractPoints reports whether this run completed the journey.
func (e *Extractor) extractPoints(ctx context.Context, job jobs.ExtractionJob, conversation string) (bool, error) {
	points, err := e.catalog.ListActive(ctx, job.JourneySlug)
	if err != nil {
		return false, fmt.Errorf("list conversation points: %w", err)
	}
	if len(points) == 0 {
		return false, nil
	}

	before, err := e.points.List(ctx, job.UserID, job.JourneySlug)
	if err != nil {
		return false, err
	}
	wasComplete := memory.IsJourneyComplete(points, before)

	raw, err := e.complete(ctx, buildPointsPrompt(job.JourneySlug, points, conversation), pointsInstruction)
	if err != nil {
		return false, fmt.Errorf("point extraction: %w", err)
	}
	outputs, err := parsePoints(raw)
	if err != nil {
		e.logger.Warn(moduleName, "Failed to parse point extraction", map[string]interface{}{
			"journey": job.JourneySlug,
			"error":   err.Error(),
		})
		return false, nil
	}

	messageCount := len(job.Messages)
	for _, p := range points {
		out, ok := outputs[p.Slug]
		if !ok {
			continue
		}
		threshold := p.ConfidenceThreshold
		if threshold <= 0 {
			threshold = defaultPointThreshold
		}
		confidence := out.Confidence
		addressed := confidence >= threshold
		update := memory.PointUpdate{
			IsAddressed:          &addressed,
			ConfidenceScore:      &confidence,
			ExtractedPoints:      out.ExtractedPoints,
			RelevantQuotes:       out.RelevantQuotes,
			StructuredData:       out.StructuredData,
			MessageCountAnalyzed: &messageCount,
		}
		if _, err := e.points.Update(ctx, job.UserID, job.JourneySlug, p.Slug, update); err != nil {
			return false, fmt.Errorf("store point %s: %w", p.Slug, err)
		}
	}

	after, err := e.points.List(ctx, job.UserID, job.JourneySlug)
	if err != nil {
		return false, err
	}
	completed := !wasComplete && memory.IsJourneyComplete(points, after)
	if completed {
		e.logger.Info(moduleName, "Journey conversation points complete", map[string]interface{}{
			"user":    memory.EncodeUserID(job.UserID),
			"journey": job.JourneySlug,
		})
	}
	return completed, nil
}

func (e *Extractor) complete(ctx context.Context, prompt, instruction string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("extraction rate limit: %w", err)
	}

	opts := []llm.Option{llm.WithTemperature(0)}
	if e.model != "" {
		opts = append(opts, llm.WithModel(e.model))
	}
	reply, err := e.provider.Chat(ctx, []llm.Message{
		llm.NewSystemMessage(prompt),
		llm.NewHumanMessage(instruction),
	}, opts...)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}
