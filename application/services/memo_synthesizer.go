package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"analyst-backend/application/ports"
	"analyst-backend/domain/core/aggregates"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/domain/events"
	pkgerrors "analyst-backend/pkg/errors"
)

// sectionTitles maps the taxonomy to human readable headings. The stage 1
// prompt instructs the model to emit these headings so the combined output
// can be split back into sections.
var sectionTitles = map[aggregates.SectionType]string{
	aggregates.SectionFounderProfile:       "Founder Profile",
	aggregates.SectionProblemSizing:        "Problem Sizing",
	aggregates.SectionDifferentiation:      "Differentiation",
	aggregates.SectionCompanyReview:        "Company Review",
	aggregates.SectionMarketAnalysis:       "Market Analysis",
	aggregates.SectionCompetitiveLandscape: "Competitive Landscape",
	aggregates.SectionFinancialProjections: "Financial Projections",
	aggregates.SectionRiskAssessment:       "Risk Assessment",
	aggregates.SectionRecommendation:       "Recommendation",
}

// MemoSynthesizer generates stage 1 memos from selected data sources and
// curates them into stage 2 memos, and owns the memo review workflow.
type MemoSynthesizer struct {
	memoRepo   ports.MemoRepository
	sourceRepo ports.DataSourceRepository
	completion ports.TextCompletion
	publisher  ports.EventPublisher
	metrics    ports.MetricsRecorder
	logger     *zap.Logger

	// Distinct synthetic generator identities so a stage 2 memo is never
	// attributed to the agent that produced its stage 1 source.
	stage1Generator valueobjects.AgentID
	stage2Generator valueobjects.AgentID
}

// NewMemoSynthesizer creates a memo synthesizer
func NewMemoSynthesizer(
	memoRepo ports.MemoRepository,
	sourceRepo ports.DataSourceRepository,
	completion ports.TextCompletion,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.Logger,
) *MemoSynthesizer {
	return &MemoSynthesizer{
		memoRepo:        memoRepo,
		sourceRepo:      sourceRepo,
		completion:      completion,
		publisher:       publisher,
		metrics:         metrics,
		logger:          logger,
		stage1Generator: valueobjects.NewAgentID(),
		stage2Generator: valueobjects.NewAgentID(),
	}
}

// SynthesizeStage1 generates a stage 1 memo from the given data sources.
// Only sources that exist, belong to the owner and are selected participate;
// an empty effective set fails validation before any model call is made.
func (s *MemoSynthesizer) SynthesizeStage1(
	ctx context.Context,
	owner valueobjects.Owner,
	companyName string,
	sourceIDs []valueobjects.DataSourceID,
) (*aggregates.Memo, error) {
	if len(sourceIDs) == 0 {
		return nil, pkgerrors.NewValidation("at least one data source is required")
	}

	sources, err := s.sourceRepo.GetByIDs(ctx, sourceIDs)
	if err != nil {
		return nil, err
	}
	var usable []*entities.DataSource
	for _, src := range sources {
		if src.BelongsTo(owner) && src.IsSelected() && src.Status() == entities.DataSourceStatusCompleted {
			usable = append(usable, src)
		}
	}
	if len(usable) == 0 {
		return nil, pkgerrors.NewValidation("no selected data sources available for synthesis")
	}

	title := fmt.Sprintf("Investment Memo: %s", companyName)
	memo, err := aggregates.NewStage1Memo(owner, title, companyName, s.stage1Generator)
	if err != nil {
		return nil, err
	}
	// Saved before the model call so the memo is observable while generating.
	if err := s.memoRepo.Save(ctx, memo); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting memo")
	}

	start := time.Now()
	synthesis, err := s.completion.Generate(ctx, stage1Prompt(companyName, usable))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "synthesizing memo content")
	}

	confidence := averageConfidence(usable)
	for _, sectionType := range aggregates.SectionTaxonomy() {
		heading := sectionTitles[sectionType]
		content := extractSection(synthesis, heading)
		if err := memo.PutSection(sectionType, heading, content, confidence, aggregates.DefaultSectionWeight); err != nil {
			return nil, err
		}
		// Each section write is durable so a failed synthesis can resume
		// idempotently without duplicating already written sections.
		if err := s.memoRepo.Save(ctx, memo); err != nil {
			return nil, pkgerrors.Wrap(err, "persisting memo section")
		}
	}

	if err := memo.Complete(); err != nil {
		return nil, err
	}
	if err := s.memoRepo.Save(ctx, memo); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting completed memo")
	}

	elapsed := time.Since(start).Seconds()
	s.metrics.RecordMemoGenerated(string(aggregates.MemoStageStage1), elapsed)
	s.publish(events.NewMemoGenerated(
		memo.ID().String(), owner.String(), string(memo.Stage()), memo.SectionCount()))
	s.logger.Info("stage 1 memo generated",
		zap.String("memoId", memo.ID().String()),
		zap.String("company", companyName),
		zap.Int("sources", len(usable)))
	return memo, nil
}

// SynthesizeStage2 curates a completed stage 1 memo into a stage 2 memo
// shaped by the caller's preferences. Section recombination runs section by
// section; visual summaries and the risk matrix are added in separate passes.
func (s *MemoSynthesizer) SynthesizeStage2(
	ctx context.Context,
	owner valueobjects.Owner,
	sourceMemoID valueobjects.MemoID,
	preferences map[string]string,
) (*aggregates.Memo, error) {
	source, err := s.memoRepo.GetByID(ctx, sourceMemoID)
	if err != nil {
		return nil, err
	}
	if !source.BelongsTo(owner) {
		return nil, pkgerrors.NewAccessDenied("source memo belongs to another owner")
	}
	if source.Stage() != aggregates.MemoStageStage1 {
		return nil, pkgerrors.NewValidation("stage 2 curation requires a stage 1 source memo")
	}
	if source.Status() != aggregates.MemoStatusCompleted {
		return nil, pkgerrors.NewValidation(fmt.Sprintf(
			"source memo must be completed, is %s", source.Status()))
	}

	start := time.Now()
	title := fmt.Sprintf("Curated Memo: %s", source.CompanyName())
	memo, err := aggregates.NewStage2Memo(
		owner, title, source.CompanyName(), s.stage2Generator, sourceMemoID, preferences)
	if err != nil {
		return nil, err
	}
	if err := s.memoRepo.Save(ctx, memo); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting memo")
	}

	for _, sectionType := range aggregates.SectionTaxonomy() {
		srcSection, ok := source.Section(sectionType)
		if !ok {
			return nil, pkgerrors.NewValidation(fmt.Sprintf(
				"source memo is missing section %s", sectionType))
		}

		curated, err := s.completion.Generate(ctx, stage2SectionPrompt(srcSection, preferences))
		if err != nil {
			return nil, pkgerrors.Wrap(err, fmt.Sprintf("curating section %s", sectionType))
		}
		confidence := srcSection.Confidence()
		if err := memo.PutSection(sectionType, srcSection.Title(), curated, confidence, srcSection.Weight()); err != nil {
			return nil, err
		}
		if err := s.memoRepo.Save(ctx, memo); err != nil {
			return nil, pkgerrors.Wrap(err, "persisting memo section")
		}
	}

	if err := s.addVisualSummaries(ctx, memo); err != nil {
		return nil, err
	}
	if err := s.addRiskMatrix(ctx, memo); err != nil {
		return nil, err
	}

	if err := memo.Complete(); err != nil {
		return nil, err
	}
	if err := s.memoRepo.Save(ctx, memo); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting completed memo")
	}

	elapsed := time.Since(start).Seconds()
	s.metrics.RecordMemoGenerated(string(aggregates.MemoStageStage2), elapsed)
	s.publish(events.NewMemoGenerated(
		memo.ID().String(), owner.String(), string(memo.Stage()), memo.SectionCount()))
	s.logger.Info("stage 2 memo generated",
		zap.String("memoId", memo.ID().String()),
		zap.String("sourceMemoId", sourceMemoID.String()))
	return memo, nil
}

// addVisualSummaries attaches chart payloads to the data heavy sections
func (s *MemoSynthesizer) addVisualSummaries(ctx context.Context, memo *aggregates.Memo) error {
	for _, sectionType := range []aggregates.SectionType{
		aggregates.SectionMarketAnalysis,
		aggregates.SectionFinancialProjections,
	} {
		section, ok := memo.Section(sectionType)
		if !ok {
			continue
		}
		payload, err := s.completion.Generate(ctx, fmt.Sprintf(
			"Produce a JSON chart specification (labels and values only) that best "+
				"summarizes the quantitative claims in this section:\n\n%s", section.Content()))
		if err != nil {
			return pkgerrors.Wrap(err, fmt.Sprintf("generating chart for %s", sectionType))
		}
		if err := memo.PutVisualization(sectionType, "chart",
			fmt.Sprintf("%s overview", section.Title()), payload); err != nil {
			return err
		}
		if err := s.memoRepo.Save(ctx, memo); err != nil {
			return pkgerrors.Wrap(err, "persisting visualization")
		}
	}
	return nil
}

// addRiskMatrix attaches a likelihood/impact matrix to the risk section
func (s *MemoSynthesizer) addRiskMatrix(ctx context.Context, memo *aggregates.Memo) error {
	section, ok := memo.Section(aggregates.SectionRiskAssessment)
	if !ok {
		return nil
	}
	payload, err := s.completion.Generate(ctx, fmt.Sprintf(
		"Extract the risks in this section into a JSON matrix of "+
			"{risk, likelihood, impact, mitigation} entries:\n\n%s", section.Content()))
	if err != nil {
		return pkgerrors.Wrap(err, "generating risk matrix")
	}
	if err := memo.PutVisualization(aggregates.SectionRiskAssessment,
		"risk-matrix", "Risk Matrix", payload); err != nil {
		return err
	}
	if err := s.memoRepo.Save(ctx, memo); err != nil {
		return pkgerrors.Wrap(err, "persisting risk matrix")
	}
	return nil
}

// GetMemo retrieves an owner's memo
func (s *MemoSynthesizer) GetMemo(ctx context.Context, owner valueobjects.Owner, id valueobjects.MemoID) (*aggregates.Memo, error) {
	memo, err := s.memoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !memo.BelongsTo(owner) {
		return nil, pkgerrors.NewAccessDenied("memo belongs to another owner")
	}
	return memo, nil
}

// ListMemos retrieves all of the owner's memos, newest first
func (s *MemoSynthesizer) ListMemos(ctx context.Context, owner valueobjects.Owner) ([]*aggregates.Memo, error) {
	return s.memoRepo.GetByOwner(ctx, owner)
}

// SearchMemos filters the owner's memos by a case insensitive match on
// title or company name
func (s *MemoSynthesizer) SearchMemos(ctx context.Context, owner valueobjects.Owner, query string) ([]*aggregates.Memo, error) {
	memos, err := s.memoRepo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return memos, nil
	}
	var matched []*aggregates.Memo
	for _, m := range memos {
		if strings.Contains(strings.ToLower(m.Title()), query) ||
			strings.Contains(strings.ToLower(m.CompanyName()), query) {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// StartReview moves a completed memo into review
func (s *MemoSynthesizer) StartReview(ctx context.Context, owner valueobjects.Owner, id valueobjects.MemoID) error {
	return s.review(ctx, owner, id, (*aggregates.Memo).StartReview)
}

// ApproveMemo approves a memo under review
func (s *MemoSynthesizer) ApproveMemo(ctx context.Context, owner valueobjects.Owner, id valueobjects.MemoID) error {
	return s.review(ctx, owner, id, (*aggregates.Memo).Approve)
}

// RejectMemo rejects a memo under review
func (s *MemoSynthesizer) RejectMemo(ctx context.Context, owner valueobjects.Owner, id valueobjects.MemoID) error {
	return s.review(ctx, owner, id, (*aggregates.Memo).Reject)
}

// DeleteMemo removes a memo and its section tree
func (s *MemoSynthesizer) DeleteMemo(ctx context.Context, owner valueobjects.Owner, id valueobjects.MemoID) error {
	if _, err := s.GetMemo(ctx, owner, id); err != nil {
		return err
	}
	return s.memoRepo.Delete(ctx, id)
}

func (s *MemoSynthesizer) review(ctx context.Context, owner valueobjects.Owner, id valueobjects.MemoID, fn func(*aggregates.Memo) error) error {
	memo, err := s.GetMemo(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := fn(memo); err != nil {
		return err
	}
	return s.memoRepo.Save(ctx, memo)
}

func (s *MemoSynthesizer) publish(event events.DomainEvent) {
	if err := s.publisher.Publish(context.Background(), event); err != nil {
		s.logger.Warn("publishing domain event",
			zap.String("eventType", event.EventType()), zap.Error(err))
	}
}

func stage1Prompt(companyName string, sources []*entities.DataSource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an investment memo about %s from the materials below. ", companyName)
	b.WriteString("Structure the memo with exactly these markdown headings, in order:\n")
	for _, t := range aggregates.SectionTaxonomy() {
		fmt.Fprintf(&b, "## %s\n", sectionTitles[t])
	}
	b.WriteString("\nMaterials:\n")
	for _, src := range sources {
		fmt.Fprintf(&b, "\n--- %s (%s, confidence %.2f) ---\n%s\n",
			src.Name(), src.Type(), src.ConfidenceScore(), src.Content())
	}
	return b.String()
}

func stage2SectionPrompt(section *aggregates.Section, preferences map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the %q section of an investment memo for a partner audience. ", section.Title())
	b.WriteString("Tighten the prose, lead with the conclusion, keep all figures.")
	if len(preferences) > 0 {
		b.WriteString(" Apply these preferences:")
		for k, v := range preferences {
			fmt.Fprintf(&b, " %s=%s;", k, v)
		}
	}
	fmt.Fprintf(&b, "\n\n%s", section.Content())
	return b.String()
}

// extractSection pulls one heading's body out of a combined synthesis. When
// the model did not emit the heading the whole synthesis is used as fallback
// so the section is never empty.
func extractSection(synthesis, heading string) string {
	marker := "## " + heading
	idx := strings.Index(synthesis, marker)
	if idx < 0 {
		return synthesis
	}
	body := synthesis[idx+len(marker):]
	if next := strings.Index(body, "\n## "); next >= 0 {
		body = body[:next]
	}
	return strings.TrimSpace(body)
}

func averageConfidence(sources []*entities.DataSource) float64 {
	total := 0.0
	counted := 0
	for _, src := range sources {
		if src.ConfidenceScore() > 0 {
			total += src.ConfidenceScore()
			counted++
		}
	}
	if counted == 0 {
		return 0.75
	}
	return total / float64(counted)
}
