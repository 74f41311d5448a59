package services_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"analyst-backend/application/services"
	"analyst-backend/domain/core/aggregates"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/domain/events"
	"analyst-backend/infrastructure/persistence/memory"
	pkgerrors "analyst-backend/pkg/errors"
	"analyst-backend/tests/fixtures"
	"analyst-backend/tests/mocks"
)

type synthesizerFixture struct {
	synthesizer *services.MemoSynthesizer
	memoRepo    *memory.MemoRepository
	sourceRepo  *memory.DataSourceRepository
	completion  *mocks.TextCompletion
	publisher   *mocks.EventRecorder
}

func newSynthesizerFixture(t *testing.T) *synthesizerFixture {
	t.Helper()
	f := &synthesizerFixture{
		memoRepo:   memory.NewMemoRepository(),
		sourceRepo: memory.NewDataSourceRepository(),
		completion: &mocks.TextCompletion{},
		publisher:  &mocks.EventRecorder{},
	}
	f.synthesizer = services.NewMemoSynthesizer(
		f.memoRepo, f.sourceRepo, f.completion, f.publisher, mocks.NopMetrics{}, zap.NewNop())
	return f
}

// structuredSynthesis fabricates a model response with every expected heading.
func structuredSynthesis() string {
	headings := []string{
		"Founder Profile", "Problem Sizing", "Differentiation",
		"Company Review", "Market Analysis", "Competitive Landscape",
		"Financial Projections", "Risk Assessment", "Recommendation",
	}
	var b strings.Builder
	for _, h := range headings {
		fmt.Fprintf(&b, "## %s\nBody for %s.\n\n", h, h)
	}
	return b.String()
}

func TestSynthesizeStage1_BuildsCompletedMemo(t *testing.T) {
	ctx := context.Background()
	f := newSynthesizerFixture(t)
	owner := fixtures.DefaultOwner()

	source := fixtures.NewDataSource().WithOwner(owner).Completed().Selected().Build()
	require.NoError(t, f.sourceRepo.Save(ctx, source))

	f.completion.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Acme") && strings.Contains(prompt, source.Content())
	})).Return(structuredSynthesis(), nil).Once()

	memo, err := f.synthesizer.SynthesizeStage1(ctx, owner, "Acme",
		[]valueobjects.DataSourceID{source.ID()})
	require.NoError(t, err)

	assert.Equal(t, "Investment Memo: Acme", memo.Title())
	assert.Equal(t, aggregates.MemoStageStage1, memo.Stage())
	assert.Equal(t, aggregates.MemoStatusCompleted, memo.Status())
	assert.True(t, memo.HasAllSections())

	section, ok := memo.Section(aggregates.SectionMarketAnalysis)
	require.True(t, ok)
	assert.Equal(t, "Body for Market Analysis.", section.Content())
	assert.Equal(t, source.ConfidenceScore(), section.Confidence())

	// Persisted, and exactly one model call for the whole memo.
	stored, err := f.memoRepo.GetByID(ctx, memo.ID())
	require.NoError(t, err)
	assert.Equal(t, aggregates.MemoStatusCompleted, stored.Status())
	f.completion.AssertExpectations(t)
	assert.Contains(t, f.publisher.TypesSeen(), events.EventTypeMemoGenerated)
}

func TestSynthesizeStage1_MemoVisibleWhileGenerating(t *testing.T) {
	ctx := context.Background()
	f := newSynthesizerFixture(t)
	owner := fixtures.DefaultOwner()

	source := fixtures.NewDataSource().WithOwner(owner).Completed().Selected().Build()
	require.NoError(t, f.sourceRepo.Save(ctx, source))

	// The memo must already be persisted, in Generating, when the model runs.
	f.completion.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			memos, err := f.memoRepo.GetByOwner(ctx, owner)
			require.NoError(t, err)
			require.Len(t, memos, 1)
			assert.Equal(t, aggregates.MemoStatusGenerating, memos[0].Status())
			assert.Equal(t, aggregates.MemoStageStage1, memos[0].Stage())
		}).
		Return(structuredSynthesis(), nil).Once()

	memo, err := f.synthesizer.SynthesizeStage1(ctx, owner, "Acme",
		[]valueobjects.DataSourceID{source.ID()})
	require.NoError(t, err)
	assert.Equal(t, aggregates.MemoStatusCompleted, memo.Status())
	f.completion.AssertExpectations(t)
}

func TestSynthesizeStage1_RequiresSourceIDs(t *testing.T) {
	f := newSynthesizerFixture(t)

	_, err := f.synthesizer.SynthesizeStage1(
		context.Background(), fixtures.DefaultOwner(), "Acme", nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestSynthesizeStage1_FiltersUnusableSources(t *testing.T) {
	ctx := context.Background()
	f := newSynthesizerFixture(t)
	owner := fixtures.DefaultOwner()

	// Completed but never selected.
	unselected := fixtures.NewDataSource().WithOwner(owner).Completed().Build()
	// Selected but still pending.
	pending := fixtures.NewDataSource().WithOwner(owner).Selected().Build()
	// Usable, but owned by someone else.
	foreign := fixtures.NewDataSource().WithOwner(fixtures.Owner("other")).Completed().Selected().Build()
	require.NoError(t, f.sourceRepo.Save(ctx, unselected))
	require.NoError(t, f.sourceRepo.Save(ctx, pending))
	require.NoError(t, f.sourceRepo.Save(ctx, foreign))

	_, err := f.synthesizer.SynthesizeStage1(ctx, owner, "Acme",
		[]valueobjects.DataSourceID{unselected.ID(), pending.ID(), foreign.ID()})

	assert.True(t, pkgerrors.IsValidation(err))
	f.completion.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSynthesizeStage2_CuratesEachSection(t *testing.T) {
	ctx := context.Background()
	f := newSynthesizerFixture(t)
	owner := fixtures.DefaultOwner()

	source := fixtures.CompletedStage1Memo(owner, "Acme")
	require.NoError(t, f.memoRepo.Save(ctx, source))

	// Nine section rewrites, two chart payloads, one risk matrix.
	f.completion.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Rewrite")
	})).Return("curated body", nil).Times(9)
	f.completion.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "chart specification")
	})).Return(`{"labels":[],"values":[]}`, nil).Times(2)
	f.completion.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "JSON matrix")
	})).Return(`[]`, nil).Once()

	memo, err := f.synthesizer.SynthesizeStage2(ctx, owner, source.ID(),
		map[string]string{"tone": "concise"})
	require.NoError(t, err)

	assert.Equal(t, aggregates.MemoStageStage2, memo.Stage())
	assert.Equal(t, aggregates.MemoStatusCompleted, memo.Status())
	assert.Equal(t, source.ID(), memo.SourceMemoID())
	assert.NotEqual(t, source.GeneratedBy(), memo.GeneratedBy())
	assert.Equal(t, "concise", memo.Preferences()["tone"])

	market, ok := memo.Section(aggregates.SectionMarketAnalysis)
	require.True(t, ok)
	assert.Equal(t, "curated body", market.Content())
	require.Len(t, market.Visualizations(), 1)
	assert.Equal(t, "chart", market.Visualizations()[0].Kind)

	risk, ok := memo.Section(aggregates.SectionRiskAssessment)
	require.True(t, ok)
	require.Len(t, risk.Visualizations(), 1)
	assert.Equal(t, "risk-matrix", risk.Visualizations()[0].Kind)

	f.completion.AssertExpectations(t)
}

func TestSynthesizeStage2_Guards(t *testing.T) {
	ctx := context.Background()
	f := newSynthesizerFixture(t)
	owner := fixtures.DefaultOwner()

	// Unknown source memo.
	_, err := f.synthesizer.SynthesizeStage2(ctx, owner, valueobjects.NewMemoID(), nil)
	assert.True(t, pkgerrors.IsNotFound(err))

	// Foreign owner.
	foreign := fixtures.CompletedStage1Memo(fixtures.Owner("other"), "Acme")
	require.NoError(t, f.memoRepo.Save(ctx, foreign))
	_, err = f.synthesizer.SynthesizeStage2(ctx, owner, foreign.ID(), nil)
	assert.True(t, pkgerrors.IsAccessDenied(err))

	// A stage 2 memo cannot be curated again.
	stage2, err := aggregates.NewStage2Memo(owner, "Curated", "Acme",
		valueobjects.NewAgentID(), valueobjects.NewMemoID(), nil)
	require.NoError(t, err)
	require.NoError(t, f.memoRepo.Save(ctx, stage2))
	_, err = f.synthesizer.SynthesizeStage2(ctx, owner, stage2.ID(), nil)
	assert.True(t, pkgerrors.IsValidation(err))

	// A still-generating stage 1 memo is not curatable.
	generating, err := aggregates.NewStage1Memo(owner, "Memo", "Acme", valueobjects.NewAgentID())
	require.NoError(t, err)
	require.NoError(t, f.memoRepo.Save(ctx, generating))
	_, err = f.synthesizer.SynthesizeStage2(ctx, owner, generating.ID(), nil)
	assert.True(t, pkgerrors.IsValidation(err))

	f.completion.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestMemoReviewWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newSynthesizerFixture(t)
	owner := fixtures.DefaultOwner()

	memo := fixtures.CompletedStage1Memo(owner, "Acme")
	require.NoError(t, f.memoRepo.Save(ctx, memo))

	require.NoError(t, f.synthesizer.StartReview(ctx, owner, memo.ID()))
	require.NoError(t, f.synthesizer.ApproveMemo(ctx, owner, memo.ID()))

	stored, err := f.synthesizer.GetMemo(ctx, owner, memo.ID())
	require.NoError(t, err)
	assert.Equal(t, aggregates.MemoStatusApproved, stored.Status())

	// Review operations are owner-scoped.
	err = f.synthesizer.StartReview(ctx, fixtures.Owner("intruder"), memo.ID())
	assert.True(t, pkgerrors.IsAccessDenied(err))
}

func TestSearchMemos(t *testing.T) {
	ctx := context.Background()
	f := newSynthesizerFixture(t)
	owner := fixtures.DefaultOwner()

	acme := fixtures.CompletedStage1Memo(owner, "Acme Robotics")
	globex := fixtures.CompletedStage1Memo(owner, "Globex")
	require.NoError(t, f.memoRepo.Save(ctx, acme))
	require.NoError(t, f.memoRepo.Save(ctx, globex))

	matched, err := f.synthesizer.SearchMemos(ctx, owner, "robotics")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, acme.ID(), matched[0].ID())

	all, err := f.synthesizer.SearchMemos(ctx, owner, "  ")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteMemo(t *testing.T) {
	ctx := context.Background()
	f := newSynthesizerFixture(t)
	owner := fixtures.DefaultOwner()

	memo := fixtures.CompletedStage1Memo(owner, "Acme")
	require.NoError(t, f.memoRepo.Save(ctx, memo))

	assert.True(t, pkgerrors.IsAccessDenied(
		f.synthesizer.DeleteMemo(ctx, fixtures.Owner("intruder"), memo.ID())))

	require.NoError(t, f.synthesizer.DeleteMemo(ctx, owner, memo.ID()))
	_, err := f.memoRepo.GetByID(ctx, memo.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}
