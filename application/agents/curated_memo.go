package agents

import (
	"context"
	"fmt"
	"strconv"

	"analyst-backend/application/appcontext"
	"analyst-backend/domain/core/aggregates"
	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// Stage2Synthesizer is the slice of the memo synthesizer this agent needs.
type Stage2Synthesizer interface {
	// SynthesizeStage2 curates a stage 2 memo from a completed stage 1 memo
	SynthesizeStage2(ctx context.Context, owner valueobjects.Owner, sourceMemoID valueobjects.MemoID, preferences map[string]string) (*aggregates.Memo, error)
}

// CuratedMemoAgent curates a completed stage 1 memo into a stage 2 memo
// shaped by the caller's preferences. It delegates the section work to the
// memo synthesizer so dispatch through the orchestrator and direct API calls
// share one synthesis path.
type CuratedMemoAgent struct {
	synthesizer Stage2Synthesizer
}

// NewCuratedMemoAgent creates a curated memo agent
func NewCuratedMemoAgent(synthesizer Stage2Synthesizer) *CuratedMemoAgent {
	return &CuratedMemoAgent{synthesizer: synthesizer}
}

// Name returns the capability name
func (a *CuratedMemoAgent) Name() string { return "curated-memo" }

// Execute curates the referenced stage 1 memo for the owner on the context
func (a *CuratedMemoAgent) Execute(ctx context.Context, input Input) (Output, error) {
	spec := input.CuratedMemo

	owner, err := appcontext.OwnerFrom(ctx)
	if err != nil {
		return Output{}, err
	}
	sourceID, err := valueobjects.ParseMemoID(spec.Stage1MemoID)
	if err != nil {
		return Output{}, err
	}

	memo, err := a.synthesizer.SynthesizeStage2(ctx, owner, sourceID, spec.Preferences)
	if err != nil {
		return Output{}, pkgerrors.Wrap(err, "curating stage 2 memo")
	}

	return Output{
		Content:    fmt.Sprintf("Curated memo %q generated for %s", memo.Title(), memo.CompanyName()),
		Confidence: 0.9,
		Details: map[string]string{
			"memoId":       memo.ID().String(),
			"sourceMemoId": sourceID.String(),
			"sectionCount": strconv.Itoa(memo.SectionCount()),
		},
	}, nil
}
