package agents

import (
	"context"
	"fmt"

	"analyst-backend/application/ports"
	pkgerrors "analyst-backend/pkg/errors"
)

// FounderVoiceAgent interviews a founder over an outbound phone call and
// distills the transcript into an analysis of vision, clarity and conviction.
type FounderVoiceAgent struct {
	completion ports.TextCompletion
	telephony  ports.Telephony
}

// NewFounderVoiceAgent creates a founder voice agent
func NewFounderVoiceAgent(completion ports.TextCompletion, telephony ports.Telephony) *FounderVoiceAgent {
	return &FounderVoiceAgent{completion: completion, telephony: telephony}
}

// Name returns the capability name
func (a *FounderVoiceAgent) Name() string { return "founder-voice" }

// Execute places the call, transcribes it, and analyzes the transcript
func (a *FounderVoiceAgent) Execute(ctx context.Context, input Input) (Output, error) {
	spec := input.FounderVoice

	call, err := a.telephony.InitiateCall(ctx, spec.PhoneNumber, spec.Topic)
	if err != nil {
		return Output{}, pkgerrors.Wrap(err, "initiating founder call")
	}

	transcript, err := a.telephony.Transcribe(ctx, call.CallID)
	if err != nil {
		return Output{}, pkgerrors.Wrap(err, "transcribing founder call")
	}
	if transcript == "" {
		return Output{}, pkgerrors.NewExternal("call produced an empty transcript")
	}

	prompt := fmt.Sprintf(
		"You are assessing a startup founder from an interview transcript. "+
			"Founder: %s. Topic: %s.\n"+
			"Evaluate communication clarity, depth of domain knowledge, and conviction. "+
			"Quote supporting passages.\n\nTranscript:\n%s",
		spec.FounderName, spec.Topic, transcript)
	analysis, err := a.completion.Generate(ctx, prompt)
	if err != nil {
		return Output{}, pkgerrors.Wrap(err, "analyzing founder transcript")
	}

	return Output{
		Content:    analysis,
		Confidence: 0.8,
		Details: map[string]string{
			"callId":     call.CallID,
			"callStatus": call.Status,
		},
	}, nil
}
