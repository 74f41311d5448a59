package agents

import (
	"context"
	"fmt"

	"analyst-backend/application/ports"
	pkgerrors "analyst-backend/pkg/errors"
)

const assessmentSurvey = `Please answer in your own words:
1. Describe a time you changed your mind about something fundamental to your business.
2. How do you decide what NOT to build?
3. Tell us about your most significant professional failure and what followed.
4. How do you handle disagreement inside your founding team?
5. What would make you shut this company down?`

// BehavioralAssessmentAgent delivers a structured behavioral survey to a
// founder over email (and SMS when a number is provided) and produces a
// behavioral profile from the available material.
type BehavioralAssessmentAgent struct {
	completion ports.TextCompletion
	messaging  ports.Messaging
}

// NewBehavioralAssessmentAgent creates a behavioral assessment agent
func NewBehavioralAssessmentAgent(completion ports.TextCompletion, messaging ports.Messaging) *BehavioralAssessmentAgent {
	return &BehavioralAssessmentAgent{completion: completion, messaging: messaging}
}

// Name returns the capability name
func (a *BehavioralAssessmentAgent) Name() string { return "behavioral-assessment" }

// Execute sends the survey and produces an initial behavioral profile
func (a *BehavioralAssessmentAgent) Execute(ctx context.Context, input Input) (Output, error) {
	spec := input.BehavioralAssessment

	err := a.messaging.Send(ctx, ports.Message{
		Channel:   ports.MessageChannelEmail,
		Recipient: spec.Email,
		Subject:   "Founder behavioral assessment",
		Body:      fmt.Sprintf("Hello %s,\n\n%s\n", spec.FounderName, assessmentSurvey),
	})
	if err != nil {
		return Output{}, pkgerrors.Wrap(err, "sending assessment email")
	}

	channels := "email"
	if spec.PhoneNumber != "" {
		err := a.messaging.Send(ctx, ports.Message{
			Channel:   ports.MessageChannelSMS,
			Recipient: spec.PhoneNumber,
			Body:      "Your founder behavioral assessment has been emailed to you. Please respond within 48 hours.",
		})
		if err != nil {
			return Output{}, pkgerrors.Wrap(err, "sending assessment sms")
		}
		channels = "email,sms"
	}

	prompt := fmt.Sprintf(
		"Draft a preliminary behavioral profile scaffold for founder %s. "+
			"The structured survey below has been dispatched; produce the rubric an analyst "+
			"will score responses against, covering adaptability, prioritization, resilience, "+
			"conflict handling and commitment.\n\nSurvey:\n%s",
		spec.FounderName, assessmentSurvey)
	profile, err := a.completion.Generate(ctx, prompt)
	if err != nil {
		return Output{}, pkgerrors.Wrap(err, "drafting behavioral profile")
	}

	return Output{
		Content:    profile,
		Confidence: 0.7,
		Details: map[string]string{
			"surveyChannels": channels,
			"recipient":      spec.Email,
		},
	}, nil
}
