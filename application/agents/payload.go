package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"analyst-backend/domain/core/entities"
	pkgerrors "analyst-backend/pkg/errors"
)

// SourceSpec names one artifact for the data ingestion agent to process.
type SourceSpec struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// DataIngestionInput asks the ingestion agent to collect and index sources.
type DataIngestionInput struct {
	CompanyName string       `json:"companyName"`
	Sources     []SourceSpec `json:"sources"`
}

// FounderVoiceInput asks the voice agent to interview a founder by phone.
type FounderVoiceInput struct {
	FounderName string `json:"founderName"`
	PhoneNumber string `json:"phoneNumber"`
	Topic       string `json:"topic"`
}

// BehavioralAssessmentInput asks the assessment agent to survey a founder.
type BehavioralAssessmentInput struct {
	FounderName string `json:"founderName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// DeepResearchInput asks the research agent to investigate a question.
type DeepResearchInput struct {
	Query string   `json:"query"`
	URLs  []string `json:"urls,omitempty"`
}

// CuratedMemoInput asks the memo agent to curate a stage 2 memo from an
// existing stage 1 memo.
type CuratedMemoInput struct {
	Stage1MemoID string            `json:"stage1MemoId"`
	Preferences  map[string]string `json:"preferences,omitempty"`
}

// Input is the tagged union of agent payloads. Exactly the variant matching
// Kind is set; every other pointer is nil. Untyped key/value maps exist only
// at the HTTP edge and are decoded into this union before dispatch.
type Input struct {
	Kind entities.AgentType

	DataIngestion        *DataIngestionInput
	FounderVoice         *FounderVoiceInput
	BehavioralAssessment *BehavioralAssessmentInput
	DeepResearch         *DeepResearchInput
	CuratedMemo          *CuratedMemoInput
}

// Validate checks that the variant matching Kind is present and carries the
// fields its agent requires. Empty input is rejected uniformly across agents.
func (in Input) Validate() error {
	switch in.Kind {
	case entities.AgentTypeDataIngestion:
		if in.DataIngestion == nil || len(in.DataIngestion.Sources) == 0 {
			return pkgerrors.NewValidation("data ingestion input requires at least one source")
		}
	case entities.AgentTypeFounderVoice:
		if in.FounderVoice == nil || strings.TrimSpace(in.FounderVoice.PhoneNumber) == "" {
			return pkgerrors.NewValidation("founder voice input requires a phone number")
		}
	case entities.AgentTypeBehavioralAssessment:
		if in.BehavioralAssessment == nil || strings.TrimSpace(in.BehavioralAssessment.Email) == "" {
			return pkgerrors.NewValidation("behavioral assessment input requires an email")
		}
	case entities.AgentTypeDeepResearch:
		if in.DeepResearch == nil || strings.TrimSpace(in.DeepResearch.Query) == "" {
			return pkgerrors.NewValidation("deep research input requires a query")
		}
	case entities.AgentTypeCuratedMemo:
		if in.CuratedMemo == nil || strings.TrimSpace(in.CuratedMemo.Stage1MemoID) == "" {
			return pkgerrors.NewValidation("curated memo input requires a stage 1 memo id")
		}
	default:
		return pkgerrors.NewValidation(fmt.Sprintf("unknown agent type: %s", in.Kind))
	}
	return nil
}

// Snapshot serializes the input for the execution record
func (in Input) Snapshot() string {
	b, err := json.Marshal(in.variant())
	if err != nil {
		return ""
	}
	return string(b)
}

func (in Input) variant() interface{} {
	switch in.Kind {
	case entities.AgentTypeDataIngestion:
		return in.DataIngestion
	case entities.AgentTypeFounderVoice:
		return in.FounderVoice
	case entities.AgentTypeBehavioralAssessment:
		return in.BehavioralAssessment
	case entities.AgentTypeDeepResearch:
		return in.DeepResearch
	case entities.AgentTypeCuratedMemo:
		return in.CuratedMemo
	}
	return nil
}

// DecodeInput builds a typed input from the untyped key/value payload
// accepted at the HTTP edge. Unknown keys are rejected by the strict decoder.
func DecodeInput(kind entities.AgentType, raw map[string]interface{}) (Input, error) {
	if !entities.IsValidAgentType(kind) {
		return Input{}, pkgerrors.NewValidation(fmt.Sprintf("unknown agent type: %s", kind))
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return Input{}, pkgerrors.NewValidation("input payload is not serializable")
	}

	in := Input{Kind: kind}
	var target interface{}
	switch kind {
	case entities.AgentTypeDataIngestion:
		in.DataIngestion = &DataIngestionInput{}
		target = in.DataIngestion
	case entities.AgentTypeFounderVoice:
		in.FounderVoice = &FounderVoiceInput{}
		target = in.FounderVoice
	case entities.AgentTypeBehavioralAssessment:
		in.BehavioralAssessment = &BehavioralAssessmentInput{}
		target = in.BehavioralAssessment
	case entities.AgentTypeDeepResearch:
		in.DeepResearch = &DeepResearchInput{}
		target = in.DeepResearch
	case entities.AgentTypeCuratedMemo:
		in.CuratedMemo = &CuratedMemoInput{}
		target = in.CuratedMemo
	}

	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return Input{}, pkgerrors.NewValidation(fmt.Sprintf("invalid %s input: %v", kind, err))
	}
	return in, nil
}

// InputFromParameters builds a dispatch input from an agent's stored
// configuration parameters. The periodic sweep uses this for redispatch.
func InputFromParameters(kind entities.AgentType, params map[string]string) (Input, error) {
	raw := make(map[string]interface{}, len(params))
	for k, v := range params {
		raw[k] = v
	}
	switch kind {
	case entities.AgentTypeDataIngestion:
		in := Input{Kind: kind, DataIngestion: &DataIngestionInput{CompanyName: params["companyName"]}}
		if url := params["url"]; url != "" {
			in.DataIngestion.Sources = []SourceSpec{{Name: params["companyName"], Type: "URL_LINK", URL: url}}
		}
		return in, nil
	case entities.AgentTypeDeepResearch:
		return Input{Kind: kind, DeepResearch: &DeepResearchInput{Query: params["query"]}}, nil
	default:
		return DecodeInput(kind, raw)
	}
}

// Output is the typed result of one agent execution.
type Output struct {
	Content    string            `json:"content"`
	Confidence float64           `json:"confidence"`
	Details    map[string]string `json:"details,omitempty"`
}

// Snapshot serializes the output for the execution record
func (out Output) Snapshot() string {
	b, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	return string(b)
}
