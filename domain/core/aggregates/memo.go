package aggregates

import (
	"fmt"
	"sort"
	"time"

	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// MemoStage distinguishes the raw synthesized memo from the curated one
type MemoStage string

const (
	MemoStageStage1 MemoStage = "STAGE_1"
	MemoStageStage2 MemoStage = "STAGE_2"
)

// MemoStatus represents the lifecycle state of a memo
type MemoStatus string

const (
	MemoStatusGenerating MemoStatus = "GENERATING"
	MemoStatusCompleted  MemoStatus = "COMPLETED"
	MemoStatusReviewing  MemoStatus = "REVIEWING"
	MemoStatusApproved   MemoStatus = "APPROVED"
	MemoStatusRejected   MemoStatus = "REJECTED"
)

// SectionType is the fixed nine-value section taxonomy every memo carries
type SectionType string

const (
	SectionFounderProfile       SectionType = "FOUNDER_PROFILE"
	SectionProblemSizing        SectionType = "PROBLEM_SIZING"
	SectionDifferentiation      SectionType = "DIFFERENTIATION"
	SectionCompanyReview        SectionType = "COMPANY_REVIEW"
	SectionMarketAnalysis       SectionType = "MARKET_ANALYSIS"
	SectionCompetitiveLandscape SectionType = "COMPETITIVE_LANDSCAPE"
	SectionFinancialProjections SectionType = "FINANCIAL_PROJECTIONS"
	SectionRiskAssessment       SectionType = "RISK_ASSESSMENT"
	SectionRecommendation       SectionType = "RECOMMENDATION"
)

// SectionTaxonomy lists all section types in their canonical memo order.
func SectionTaxonomy() []SectionType {
	return []SectionType{
		SectionFounderProfile,
		SectionProblemSizing,
		SectionDifferentiation,
		SectionCompanyReview,
		SectionMarketAnalysis,
		SectionCompetitiveLandscape,
		SectionFinancialProjections,
		SectionRiskAssessment,
		SectionRecommendation,
	}
}

// IsValidSectionType checks membership in the fixed taxonomy
func IsValidSectionType(t SectionType) bool {
	for _, s := range SectionTaxonomy() {
		if s == t {
			return true
		}
	}
	return false
}

// DefaultSectionWeight is applied when a section is written without an
// explicit weight.
const DefaultSectionWeight = 1.0

// Subsection is an ordered child of a section
type Subsection struct {
	Title      string
	Content    string
	OrderIndex int
}

// Visualization is a chart or diagram attached to a section
type Visualization struct {
	Kind       string
	Title      string
	Payload    string
	OrderIndex int
}

// Section is an owned child of a memo, keyed inside the aggregate by its
// type so writes are idempotent.
type Section struct {
	sectionType    SectionType
	title          string
	content        string
	weight         float64
	confidence     float64
	orderIndex     int
	subsections    []Subsection
	visualizations []Visualization
	updatedAt      time.Time
}

// Type returns the section's taxonomy type
func (s *Section) Type() SectionType { return s.sectionType }

// Title returns the section title
func (s *Section) Title() string { return s.title }

// Content returns the section body
func (s *Section) Content() string { return s.content }

// Weight returns the section's relative weight in the memo
func (s *Section) Weight() float64 { return s.weight }

// Confidence returns the synthesis confidence for this section
func (s *Section) Confidence() float64 { return s.confidence }

// OrderIndex returns the section's position in the canonical order
func (s *Section) OrderIndex() int { return s.orderIndex }

// Subsections returns a copy of the ordered subsections
func (s *Section) Subsections() []Subsection {
	out := make([]Subsection, len(s.subsections))
	copy(out, s.subsections)
	return out
}

// Visualizations returns a copy of the ordered visualizations
func (s *Section) Visualizations() []Visualization {
	out := make([]Visualization, len(s.visualizations))
	copy(out, s.visualizations)
	return out
}

// UpdatedAt returns when the section was last written
func (s *Section) UpdatedAt() time.Time { return s.updatedAt }

// Memo is the aggregate root for a two-stage synthesized document. Sections,
// subsections and visualizations are owned children: they load and delete
// with the memo and are never independently addressable.
type Memo struct {
	id           valueobjects.MemoID
	version      int
	title        string
	companyName  string
	stage        MemoStage
	status       MemoStatus
	sections     map[SectionType]*Section
	preferences  map[string]string
	generatedBy  valueobjects.AgentID
	sourceMemoID valueobjects.MemoID // Stage 2 only: id-only back-reference
	owner        valueobjects.Owner
	createdAt    time.Time
	updatedAt    time.Time
}

// NewStage1Memo creates a generating Stage-1 memo
func NewStage1Memo(owner valueobjects.Owner, title, companyName string, generatedBy valueobjects.AgentID) (*Memo, error) {
	return newMemo(owner, title, companyName, MemoStageStage1, generatedBy, valueobjects.MemoID{}, nil)
}

// NewStage2Memo creates a generating Stage-2 memo referencing its Stage-1
// source by id only
func NewStage2Memo(
	owner valueobjects.Owner,
	title, companyName string,
	generatedBy valueobjects.AgentID,
	sourceMemoID valueobjects.MemoID,
	preferences map[string]string,
) (*Memo, error) {
	if sourceMemoID.IsEmpty() {
		return nil, pkgerrors.NewValidation("stage 2 memo requires a source memo ID")
	}
	return newMemo(owner, title, companyName, MemoStageStage2, generatedBy, sourceMemoID, preferences)
}

func newMemo(
	owner valueobjects.Owner,
	title, companyName string,
	stage MemoStage,
	generatedBy valueobjects.AgentID,
	sourceMemoID valueobjects.MemoID,
	preferences map[string]string,
) (*Memo, error) {
	if owner.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner cannot be empty")
	}
	if title == "" {
		return nil, pkgerrors.NewValidation("memo title cannot be empty")
	}
	if preferences == nil {
		preferences = make(map[string]string)
	}

	now := time.Now()
	return &Memo{
		id:           valueobjects.NewMemoID(),
		version:      1,
		title:        title,
		companyName:  companyName,
		stage:        stage,
		status:       MemoStatusGenerating,
		sections:     make(map[SectionType]*Section),
		preferences:  preferences,
		generatedBy:  generatedBy,
		sourceMemoID: sourceMemoID,
		owner:        owner,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructMemo rebuilds a memo and its owned sections from repository data
func ReconstructMemo(
	id valueobjects.MemoID,
	owner valueobjects.Owner,
	version int,
	title, companyName string,
	stage MemoStage,
	status MemoStatus,
	generatedBy valueobjects.AgentID,
	sourceMemoID valueobjects.MemoID,
	preferences map[string]string,
	createdAt, updatedAt time.Time,
) (*Memo, error) {
	if owner.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner cannot be empty")
	}
	if preferences == nil {
		preferences = make(map[string]string)
	}

	return &Memo{
		id:           id,
		version:      version,
		title:        title,
		companyName:  companyName,
		stage:        stage,
		status:       status,
		sections:     make(map[SectionType]*Section),
		preferences:  preferences,
		generatedBy:  generatedBy,
		sourceMemoID: sourceMemoID,
		owner:        owner,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}, nil
}

// ID returns the memo's unique identifier
func (m *Memo) ID() valueobjects.MemoID { return m.id }

// Version returns the memo's version counter
func (m *Memo) Version() int { return m.version }

// Title returns the memo title
func (m *Memo) Title() string { return m.title }

// CompanyName returns the subject company
func (m *Memo) CompanyName() string { return m.companyName }

// Stage returns Stage1 or Stage2
func (m *Memo) Stage() MemoStage { return m.stage }

// Status returns the memo lifecycle state
func (m *Memo) Status() MemoStatus { return m.status }

// GeneratedBy returns the id of the agent that produced the memo
func (m *Memo) GeneratedBy() valueobjects.AgentID { return m.generatedBy }

// SourceMemoID returns the Stage-1 source for a Stage-2 memo (empty otherwise)
func (m *Memo) SourceMemoID() valueobjects.MemoID { return m.sourceMemoID }

// Owner returns the owning user
func (m *Memo) Owner() valueobjects.Owner { return m.owner }

// Preferences returns a copy of the synthesis preferences
func (m *Memo) Preferences() map[string]string {
	p := make(map[string]string, len(m.preferences))
	for k, v := range m.preferences {
		p[k] = v
	}
	return p
}

// CreatedAt returns the creation timestamp
func (m *Memo) CreatedAt() time.Time { return m.createdAt }

// UpdatedAt returns the last modification timestamp
func (m *Memo) UpdatedAt() time.Time { return m.updatedAt }

// BelongsTo checks whether the memo is owned by the given user
func (m *Memo) BelongsTo(owner valueobjects.Owner) bool { return m.owner.Equals(owner) }

// Section returns the section of the given type, if written
func (m *Memo) Section(t SectionType) (*Section, bool) {
	s, ok := m.sections[t]
	return s, ok
}

// Sections returns the written sections in canonical taxonomy order
func (m *Memo) Sections() []*Section {
	out := make([]*Section, 0, len(m.sections))
	for _, s := range m.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].orderIndex < out[j].orderIndex })
	return out
}

// SectionCount returns how many distinct sections have been written
func (m *Memo) SectionCount() int { return len(m.sections) }

// HasAllSections reports whether every taxonomy section has been written
func (m *Memo) HasAllSections() bool { return len(m.sections) == len(SectionTaxonomy()) }

// PutSection writes a section idempotently keyed by type: re-running a
// partially failed synthesis overwrites the existing section in place
// rather than duplicating it. Only valid while the memo is Generating.
func (m *Memo) PutSection(t SectionType, title, content string, confidence, weight float64) error {
	if m.status != MemoStatusGenerating {
		return pkgerrors.NewValidation(
			fmt.Sprintf("cannot write sections to a %s memo", m.status))
	}
	if !IsValidSectionType(t) {
		return pkgerrors.NewValidation(fmt.Sprintf("unknown section type: %s", t))
	}
	if confidence < 0 || confidence > 1 {
		return pkgerrors.NewValidation("section confidence must be between 0 and 1")
	}
	if weight <= 0 {
		weight = DefaultSectionWeight
	}

	if existing, ok := m.sections[t]; ok {
		existing.title = title
		existing.content = content
		existing.confidence = confidence
		existing.weight = weight
		existing.updatedAt = time.Now()
	} else {
		m.sections[t] = &Section{
			sectionType: t,
			title:       title,
			content:     content,
			weight:      weight,
			confidence:  confidence,
			orderIndex:  taxonomyIndex(t),
			updatedAt:   time.Now(),
		}
	}
	m.touch()
	return nil
}

// RestoreSection attaches a persisted section during reconstruction without
// status checks. It is intended for repositories only.
func (m *Memo) RestoreSection(
	t SectionType,
	title, content string,
	confidence, weight float64,
	subsections []Subsection,
	visualizations []Visualization,
	updatedAt time.Time,
) error {
	if !IsValidSectionType(t) {
		return pkgerrors.NewValidation(fmt.Sprintf("unknown section type: %s", t))
	}
	m.sections[t] = &Section{
		sectionType:    t,
		title:          title,
		content:        content,
		weight:         weight,
		confidence:     confidence,
		orderIndex:     taxonomyIndex(t),
		subsections:    subsections,
		visualizations: visualizations,
		updatedAt:      updatedAt,
	}
	return nil
}

// AddSubsection appends an ordered subsection to a written section
func (m *Memo) AddSubsection(t SectionType, title, content string) error {
	s, ok := m.sections[t]
	if !ok {
		return pkgerrors.NewValidation(fmt.Sprintf("section %s has not been written", t))
	}
	s.subsections = append(s.subsections, Subsection{
		Title:      title,
		Content:    content,
		OrderIndex: len(s.subsections),
	})
	m.touch()
	return nil
}

// PutVisualization writes a visualization on a section, idempotent by kind:
// re-running a visual pass replaces the previous chart of the same kind.
func (m *Memo) PutVisualization(t SectionType, kind, title, payload string) error {
	s, ok := m.sections[t]
	if !ok {
		return pkgerrors.NewValidation(fmt.Sprintf("section %s has not been written", t))
	}
	for i := range s.visualizations {
		if s.visualizations[i].Kind == kind {
			s.visualizations[i].Title = title
			s.visualizations[i].Payload = payload
			m.touch()
			return nil
		}
	}
	s.visualizations = append(s.visualizations, Visualization{
		Kind:       kind,
		Title:      title,
		Payload:    payload,
		OrderIndex: len(s.visualizations),
	})
	m.touch()
	return nil
}

// Complete transitions Generating -> Completed once every taxonomy section
// has been durably written
func (m *Memo) Complete() error {
	if m.status != MemoStatusGenerating {
		return pkgerrors.NewValidation(
			fmt.Sprintf("cannot complete a %s memo", m.status))
	}
	if !m.HasAllSections() {
		return pkgerrors.NewValidation(fmt.Sprintf(
			"memo has %d of %d sections", len(m.sections), len(SectionTaxonomy())))
	}
	m.status = MemoStatusCompleted
	m.version++
	m.touch()
	return nil
}

// StartReview transitions Completed -> Reviewing
func (m *Memo) StartReview() error {
	if m.status != MemoStatusCompleted {
		return pkgerrors.NewValidation(
			fmt.Sprintf("cannot review a %s memo", m.status))
	}
	m.status = MemoStatusReviewing
	m.touch()
	return nil
}

// Approve transitions Reviewing -> Approved
func (m *Memo) Approve() error {
	if m.status != MemoStatusReviewing {
		return pkgerrors.NewValidation(
			fmt.Sprintf("cannot approve a %s memo", m.status))
	}
	m.status = MemoStatusApproved
	m.touch()
	return nil
}

// Reject transitions Reviewing -> Rejected
func (m *Memo) Reject() error {
	if m.status != MemoStatusReviewing {
		return pkgerrors.NewValidation(
			fmt.Sprintf("cannot reject a %s memo", m.status))
	}
	m.status = MemoStatusRejected
	m.touch()
	return nil
}

func taxonomyIndex(t SectionType) int {
	for i, s := range SectionTaxonomy() {
		if s == t {
			return i
		}
	}
	return len(SectionTaxonomy())
}

func (m *Memo) touch() {
	m.updatedAt = time.Now()
}
