package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"analyst-backend/application/ports"
	pkgerrors "analyst-backend/pkg/errors"
)

// DataIngestionAgent collects raw artifacts (pasted text, uploaded documents,
// web pages), indexes them into the vector store, and produces a normalized
// summary of the collected material.
type DataIngestionAgent struct {
	completion ports.TextCompletion
	fetcher    ports.WebFetch
	vectors    ports.VectorStore
}

// NewDataIngestionAgent creates a data ingestion agent
func NewDataIngestionAgent(completion ports.TextCompletion, fetcher ports.WebFetch, vectors ports.VectorStore) *DataIngestionAgent {
	return &DataIngestionAgent{completion: completion, fetcher: fetcher, vectors: vectors}
}

// Name returns the capability name
func (a *DataIngestionAgent) Name() string { return "data-ingestion" }

// Execute fetches each source, indexes its content, and summarizes the batch
func (a *DataIngestionAgent) Execute(ctx context.Context, input Input) (Output, error) {
	spec := input.DataIngestion

	var collected []string
	indexed := 0
	for _, src := range spec.Sources {
		text, err := a.collect(ctx, src)
		if err != nil {
			return Output{}, err
		}
		if text == "" {
			continue
		}
		collected = append(collected, fmt.Sprintf("[%s] %s", src.Name, text))

		embedding, err := a.completion.Embed(ctx, text)
		if err != nil {
			return Output{}, pkgerrors.Wrap(err, fmt.Sprintf("embedding source %q", src.Name))
		}
		if err := a.vectors.Upsert(ctx, src.Name, text, embedding); err != nil {
			return Output{}, pkgerrors.Wrap(err, fmt.Sprintf("indexing source %q", src.Name))
		}
		indexed++
	}

	if len(collected) == 0 {
		return Output{}, pkgerrors.NewValidation("no source yielded any content")
	}

	prompt := fmt.Sprintf(
		"Summarize the following raw materials collected about %s for an investment analysis. "+
			"Preserve concrete figures and named facts.\n\n%s",
		spec.CompanyName, strings.Join(collected, "\n\n"))
	summary, err := a.completion.Generate(ctx, prompt)
	if err != nil {
		return Output{}, pkgerrors.Wrap(err, "summarizing collected sources")
	}

	return Output{
		Content:    summary,
		Confidence: 0.85,
		Details: map[string]string{
			"sourcesCollected": strconv.Itoa(len(collected)),
			"sourcesIndexed":   strconv.Itoa(indexed),
		},
	}, nil
}

func (a *DataIngestionAgent) collect(ctx context.Context, src SourceSpec) (string, error) {
	if src.URL != "" {
		page, err := a.fetcher.Scrape(ctx, src.URL)
		if err != nil {
			return "", pkgerrors.Wrap(err, fmt.Sprintf("fetching source %q", src.Name))
		}
		return page.Text, nil
	}
	return src.Content, nil
}
