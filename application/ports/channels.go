package ports

import "context"

// TextCompletion is the synthesis model surface. Adapters wrap a hosted
// model API; tests substitute a canned implementation.
type TextCompletion interface {
	// Generate returns a completion for the prompt
	Generate(ctx context.Context, prompt string) (string, error)

	// Embed returns a vector embedding for the text
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CallResult describes an initiated outbound call.
type CallResult struct {
	CallID   string
	Status   string
	Duration int
}

// Telephony places outbound voice calls and retrieves their transcripts.
type Telephony interface {
	// InitiateCall starts an outbound interview call to the given number
	InitiateCall(ctx context.Context, phoneNumber, topic string) (*CallResult, error)

	// Transcribe fetches the transcript for a finished call
	Transcribe(ctx context.Context, callID string) (string, error)
}

// MessageChannel identifies an outbound messaging medium.
type MessageChannel string

const (
	MessageChannelEmail MessageChannel = "email"
	MessageChannelSMS   MessageChannel = "sms"
)

// Message is one outbound notification or assessment prompt.
type Message struct {
	Channel   MessageChannel
	Recipient string
	Subject   string
	Body      string
}

// Messaging sends outbound messages over email or SMS.
type Messaging interface {
	// Send delivers the message over its channel
	Send(ctx context.Context, msg Message) error
}

// Page is the extracted text content of a fetched web page.
type Page struct {
	URL   string
	Title string
	Text  string
}

// WebFetch retrieves and extracts readable text from web pages.
type WebFetch interface {
	// Scrape fetches the URL and returns its extracted text
	Scrape(ctx context.Context, url string) (*Page, error)
}

// VectorMatch is one similarity search hit.
type VectorMatch struct {
	ID    string
	Text  string
	Score float64
}

// VectorStore indexes embedded document chunks for similarity retrieval.
type VectorStore interface {
	// Upsert stores the chunk and its embedding under the given ID
	Upsert(ctx context.Context, id, text string, embedding []float32) error

	// Search returns the limit nearest chunks to the query embedding
	Search(ctx context.Context, embedding []float32, limit int) ([]VectorMatch, error)
}
