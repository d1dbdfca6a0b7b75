package model

import "context"

// DealInfo is the CRM view of a client's active project.
type DealInfo struct {
	DealID    string
	FirstName string
	Project   string
	Status    string
	Amount    string
	Link      string
}

// DealInput describes a deal to create. Amount is already normalized to a number.
type DealInput struct {
	ContactID   string
	ProjectType string
	Amount      float64
	Note        string
}

type CRM interface {
	CreateOrFindContact(ctx context.Context, name, email, phone string) (string, error)
	CreateDeal(ctx context.Context, in DealInput) (string, error)
	UpdateDealStage(ctx context.Context, dealID, stage string) (bool, error)
	AddNote(ctx context.Context, dealID, text string) (bool, error)
	// FindDealByEmail returns nil, nil when there is no contact or deal.
	FindDealByEmail(ctx context.Context, email string) (*DealInfo, error)
}

type MailingList interface {
	UpsertSubscriber(ctx context.Context, name, email, phone string) (bool, error)
}

type Telephony interface {
	// SendSMS returns the provider message id, or "" when nothing was sent.
	SendSMS(ctx context.Context, to, body string) (string, error)
	RenderInboundCallResponse() (string, error)
	Enabled() bool
}

// ClientFile is a document visible to a client in the document store.
type ClientFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
}

type DocumentStore interface {
	ListClientFiles(ctx context.Context, email string) ([]ClientFile, error)
}

// QuoteRequest carries what the renderer prints on a quote.
type QuoteRequest struct {
	ClientName  string
	ProjectType string
	Budget      string
	DealID      string
}

type QuoteRenderer interface {
	// RenderQuote writes the document and returns its path and file name.
	RenderQuote(ctx context.Context, req QuoteRequest) (path string, filename string, err error)
}

// Passage is one ranked search hit from the knowledge base.
type Passage struct {
	Text   string
	Source string
	Score  float64
}

type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}
