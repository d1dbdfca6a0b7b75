package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lofty-concierge/server/internal/agent/model"
	errx "github.com/lofty-concierge/server/internal/core/error"
)

type fakeTurns struct {
	inputs []model.TurnInput
	resets []string
	err    error
}

func (f *fakeTurns) HandleTurn(_ context.Context, in model.TurnInput) (*model.TurnOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &model.TurnOutput{
		ResponseText: "Reply to " + in.Text,
		SideEffects:  []string{},
		QuickReplies: []model.QuickReply{{Label: "Book a consult", Value: "book"}},
	}, nil
}

func (f *fakeTurns) Reset(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.resets = append(f.resets, id)
	return nil
}

type fakeCRM struct {
	stages   map[string]string
	notes    []string
	deal     *model.DealInfo
	contacts []string
}

func newFakeCRM() *fakeCRM { return &fakeCRM{stages: map[string]string{}} }

func (f *fakeCRM) CreateOrFindContact(_ context.Context, _, email, _ string) (string, error) {
	f.contacts = append(f.contacts, email)
	return "C-1", nil
}
func (f *fakeCRM) CreateDeal(context.Context, model.DealInput) (string, error) { return "D-1", nil }
func (f *fakeCRM) UpdateDealStage(_ context.Context, id, stage string) (bool, error) {
	f.stages[id] = stage
	return true, nil
}
func (f *fakeCRM) AddNote(_ context.Context, id, text string) (bool, error) {
	f.notes = append(f.notes, id+"|"+text)
	return true, nil
}
func (f *fakeCRM) FindDealByEmail(context.Context, string) (*model.DealInfo, error) {
	return f.deal, nil
}

type fakeDocs struct{ files []model.ClientFile }

func (f *fakeDocs) ListClientFiles(context.Context, string) ([]model.ClientFile, error) {
	return f.files, nil
}

type fakePhone struct {
	enabled bool
	sent    []string
}

func (f *fakePhone) SendSMS(_ context.Context, to, body string) (string, error) {
	f.sent = append(f.sent, to+"|"+body)
	return "SM1", nil
}
func (f *fakePhone) RenderInboundCallResponse() (string, error) {
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Dial>+15550001</Dial></Response>`, nil
}
func (f *fakePhone) Enabled() bool { return f.enabled }

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func TestChat(t *testing.T) {
	e := echo.New()
	turns := &fakeTurns{}
	h := NewHandler(turns, nil, nil, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/chat", `{"session_id":"s-1","message":"hello","platform":"dm"}`), rec)
	require.NoError(t, h.Chat(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var out model.TurnOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Reply to hello", out.ResponseText)
	assert.NotNil(t, out.SideEffects)
	assert.Len(t, out.QuickReplies, 1)
	assert.Equal(t, []model.TurnInput{{SessionID: "s-1", Text: "hello", Platform: "dm"}}, turns.inputs)
}

func TestChatStoreOutageIsRetryable(t *testing.T) {
	e := echo.New()
	h := NewHandler(&fakeTurns{err: errx.SessionUnavailable(errors.New("dial tcp: refused"))}, nil, nil, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/chat", `{"session_id":"s-1","message":"hello"}`), rec)
	require.NoError(t, h.Chat(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Retryable)
	assert.Equal(t, errx.SessionUnavailableMessage, body.Error)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestChatBadRequest(t *testing.T) {
	e := echo.New()
	h := NewHandler(&fakeTurns{err: errx.BadRequest("message is required")}, nil, nil, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/chat", `{"session_id":"s-1"}`), rec)
	require.NoError(t, h.Chat(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/v1/chat", `{"session_id":`), rec)
	require.NoError(t, h.Chat(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetSession(t *testing.T) {
	e := echo.New()
	turns := &fakeTurns{}
	h := NewHandler(turns, nil, nil, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/sessions/abc/reset", nil), rec)
	c.SetParamNames("session_id")
	c.SetParamValues("abc")
	require.NoError(t, h.ResetSession(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"abc"}, turns.resets)
}

func TestCaptureLead(t *testing.T) {
	e := echo.New()
	crm := newFakeCRM()
	h := NewHandler(&fakeTurns{}, crm, nil, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/capture-lead", `{"name":"Ana","email":" ana@example.com ","phone":"555"}`), rec)
	require.NoError(t, h.CaptureLead(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ana@example.com"}, crm.contacts)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/capture-lead", `{"name":"Ana"}`), rec)
	require.NoError(t, h.CaptureLead(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptQuote(t *testing.T) {
	e := echo.New()
	crm := newFakeCRM()
	h := NewHandler(&fakeTurns{}, crm, nil, nil, Config{WebsiteURL: "https://example.com"})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/quote/accept?deal_id=42", nil), rec)
	require.NoError(t, h.AcceptQuote(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thank You!")
	assert.Contains(t, rec.Body.String(), `href="https://example.com"`)
	assert.Equal(t, StageClosedWon, crm.stages["42"])
}

func TestAcceptQuoteWithoutDeal(t *testing.T) {
	e := echo.New()
	crm := newFakeCRM()
	h := NewHandler(&fakeTurns{}, crm, nil, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/quote/accept", nil), rec)
	require.NoError(t, h.AcceptQuote(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, crm.stages)
}

func TestRejectQuoteFlow(t *testing.T) {
	e := echo.New()
	crm := newFakeCRM()
	h := NewHandler(&fakeTurns{}, crm, nil, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/quote/reject?deal_id="+url.QueryEscape(`7"><script>`), nil), rec)
	require.NoError(t, h.RejectQuoteForm(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/quote/reject/submit"`)
	assert.NotContains(t, rec.Body.String(), "<script>")

	rec = httptest.NewRecorder()
	c = e.NewContext(formRequest("/quote/reject/submit", url.Values{"deal_id": {"7"}, "reason": {"Budget"}}), rec)
	require.NoError(t, h.RejectQuoteSubmit(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your feedback has been recorded")
	assert.Equal(t, StageClosedLost, crm.stages["7"])
	assert.Equal(t, []string{"7|REJECTED: Budget"}, crm.notes)
}

func TestPortalData(t *testing.T) {
	e := echo.New()
	crm := newFakeCRM()
	docs := &fakeDocs{files: []model.ClientFile{{ID: "f1", Name: "plan.pdf", Link: "https://drive/f1"}}}
	h := NewHandler(&fakeTurns{}, crm, docs, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/portal/get-data", `{"email":"ana@example.com"}`), rec)
	require.NoError(t, h.PortalData(c))

	var out portalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Found)
	assert.Equal(t, "No Active Deal Found", out.ProjectName)
	assert.Len(t, out.Files, 1)

	crm.deal = &model.DealInfo{DealID: "9", FirstName: "Ana", Project: "Kitchen Renovation", Status: "appointmentscheduled", Amount: "45000"}
	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/portal/get-data", `{"email":"ana@example.com"}`), rec)
	require.NoError(t, h.PortalData(c))

	out = portalResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, portalResponse{
		Found:       true,
		ClientName:  "Ana",
		ProjectName: "Kitchen Renovation",
		Status:      "appointmentscheduled",
		Amount:      "45000",
		Files:       docs.files,
	}, out)
}

func TestPortalDataNothingFound(t *testing.T) {
	e := echo.New()
	h := NewHandler(&fakeTurns{}, newFakeCRM(), nil, nil, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/portal/get-data", `{"email":"x@example.com"}`), rec)
	require.NoError(t, h.PortalData(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"found":false,"client_name":"Valued Client","project_name":"No Active Deal Found","status":"Contact Admin","files":[]}`, rec.Body.String())
}

func TestTwilioVoice(t *testing.T) {
	e := echo.New()
	h := NewHandler(&fakeTurns{}, nil, nil, &fakePhone{}, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/twilio/voice", nil), rec)
	require.NoError(t, h.TwilioVoice(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/xml")
	assert.Contains(t, rec.Body.String(), "<Dial>+15550001</Dial>")
}

func TestTwilioSMSRepliesThroughAPI(t *testing.T) {
	e := echo.New()
	turns := &fakeTurns{}
	phone := &fakePhone{enabled: true}
	h := NewHandler(turns, nil, nil, phone, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/twilio/sms", url.Values{"From": {"+15551234"}, "Body": {"hi there"}}), rec)
	require.NoError(t, h.TwilioSMS(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	require.Len(t, turns.inputs, 1)
	assert.Equal(t, "sms_+15551234", turns.inputs[0].SessionID)
	assert.Equal(t, "sms", turns.inputs[0].Platform)
	assert.Equal(t, []string{"+15551234|Reply to hi there"}, phone.sent)
}

func TestTwilioSMSInlineReply(t *testing.T) {
	e := echo.New()
	h := NewHandler(&fakeTurns{}, nil, nil, &fakePhone{enabled: false}, Config{})

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/twilio/sms", url.Values{"From": {"+1"}, "Body": {"hello"}}), rec)
	require.NoError(t, h.TwilioSMS(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Message>Reply to hello</Message>")
}

func TestServerRoutes(t *testing.T) {
	dir := t.TempDir()
	e := NewServer(NewHandler(&fakeTurns{}, nil, nil, nil, Config{QuotesDir: dir}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"active"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/v1/chat", `{"session_id":"s","message":"hey"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Reply to hey")
}
