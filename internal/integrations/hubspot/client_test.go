package hubspot

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lofty-concierge/server/internal/agent/model"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	calls := []recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		rec := recorded{Method: r.Method, Path: r.URL.Path}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.Body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(Config{AccessToken: "tok", BaseURL: srv.URL, PortalLink: "https://portal"}), &calls
}

func TestCreateContact(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"101"}`))
	})

	id, err := c.CreateOrFindContact(t.Context(), "Dana Maria Reyes", "dana@example.com", "555")
	require.NoError(t, err)
	assert.Equal(t, "101", id)

	require.Len(t, *calls, 1)
	props := (*calls)[0].Body["properties"].(map[string]any)
	assert.Equal(t, "Dana", props["firstname"])
	assert.Equal(t, "Maria Reyes", props["lastname"])
	assert.Equal(t, "lead", props["lifecyclestage"])
}

func TestExistingContactConverges(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"status":"error","message":"Contact already exists. Existing ID: 4242","category":"CONFLICT"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"4242"}`))
	})

	id, err := c.CreateOrFindContact(t.Context(), "Dana", "dana@example.com", "555")
	require.NoError(t, err)
	assert.Equal(t, "4242", id)
	require.Len(t, *calls, 2)
	assert.Equal(t, http.MethodPatch, (*calls)[1].Method)
	assert.Equal(t, "/crm/v3/objects/contacts/4242", (*calls)[1].Path)
}

func TestContactErrorWithoutExistingID(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Property values were not valid"}`))
	})

	_, err := c.CreateOrFindContact(t.Context(), "Dana", "bad", "555")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid")
}

func TestCreateDealLinksContact(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"D-9"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	id, err := c.CreateDeal(t.Context(), model.DealInput{ContactID: "101", ProjectType: "Kitchen", Amount: 45000, Note: "AI quote"})
	require.NoError(t, err)
	assert.Equal(t, "D-9", id)

	require.Len(t, *calls, 2)
	props := (*calls)[0].Body["properties"].(map[string]any)
	assert.Equal(t, "45000.00", props["amount"])
	assert.Equal(t, "Kitchen Renovation", props["dealname"])
	assert.Equal(t, "/crm/v4/objects/deals/D-9/associations/contacts/101", (*calls)[1].Path)
}

func TestCreateDealSkipsLinkForNonNumericContact(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"D-1"}`))
	})

	_, err := c.CreateDeal(t.Context(), model.DealInput{ContactID: "existing_user_x", ProjectType: "Bath"})
	require.NoError(t, err)
	assert.Len(t, *calls, 1)
}

func TestFindDealByEmail(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/contacts/search"):
			_, _ = w.Write([]byte(`{"total":1,"results":[{"id":"7","properties":{"firstname":"Dana"}}]}`))
		case strings.HasSuffix(r.URL.Path, "/associations/deals"):
			_, _ = w.Write([]byte(`{"results":[{"toObjectId":9001}]}`))
		default:
			assert.Equal(t, "/crm/v3/objects/deals/9001", r.URL.Path)
			_, _ = w.Write([]byte(`{"id":"9001","properties":{"dealname":"Kitchen Renovation","dealstage":"appointmentscheduled","amount":"45000"}}`))
		}
	})

	info, err := c.FindDealByEmail(t.Context(), "dana@example.com")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "9001", info.DealID)
	assert.Equal(t, "Dana", info.FirstName)
	assert.Equal(t, "Kitchen Renovation", info.Project)
	assert.Equal(t, "45000", info.Amount)
	assert.Equal(t, "https://portal", info.Link)
}

func TestFindDealUnknownEmail(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":0,"results":[]}`))
	})

	info, err := c.FindDealByEmail(t.Context(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestNoteAndStage(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	ok, err := c.UpdateDealStage(t.Context(), "D-9", StageClosedLost)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AddNote(t.Context(), "D-9", "REJECTED: budget")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/crm/v3/objects/notes", (*calls)[1].Path)
	props := (*calls)[1].Body["properties"].(map[string]any)
	assert.Equal(t, "REJECTED: budget", props["hs_note_body"])
}

func TestSimulationMode(t *testing.T) {
	c := New(Config{})
	assert.True(t, c.Simulated())

	id, err := c.CreateOrFindContact(t.Context(), "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, simulatedContactID, id)

	ok, err := c.UpdateDealStage(t.Context(), "d", StageClosedWon)
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := c.FindDealByEmail(t.Context(), "x@y.z")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", info.Status)
}
