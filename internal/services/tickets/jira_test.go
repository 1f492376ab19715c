package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/models"
)

const (
	testOwnerID   = "123456789012345678"
	testIntruder  = "987654321098765432"
	testOwnerName = "testuser"
)

func newJiraTestProvider(t *testing.T, handler http.Handler) *JiraProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewJiraBasicProvider(server.URL, "agent@acme.test", "api-token", "SUP", common.GetLogger())
}

func jiraIssueJSON(key, summary, description, statusName, categoryKey string) string {
	issue := map[string]interface{}{
		"key": key,
		"fields": map[string]interface{}{
			"summary":     summary,
			"description": description,
			"status": map[string]interface{}{
				"name":           statusName,
				"statusCategory": map[string]string{"key": categoryKey},
			},
			"comment": map[string]interface{}{"comments": []interface{}{}},
		},
	}
	data, _ := json.Marshal(issue)
	return string(data)
}

func TestJiraCreateTicket_EmbedsOwnerMarker(t *testing.T) {
	var gotBody map[string]interface{}
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/rest/api/2/issue", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"key":"SUP-42"}`)
	}))

	result, err := provider.CreateTicket(context.Background(), &models.TicketInput{
		OwnerID:     testOwnerID,
		DisplayName: testOwnerName,
		Summary:     "Printer on fire",
		Description: "It is printing fire.",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "SUP-42", result.TicketID)

	fields := gotBody["fields"].(map[string]interface{})
	assert.Equal(t, "Printer on fire", fields["summary"])
	description := fields["description"].(string)
	assert.Contains(t, description, "It is printing fire.")
	assert.Equal(t, testOwnerID, ExtractOwner(description))
}

func TestJiraCreateTicket_UpstreamFailureIsSoft(t *testing.T) {
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":{"project":"project is required"}}`, http.StatusBadRequest)
	}))

	result, err := provider.CreateTicket(context.Background(), &models.TicketInput{
		OwnerID: testOwnerID,
		Summary: "Broken",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	// The upstream error body never reaches the caller.
	assert.Equal(t, "failed to create ticket", result.Error)
}

func TestJiraListTickets_FiltersOnExtractedMarker(t *testing.T) {
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/search", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("jql"), testOwnerID)

		mine := jiraIssueJSON("SUP-1", "Mine", EmbedOwner("body", testOwnerID, ""), "Open", "new")
		theirs := jiraIssueJSON("SUP-2", "Theirs", EmbedOwner("body", testIntruder, ""), "Open", "new")
		fmt.Fprintf(w, `{"issues":[%s,%s]}`, mine, theirs)
	}))

	items, err := provider.ListTickets(context.Background(), testOwnerID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "SUP-1", items[0].ID)
	assert.Equal(t, models.StatusCategoryNew, items[0].StatusCategory)
}

func TestJiraGetTicket_OwnershipMismatchLooksLikeNotFound(t *testing.T) {
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jiraIssueJSON("SUP-1", "Mine", EmbedOwner("body", testOwnerID, ""), "Open", "new"))
	}))

	ticket, err := provider.GetTicket(context.Background(), "SUP-1", testIntruder)
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestJiraGetTicket_NotFound(t *testing.T) {
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["Issue does not exist"]}`, http.StatusNotFound)
	}))

	ticket, err := provider.GetTicket(context.Background(), "SUP-999", testOwnerID)
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestJiraGetTicketUnguarded_SanitizesAndFlagsStaff(t *testing.T) {
	body := EmbedOwner("original description", testOwnerID, testOwnerName)
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issue := map[string]interface{}{
			"key": "SUP-1",
			"fields": map[string]interface{}{
				"summary":     "Mine",
				"description": body,
				"status": map[string]interface{}{
					"name":           "In Progress",
					"statusCategory": map[string]string{"key": "indeterminate"},
				},
				"comment": map[string]interface{}{
					"comments": []map[string]interface{}{
						{
							"id":      "10001",
							"body":    EmbedOwner("my follow-up", testOwnerID, ""),
							"author":  map[string]string{"displayName": "Portal Bot"},
							"created": "2026-08-30T10:00:00.000+0000",
						},
						{
							"id":      "10002",
							"body":    "agent reply without marker",
							"author":  map[string]string{"displayName": "Support Agent"},
							"created": "2026-08-30T11:00:00.000+0000",
						},
					},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(issue))
	}))

	ticket, owner, err := provider.GetTicketUnguarded(context.Background(), "SUP-1")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, testOwnerID, owner)
	assert.Equal(t, "original description", ticket.Description)
	assert.Equal(t, models.StatusCategoryIndeterminate, ticket.StatusCategory)

	require.Len(t, ticket.Comments, 2)
	assert.False(t, ticket.Comments[0].Staff)
	assert.Equal(t, "my follow-up", ticket.Comments[0].Body)
	assert.True(t, ticket.Comments[1].Staff)
	assert.Equal(t, "agent reply without marker", ticket.Comments[1].Body)
}

func TestJiraAddComment_OwnershipGuard(t *testing.T) {
	var commented atomic.Bool
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			commented.Store(true)
			fmt.Fprint(w, `{"id":"10003"}`)
			return
		}
		fmt.Fprint(w, jiraIssueJSON("SUP-1", "Mine", EmbedOwner("body", testOwnerID, ""), "Open", "new"))
	}))

	ok, err := provider.AddComment(context.Background(), "SUP-1", &models.CommentInput{
		OwnerID: testIntruder,
		Body:    "sneaky",
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, commented.Load())

	ok, err = provider.AddComment(context.Background(), "SUP-1", &models.CommentInput{
		OwnerID: testOwnerID,
		Body:    "legit follow-up",
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, commented.Load())
}

func TestJiraTransitionTicket_MatchesByTargetStatus(t *testing.T) {
	var executed map[string]interface{}
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/issue/SUP-1/transitions", r.URL.Path)
		if r.Method == "GET" {
			fmt.Fprint(w, `{"transitions":[
				{"id":"11","name":"Start Progress","to":{"name":"In Progress"}},
				{"id":"21","name":"Resolve","to":{"name":"Done"}}
			]}`)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&executed))
		w.WriteHeader(http.StatusNoContent)
	}))

	supported, err := provider.TransitionTicket(context.Background(), "SUP-1", "done")
	require.NoError(t, err)
	assert.True(t, supported)

	transition := executed["transition"].(map[string]interface{})
	assert.Equal(t, "21", transition["id"])
}

func TestJiraTransitionTicket_NoMatchingTransition(t *testing.T) {
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"transitions":[{"id":"11","name":"Start Progress","to":{"name":"In Progress"}}]}`)
	}))

	supported, err := provider.TransitionTicket(context.Background(), "SUP-1", "Rejected")
	assert.True(t, supported)
	assert.Error(t, err)
}

func TestJiraReadsRetryOnceOnServerError(t *testing.T) {
	var calls int32
	provider := newJiraTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, jiraIssueJSON("SUP-1", "Mine", EmbedOwner("body", testOwnerID, ""), "Open", "new"))
	}))

	ticket, err := provider.GetTicket(context.Background(), "SUP-1", testOwnerID)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
