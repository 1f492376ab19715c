package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/models"
)

func newZendeskTestProvider(t *testing.T, handler http.Handler) *ZendeskProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewZendeskBasicProvider(server.URL, "agent@acme.test", "api-token", common.GetLogger())
}

func TestZendeskCreateTicket_EmbedsOwnerMarker(t *testing.T) {
	var gotBody map[string]interface{}
	provider := newZendeskTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/api/v2/tickets.json", r.URL.Path)

		// Static tokens use the email/token basic auth convention.
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "agent@acme.test/token", user)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"ticket":{"id":101}}`)
	}))

	result, err := provider.CreateTicket(context.Background(), &models.TicketInput{
		OwnerID:     testOwnerID,
		DisplayName: testOwnerName,
		Summary:     "Login broken",
		Description: "Cannot sign in.",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "101", result.TicketID)

	ticket := gotBody["ticket"].(map[string]interface{})
	comment := ticket["comment"].(map[string]interface{})
	assert.Equal(t, testOwnerID, ExtractOwner(comment["body"].(string)))
}

func TestZendeskGetTicketUnguarded_FirstCommentIsDescription(t *testing.T) {
	provider := newZendeskTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/tickets/101.json":
			fmt.Fprint(w, `{"ticket":{"id":101,"subject":"Login broken","description":"stale copy","status":"open"}}`)
		case "/api/v2/tickets/101/comments.json":
			payload := map[string]interface{}{
				"comments": []map[string]interface{}{
					{
						"id":         1,
						"author_id":  55,
						"body":       EmbedOwner("Cannot sign in.", testOwnerID, testOwnerName),
						"created_at": "2026-08-30T10:00:00Z",
					},
					{
						"id":         2,
						"author_id":  77,
						"html_body":  "<p>Please try <strong>resetting</strong> your password.</p>",
						"created_at": "2026-08-30T11:00:00Z",
					},
				},
			}
			require.NoError(t, json.NewEncoder(w).Encode(payload))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	ticket, owner, err := provider.GetTicketUnguarded(context.Background(), "101")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, testOwnerID, owner)
	assert.Equal(t, "Cannot sign in.", ticket.Description)
	assert.Equal(t, models.StatusCategoryIndeterminate, ticket.StatusCategory)

	// The description comment is not repeated in the comment list, and the
	// agent's HTML body arrives converted to markdown.
	require.Len(t, ticket.Comments, 1)
	assert.True(t, ticket.Comments[0].Staff)
	assert.Contains(t, ticket.Comments[0].Body, "**resetting**")
}

func TestZendeskGetTicket_NotFound(t *testing.T) {
	provider := newZendeskTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"RecordNotFound"}`, http.StatusNotFound)
	}))

	ticket, err := provider.GetTicket(context.Background(), "999", testOwnerID)
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestZendeskTransitionTicket_Unsupported(t *testing.T) {
	provider := newZendeskTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("transition must not reach the API")
	}))

	supported, err := provider.TransitionTicket(context.Background(), "101", "solved")
	assert.NoError(t, err)
	assert.False(t, supported)
}

func TestStripHTMLTags(t *testing.T) {
	assert.Equal(t, "hello world", stripHTMLTags("<p>hello   <b>world</b></p>"))
	assert.Equal(t, "a & b", stripHTMLTags("a &amp; b"))
}
