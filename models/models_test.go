package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Organization tests
func TestNewOrganization(t *testing.T) {
	t.Run("optional fields left unset when empty", func(t *testing.T) {
		org := NewOrganization("Acme", "", "")

		assert.Empty(t, org.ID)
		assert.Equal(t, "Acme", org.Name)
		assert.Nil(t, org.LegalName)
		assert.Nil(t, org.TaxID)

		data, err := json.Marshal(org)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "legal_name")
		assert.NotContains(t, string(data), "tax_id")
	})

	t.Run("optional fields set", func(t *testing.T) {
		org := NewOrganization("Acme", "Acme S.A.S.", "900123")

		require.NotNil(t, org.LegalName)
		require.NotNil(t, org.TaxID)
		assert.Equal(t, "Acme S.A.S.", *org.LegalName)
		assert.Equal(t, "900123", *org.TaxID)
	})
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "organization", Organization{}.TableName())
	assert.Equal(t, "app_users", Profile{}.TableName())
	assert.Equal(t, "pipefy_events", Event{}.TableName())
	assert.Equal(t, "pipe_organizations", PipeMapping{}.TableName())
}

// Profile tests
func TestNewFallbackProfile(t *testing.T) {
	id := &Identity{
		UserID:   "user-1",
		Email:    "ana@example.com",
		Metadata: map[string]interface{}{"name": "Ana"},
	}

	p := NewFallbackProfile(id)

	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, RoleUnprovisioned, p.Role)
	assert.False(t, p.Provisioned)
	assert.Nil(t, p.OrganizationID)
	assert.False(t, p.IsAdmin())
	assert.Empty(t, p.OrganizationName())
}

func TestIdentityDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		identity *Identity
		want     string
	}{
		{name: "nil identity", identity: nil, want: ""},
		{name: "no metadata", identity: &Identity{UserID: "u"}, want: ""},
		{name: "non-string name", identity: &Identity{Metadata: map[string]interface{}{"name": 7}}, want: ""},
		{name: "name present", identity: &Identity{Metadata: map[string]interface{}{"name": "Ana"}}, want: "Ana"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.identity.DisplayName())
		})
	}
}

func TestProfileBelongsTo(t *testing.T) {
	orgID := "6f1c1d2e-8a4b-4c3d-9e5f-0a1b2c3d4e5f"
	p := &Profile{ID: "user-1", Role: RoleMember, OrganizationID: &orgID, Organization: &Organization{ID: orgID, Name: "Acme"}}

	assert.True(t, p.BelongsTo(orgID))
	assert.False(t, p.BelongsTo("00000000-0000-0000-0000-000000000000"))
	assert.Equal(t, "Acme", p.OrganizationName())

	assert.False(t, (&Profile{}).BelongsTo(orgID))
}

func TestProfileIsAdmin(t *testing.T) {
	tests := []struct {
		role UserRole
		want bool
	}{
		{RoleAdmin, true},
		{RoleMember, false},
		{RoleViewer, false},
		{RoleUnprovisioned, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, (&Profile{Role: tt.role}).IsAdmin())
		})
	}
}

// Event tests
func TestNewEvent(t *testing.T) {
	t.Run("card and pipe set", func(t *testing.T) {
		e := NewEvent("org-1", "card.move", json.RawMessage(`{"a":1}`), "9001", "301")

		require.NotNil(t, e.CardID)
		require.NotNil(t, e.PipeID)
		assert.Equal(t, "9001", *e.CardID)
		assert.Equal(t, "301", *e.PipeID)
		assert.JSONEq(t, `{"a":1}`, string(e.RawPayload))
	})

	t.Run("empty card and pipe left unset", func(t *testing.T) {
		e := NewEvent("org-1", EventTypeCardDetailsFetched, json.RawMessage(`{}`), "", "")

		assert.Nil(t, e.CardID)
		assert.Nil(t, e.PipeID)
		assert.Equal(t, "card_details_fetched", e.EventType)
	})
}

// Webhook tests
func TestFlexibleIDUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    FlexibleID
		wantErr bool
	}{
		{name: "string", input: `"9001"`, want: "9001"},
		{name: "integer", input: `9001`, want: "9001"},
		{name: "large integer keeps precision", input: `300123456789012345`, want: "300123456789012345"},
		{name: "null", input: `null`, want: ""},
		{name: "object", input: `{"id":1}`, wantErr: true},
		{name: "boolean", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id FlexibleID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestFlexibleIDMarshalsAsString(t *testing.T) {
	data, err := json.Marshal(PhaseRef{ID: "42", Name: "Doing"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42","name":"Doing"}`, string(data))
}

func TestPipefyWebhookPayloadAccessors(t *testing.T) {
	t.Run("card with pipe", func(t *testing.T) {
		var p PipefyWebhookPayload
		require.NoError(t, json.Unmarshal([]byte(`{"data":{"action":"card.move","card":{"id":9001,"pipe":{"id":301}}}}`), &p))

		assert.Equal(t, "9001", p.CardID())
		assert.Equal(t, "301", p.PipeID())
	})

	t.Run("no card", func(t *testing.T) {
		var p PipefyWebhookPayload
		require.NoError(t, json.Unmarshal([]byte(`{"data":{"action":"pipe.update"}}`), &p))

		assert.Empty(t, p.CardID())
		assert.Empty(t, p.PipeID())
	})

	t.Run("missing data", func(t *testing.T) {
		p := &PipefyWebhookPayload{}
		assert.Empty(t, p.CardID())
		assert.Empty(t, p.PipeID())
	})
}
