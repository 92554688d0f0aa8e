package handlers

import (
	"net/http"
	"testing"

	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/google/uuid"
)

func TestGroupsHandlers(t *testing.T) {
	env := setupTestEnv(t)
	_, aliceToken := createTestUser(t, env.db, "alice", models.UserRoleMember)
	bob, bobToken := createTestUser(t, env.db, "bob", models.UserRoleMember)
	_, outsiderToken := createTestUser(t, env.db, "outsider", models.UserRoleMember)

	groupID := createTestGroup(t, env, aliceToken, "Bali Trip")

	t.Run("create validates name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups", map[string]any{"name": "x"}, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Group name is required")
	})

	t.Run("list shows role", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups", nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusOK)
		groups := dataList(t, decodeJSONMap(t, resp))
		if len(groups) != 1 || groups[0].(map[string]any)["role"] != "admin" {
			t.Fatalf("unexpected groups %v", groups)
		}
	})

	t.Run("get invalid id", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/not-a-uuid", nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Invalid group ID")
	})

	t.Run("get unknown group", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+uuid.NewString(), nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusNotFound)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Group not found")
	})

	t.Run("outsider is denied", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID, nil, authHeaders(outsiderToken))
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Not allowed")
	})

	t.Run("add member by email", func(t *testing.T) {
		addTestMember(t, env, aliceToken, groupID, bob)

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/members", map[string]any{"email": bob.Email}, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "User already in the group")

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/members", map[string]any{"email": "nobody@example.com"}, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusNotFound)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "User not found")
	})

	t.Run("list members", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID+"/members", nil, authHeaders(bobToken))
		assertStatus(t, resp, http.StatusOK)
		if members := dataList(t, decodeJSONMap(t, resp)); len(members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(members))
		}
	})

	t.Run("member cannot change roles", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/groups/"+groupID+"/members/"+bob.ID.String(), map[string]any{"role": "admin"}, authHeaders(bobToken))
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Not allowed")
	})

	t.Run("member cannot remove members", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/groups/"+groupID+"/members/"+bob.ID.String(), nil, authHeaders(bobToken))
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Not allowed")
	})

	t.Run("invalid role", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/groups/"+groupID+"/members/"+bob.ID.String(), map[string]any{"role": "owner"}, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Invalid role")
	})

	t.Run("admin promotes member", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/groups/"+groupID+"/members/"+bob.ID.String(), map[string]any{"role": "admin"}, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, decodeJSONMap(t, resp))["role"] != "admin" {
			t.Fatal("expected bob to be admin")
		}
	})

	t.Run("activity", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID+"/activity", nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusOK)
		body := decodeJSONMap(t, resp)
		if _, ok := body["pagination"].(map[string]any); !ok {
			t.Fatalf("expected pagination block, got %v", body)
		}
	})

	t.Run("member cannot delete group", func(t *testing.T) {
		otherID := createTestGroup(t, env, aliceToken, "Flat")
		resp := performRequest(t, env.app, http.MethodDelete, "/api/groups/"+otherID, nil, authHeaders(outsiderToken))
		assertStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	})

	t.Run("admin deletes group", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/groups/"+groupID, nil, authHeaders(bobToken))
		assertStatus(t, resp, http.StatusOK)
		resp.Body.Close()

		resp = performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID, nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusNotFound)
		resp.Body.Close()

		resp = performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID+"/members", nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusOK)
		if members := dataList(t, decodeJSONMap(t, resp)); len(members) != 0 {
			t.Fatalf("expected empty member list for deleted group, got %d", len(members))
		}
	})
}

func TestInviteLinkHandlers(t *testing.T) {
	env := setupTestEnv(t)
	alice, aliceToken := createTestUser(t, env.db, "alice", models.UserRoleMember)
	_, bobToken := createTestUser(t, env.db, "bob", models.UserRoleMember)
	_, carolToken := createTestUser(t, env.db, "carol", models.UserRoleMember)
	groupID := createTestGroup(t, env, aliceToken, "Flat")

	resp := performRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/invites", nil, authHeaders(aliceToken))
	assertStatus(t, resp, http.StatusCreated)
	invite := dataMap(t, decodeJSONMap(t, resp))
	token := invite["token"].(string)

	t.Run("non-admin cannot create invites", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/invites", nil, authHeaders(bobToken))
		assertStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	})

	t.Run("admin lists invites", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID+"/invites", nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusOK)
		if invites := dataList(t, decodeJSONMap(t, resp)); len(invites) != 1 {
			t.Fatalf("expected 1 invite, got %d", len(invites))
		}
	})

	t.Run("join once", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/invites/"+token+"/join", nil, authHeaders(bobToken))
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, decodeJSONMap(t, resp))["groupID"] != groupID {
			t.Fatal("expected membership in the group")
		}
	})

	t.Run("replay is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/invites/"+token+"/join", nil, authHeaders(carolToken))
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Invalid or expired invite")
	})

	t.Run("last admin cannot leave", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/groups/"+groupID+"/members/"+alice.ID.String(), nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "Group must keep at least one admin")
	})

	t.Run("revoke", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/invites", nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusCreated)
		inviteID := dataMap(t, decodeJSONMap(t, resp))["id"].(string)

		resp = performRequest(t, env.app, http.MethodDelete, "/api/groups/"+groupID+"/invites/"+inviteID, nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusOK)
		resp.Body.Close()

		resp = performRequest(t, env.app, http.MethodDelete, "/api/groups/"+groupID+"/invites/"+inviteID, nil, authHeaders(aliceToken))
		assertStatus(t, resp, http.StatusNotFound)
		resp.Body.Close()
	})
}
