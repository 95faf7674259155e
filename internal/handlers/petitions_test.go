package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/lokniti/backend/internal/models"
	"github.com/emilythestrangee/lokniti/backend/internal/testutil"
)

func newPetition(e *env, author *models.User, goal int) *models.Petition {
	post := e.createPost(author, map[string]interface{}{
		"type":        "petition",
		"title":       "Fix the park gate",
		"description": "It has been broken for months.",
		"petition":    map[string]interface{}{"target": "Ward office", "goal": goal},
	})
	require.NotNil(e.t, post.Petition)
	return post.Petition
}

func milestoneNotifications(e *env) int64 {
	return e.count(&models.Notification{}, "message LIKE ?", "Petition '%")
}

func TestSignPetition_HalfwayMilestone(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	a := e.user("Signer A", north, models.RoleUser)
	b := e.user("Signer B", north, models.RoleUser)
	e.user("Far Away", south, models.RoleUser)
	petition := newPetition(e, author, 4)
	path := fmt.Sprintf("/api/petitions/%d/sign", petition.ID)

	w := e.do(http.MethodPost, path, a, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[models.SignResult](t, w)
	assert.Equal(t, 1, res.Signatures)
	assert.Zero(t, res.Milestone)
	assert.Zero(t, milestoneNotifications(e))

	w = e.do(http.MethodPost, path, b, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[models.SignResult](t, w)
	assert.Equal(t, 2, res.Signatures)
	assert.Equal(t, 50, res.Milestone)

	// One notification per North Delhi resident.
	assert.Equal(t, int64(3), milestoneNotifications(e))
	var n models.Notification
	require.NoError(t, e.db.Where("user_id = ? AND message LIKE ?", a.ID, "Petition '%").First(&n).Error)
	assert.Equal(t, "Petition 'Fix the park gate' reached 50% of its goal", n.Message)

	assert.Equal(t, models.PointsSignature, testutil.Reload[models.User](t, e.db, a.ID).Points)
}

func TestSignPetition_MilestonesAreExact(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	petition := newPetition(e, author, 3)
	path := fmt.Sprintf("/api/petitions/%d/sign", petition.ID)

	var hit []int
	for i := 0; i < 3; i++ {
		signer := e.user(fmt.Sprintf("Signer %d", i), north, models.RoleUser)
		w := e.do(http.MethodPost, path, signer, nil)
		require.Equal(t, http.StatusOK, w.Code)
		if m := decode[models.SignResult](t, w).Milestone; m > 0 {
			hit = append(hit, m)
		}
	}

	// A goal of 3 has no exact 50% or 75% point.
	assert.Equal(t, []int{100}, hit)
}

func TestSignPetition_DuplicateAndUnsign(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	a := e.user("Signer", north, models.RoleUser)
	b := e.user("Other", north, models.RoleUser)
	petition := newPetition(e, author, 10)
	path := fmt.Sprintf("/api/petitions/%d/sign", petition.ID)

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, path, a, nil).Code)
	w := e.do(http.MethodPost, path, a, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "You have already signed this petition", errorOf(t, w))

	got := testutil.Reload[models.Petition](t, e.db, petition.ID)
	assert.Equal(t, 1, got.Signatures)
	assert.Equal(t, int64(got.Signatures), e.count(&models.PetitionSignature{}, "petition_id = ?", petition.ID))

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, path, b, nil).Code)

	w = e.do(http.MethodDelete, path, a, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[models.SignResult](t, w).Signatures)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, path, a, nil).Code)

	got = testutil.Reload[models.Petition](t, e.db, petition.ID)
	assert.Equal(t, 0, got.Signatures)
	assert.Zero(t, e.count(&models.PetitionSignature{}, ""))
}

func TestUnsignPetition_FloorsAtZero(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	petition := newPetition(e, author, 10)

	// A signature row without a matching count, as left by legacy data.
	require.NoError(t, e.db.Create(&models.PetitionSignature{PetitionID: petition.ID, UserID: author.ID}).Error)

	w := e.do(http.MethodDelete, fmt.Sprintf("/api/petitions/%d/sign", petition.ID), author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[models.SignResult](t, w).Signatures)
}

func TestGetPetition(t *testing.T) {
	e := newEnv(t, nil)
	author := e.user("Author", north, models.RoleUser)
	outsider := e.user("Outsider", south, models.RoleUser)
	petition := newPetition(e, author, 4)

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, fmt.Sprintf("/api/petitions/%d/sign", petition.ID), author, nil).Code)

	w := e.do(http.MethodGet, fmt.Sprintf("/api/petitions/%d", petition.ID), author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[models.PetitionResult](t, w)
	assert.True(t, res.HasSigned)
	assert.Equal(t, 25.0, res.Progress)
	assert.Equal(t, 1, res.Signatures)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, fmt.Sprintf("/api/petitions/%d", petition.ID), outsider, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, fmt.Sprintf("/api/petitions/%d/sign", petition.ID), outsider, nil).Code)
}
