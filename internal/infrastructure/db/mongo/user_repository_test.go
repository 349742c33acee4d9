package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/99minutos/account-service/internal/core/domain"
)

func TestDocumentMapping_PreservesPendingCredentials(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	u := &domain.User{
		ID:        "u-1",
		Email:     "a@test.com",
		Name:      "Test",
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   3,
	}
	u.SetActivation("tok", now.Add(time.Hour))

	doc := toDocument(u)
	got := doc.toDomain()

	assert.Equal(t, u, got)

	// the document must not alias the caller's expiry
	*doc.ActivationTokenExpires = now
	assert.Equal(t, now.Add(time.Hour), *u.ActivationTokenExpires)
}

func TestDocumentMapping_OmitsClearedCredentials(t *testing.T) {
	u := &domain.User{ID: "u-1", Email: "a@test.com", Role: domain.RoleAdmin, IsActive: true}

	raw, err := bson.Marshal(toDocument(u))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.NotContains(t, m, "activation_token")
	assert.NotContains(t, m, "activation_token_expires")
	assert.NotContains(t, m, "reset_token")
	assert.NotContains(t, m, "reset_token_expires")
	assert.Equal(t, "admin", m["role"])
}

func TestSearchFilter(t *testing.T) {
	assert.Empty(t, searchFilter(""))

	f := searchFilter("a.b+c")
	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": `a\.b\+c`, "$options": "i"}}, or[0])
	assert.Equal(t, bson.M{"email": bson.M{"$regex": `a\.b\+c`, "$options": "i"}}, or[1])
}
