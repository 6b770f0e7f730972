package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ukydev/bus-tracker/internal/models"
)

func newTestUsers(t *testing.T) *MongoUserCollection {
	t.Helper()
	return &MongoUserCollection{Collection: testDatabase(t).Collection(UserCollectionName)}
}

func insertTestUser(t *testing.T, users *MongoUserCollection) models.User {
	t.Helper()
	user := models.User{
		Username:     "driver1",
		Email:        "driver1@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleDriver,
		FirstName:    "Test",
		LastName:     "Driver",
	}
	require.NoError(t, users.InsertUser(context.Background(), user))

	var inserted models.User
	require.NoError(t, users.Collection.FindOne(context.Background(), bson.M{"username": "driver1"}).Decode(&inserted))
	return inserted
}

func TestMongoUserCollection_InsertUser(t *testing.T) {
	users := newTestUsers(t)
	inserted := insertTestUser(t, users)

	assert.Equal(t, "driver1@example.com", inserted.Email)
	assert.Equal(t, models.RoleDriver, inserted.Role)
	assert.True(t, inserted.IsActive)
	assert.NotZero(t, inserted.CreatedAt)
	assert.NotZero(t, inserted.UpdatedAt)
}

func TestMongoUserCollection_Find(t *testing.T) {
	users := newTestUsers(t)
	inserted := insertTestUser(t, users)
	ctx := context.Background()

	byID, err := users.FindUserByID(ctx, inserted.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "driver1", byID.Username)

	byName, err := users.FindUserByUsername(ctx, "driver1")
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, byName.ID)

	byEmail, err := users.FindUserByEmail(ctx, "driver1@example.com")
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, byEmail.ID)

	_, err = users.FindUserByID(ctx, "invalid-id")
	assert.Error(t, err)
	_, err = users.FindUserByUsername(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := users.FindUsers(ctx, bson.M{"role": models.RoleDriver})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMongoUserCollection_UpdateAndDelete(t *testing.T) {
	users := newTestUsers(t)
	inserted := insertTestUser(t, users)
	ctx := context.Background()

	updated := inserted
	updated.FirstName = "Updated"
	require.NoError(t, users.UpdateUser(ctx, inserted.ID.Hex(), updated))

	found, err := users.FindUserByID(ctx, inserted.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Updated", found.FirstName)
	assert.True(t, found.UpdatedAt.After(inserted.UpdatedAt))

	require.NoError(t, users.UpdateLastLogin(ctx, inserted.ID.Hex()))
	found, err = users.FindUserByID(ctx, inserted.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, found.LastLogin)

	require.NoError(t, users.DeleteUser(ctx, inserted.ID.Hex()))
	_, err = users.FindUserByID(ctx, inserted.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}
