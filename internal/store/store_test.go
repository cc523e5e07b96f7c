package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
}

func (suite *StoreTestSuite) SetupTest() {
	var err error
	suite.store, err = OpenMemory()
	suite.Require().NoError(err)
}

func (suite *StoreTestSuite) TearDownTest() {
	suite.store.Teardown()
}

func (suite *StoreTestSuite) TestGetSetDelete() {
	_, err := suite.store.Get(KeySelectedList)
	suite.ErrorIs(err, ErrNotFound)

	suite.NoError(suite.store.Set(KeySelectedList, "7"))
	v, err := suite.store.Get(KeySelectedList)
	suite.NoError(err)
	suite.Equal("7", v)

	// Upsert overwrites.
	suite.NoError(suite.store.Set(KeySelectedList, "9"))
	v, _ = suite.store.Get(KeySelectedList)
	suite.Equal("9", v)

	suite.NoError(suite.store.Delete(KeySelectedList))
	_, err = suite.store.Get(KeySelectedList)
	suite.ErrorIs(err, ErrNotFound)
}

func (suite *StoreTestSuite) TestTokenPairInvariant() {
	suite.Error(suite.store.SetTokens("access-only", ""))
	suite.Error(suite.store.SetTokens("", "refresh-only"))

	suite.NoError(suite.store.SetTokens("acc", "ref"))
	access, refresh := suite.store.Tokens()
	suite.Equal("acc", access)
	suite.Equal("ref", refresh)

	suite.NoError(suite.store.ClearTokens())
	access, refresh = suite.store.Tokens()
	suite.Empty(access)
	suite.Empty(refresh)
}

func (suite *StoreTestSuite) TestSetTokensEmptyPairClears() {
	suite.NoError(suite.store.SetTokens("acc", "ref"))
	suite.NoError(suite.store.SetTokens("", ""))
	access, refresh := suite.store.Tokens()
	suite.Empty(access)
	suite.Empty(refresh)
}

func (suite *StoreTestSuite) TestTransientTTL() {
	now := time.Now()
	suite.store.now = func() time.Time { return now }

	suite.store.SetTransient(KeySavedSession, `{"list":7}`, SessionHintTTL)
	v, ok := suite.store.GetTransient(KeySavedSession)
	suite.True(ok)
	suite.Equal(`{"list":7}`, v)

	// Still alive just inside the window.
	now = now.Add(SessionHintTTL - time.Second)
	_, ok = suite.store.GetTransient(KeySavedSession)
	suite.True(ok)

	// Gone past the window.
	now = now.Add(2 * time.Second)
	_, ok = suite.store.GetTransient(KeySavedSession)
	suite.False(ok)
}

func (suite *StoreTestSuite) TestDeleteTransient() {
	suite.store.SetTransient(KeyAutoSelectList, "3", time.Minute)
	suite.store.DeleteTransient(KeyAutoSelectList)
	_, ok := suite.store.GetTransient(KeyAutoSelectList)
	suite.False(ok)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
