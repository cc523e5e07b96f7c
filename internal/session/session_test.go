package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tasksphere/sphere-client/internal/api"
	"github.com/tasksphere/sphere-client/internal/sphertest"
	"github.com/tasksphere/sphere-client/internal/store"
)

type SessionTestSuite struct {
	suite.Suite
	server *sphertest.Server
	store  *store.Store
	client *api.Client
	ctrl   *Controller
}

func (suite *SessionTestSuite) SetupTest() {
	suite.server = sphertest.New()
	var err error
	suite.store, err = store.OpenMemory()
	suite.Require().NoError(err)
	suite.client = api.NewClient(suite.server.URL(), suite.store)
	suite.ctrl = NewController(suite.client, suite.store)
}

func (suite *SessionTestSuite) TearDownTest() {
	suite.ctrl.Logout("manual")
	suite.store.Teardown()
	suite.server.Close()
}

func (suite *SessionTestSuite) TestLoginTransitionsToAuthenticated() {
	suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")

	var transitions []State
	suite.ctrl.OnStateChange(func(s State, reason string) {
		transitions = append(transitions, s)
	})

	user, err := suite.ctrl.Login(context.Background(), "ada@example.com", "Sphere123")
	suite.Require().NoError(err)
	suite.Equal("Ada", user.Name)
	suite.Equal(StateAuthenticated, suite.ctrl.State())
	suite.Equal([]State{StateAuthenticated}, transitions)

	access, refresh := suite.store.Tokens()
	suite.NotEmpty(access)
	suite.NotEmpty(refresh)
}

func (suite *SessionTestSuite) TestLoginBadCredentials() {
	suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")

	_, err := suite.ctrl.Login(context.Background(), "ada@example.com", "wrong")
	suite.Error(err)
	suite.Equal(StateAnonymous, suite.ctrl.State())
}

func (suite *SessionTestSuite) TestRegisterEnforcesPasswordPolicy() {
	_, err := suite.ctrl.Register(context.Background(), "new@example.com", "weak", "New")
	suite.Error(err)
	// The policy failure never reaches the transport.
	suite.Equal(StateAnonymous, suite.ctrl.State())

	user, err := suite.ctrl.Register(context.Background(), "new@example.com", "Str0ngPass", "New")
	suite.Require().NoError(err)
	suite.Equal("new@example.com", user.Email)
	suite.Equal(StateAuthenticated, suite.ctrl.State())
}

func (suite *SessionTestSuite) TestHydrateWithValidTokens() {
	_, access, refresh := suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")
	suite.Require().NoError(suite.store.SetTokens(access, refresh))

	suite.Require().NoError(suite.ctrl.Hydrate(context.Background()))
	suite.Equal(StateAuthenticated, suite.ctrl.State())
	suite.Equal("Ada", suite.ctrl.User().Name)
	// Valid and not near expiry: no refresh happened.
	suite.Equal(0, suite.server.RefreshCalls())
}

func (suite *SessionTestSuite) TestHydrateRefreshesExpiredAccessToken() {
	suite.server.TokenTTL = -time.Minute
	_, access, refresh := suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")
	suite.server.TokenTTL = time.Hour
	suite.Require().NoError(suite.store.SetTokens(access, refresh))

	suite.Require().NoError(suite.ctrl.Hydrate(context.Background()))
	suite.Equal(StateAuthenticated, suite.ctrl.State())
	suite.Equal(1, suite.server.RefreshCalls())

	newAccess, _ := suite.store.Tokens()
	suite.NotEqual(access, newAccess)
}

func (suite *SessionTestSuite) TestHydrateRefreshesProactivelyNearExpiry() {
	suite.server.TokenTTL = 90 * time.Second // inside the 2 minute window
	_, access, refresh := suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")
	suite.server.TokenTTL = time.Hour
	suite.Require().NoError(suite.store.SetTokens(access, refresh))

	suite.Require().NoError(suite.ctrl.Hydrate(context.Background()))
	suite.Equal(StateAuthenticated, suite.ctrl.State())
	suite.Equal(1, suite.server.RefreshCalls())
}

func (suite *SessionTestSuite) TestHydrateWithoutTokensStaysAnonymous() {
	suite.Require().NoError(suite.ctrl.Hydrate(context.Background()))
	suite.Equal(StateAnonymous, suite.ctrl.State())
}

func (suite *SessionTestSuite) TestManualLogoutClearsSavedState() {
	suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")
	_, err := suite.ctrl.Login(context.Background(), "ada@example.com", "Sphere123")
	suite.Require().NoError(err)

	suite.store.Set(store.KeySelectedList, "7")
	suite.ctrl.SaveSessionState(SessionHint{ListID: 7, TaskID: 42})

	suite.ctrl.Logout("manual")

	suite.Equal(StateAnonymous, suite.ctrl.State())
	access, refresh := suite.store.Tokens()
	suite.Empty(access)
	suite.Empty(refresh)
	_, err = suite.store.Get(store.KeySelectedList)
	suite.ErrorIs(err, store.ErrNotFound)
	_, ok := suite.ctrl.RestoreSessionState()
	suite.False(ok)
}

func (suite *SessionTestSuite) TestExpiredLogoutKeepsSelectedList() {
	suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")
	_, err := suite.ctrl.Login(context.Background(), "ada@example.com", "Sphere123")
	suite.Require().NoError(err)
	suite.store.Set(store.KeySelectedList, "7")

	suite.ctrl.Logout("expired")

	v, err := suite.store.Get(store.KeySelectedList)
	suite.NoError(err)
	suite.Equal("7", v)
}

func (suite *SessionTestSuite) TestLogoutIsOneShot() {
	suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")
	_, err := suite.ctrl.Login(context.Background(), "ada@example.com", "Sphere123")
	suite.Require().NoError(err)

	var reasons []string
	suite.ctrl.OnStateChange(func(s State, reason string) {
		if s == StateAnonymous {
			reasons = append(reasons, reason)
		}
	})

	suite.ctrl.Logout("expired")
	suite.ctrl.Logout("expired")
	suite.Equal([]string{"expired"}, reasons)
}

func (suite *SessionTestSuite) TestSessionHintRoundTrip() {
	suite.ctrl.SaveSessionState(SessionHint{ListID: 3, TaskID: 11})
	hint, ok := suite.ctrl.RestoreSessionState()
	suite.True(ok)
	suite.Equal(uint64(3), hint.ListID)
	suite.Equal(uint64(11), hint.TaskID)

	// One-shot: a second restore finds nothing.
	_, ok = suite.ctrl.RestoreSessionState()
	suite.False(ok)
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
