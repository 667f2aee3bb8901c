package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/savings-circle/backend/internal/api/middleware"
	"github.com/savings-circle/backend/internal/models"
	"github.com/savings-circle/backend/internal/services"
	"github.com/savings-circle/backend/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db           *gorm.DB
	groups       *services.GroupService
	participants *services.ParticipantService
	circles      *services.CircleService
	creator      *models.User
	stranger     *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb := testutil.NewDB(t)
	groups := services.NewGroupService(gdb)
	participants := services.NewParticipantService(gdb)
	return &testEnv{
		db:           gdb,
		groups:       groups,
		participants: participants,
		circles:      services.NewCircleService(gdb, groups, participants, nil, nil, services.CircleServiceOptions{}),
		creator:      testutil.CreateUser(t, gdb, testutil.Int64(100)),
		stranger:     testutil.CreateUser(t, gdb, testutil.Int64(200)),
	}
}

// app mounts every handler; as may be nil for an anonymous caller
func (e *testEnv) app(as *models.User) *fiber.App {
	app := fiber.New()
	if as != nil {
		app.Use(middleware.WithSession(middleware.Session{UserID: as.ID, Fid: as.Fid}))
	}

	gh := NewGroupHandler(e.groups, e.participants)
	ph := NewParticipantHandler(e.groups, e.participants)
	uh := NewUserHandler(e.groups, nil)
	ch := NewCircleHandler(e.circles, nil)

	app.Post("/api/groups", gh.CreateGroup)
	app.Get("/api/groups/mock-payout/:address", gh.MockPayout)
	app.Get("/api/groups/:groupId", gh.GetGroup)
	app.Patch("/api/groups/:groupId", gh.UpdateGroup)
	app.Get("/api/groups/:groupId/participants", ph.ListParticipants)
	app.Post("/api/groups/:groupId/participants", ph.CreateParticipant)
	app.Post("/api/groups/:groupId/participants/batch", ph.CreateParticipantsBatch)
	app.Patch("/api/groups/:groupId/participants", ph.UpdateParticipant)
	app.Get("/api/groups/:groupId/participants/status", ch.GetParticipantStatuses)
	app.Get("/api/groups/:groupId/circle", ch.GetCircle)
	app.Get("/api/users/search", uh.SearchUsers)
	app.Get("/api/users/:address/groups", uh.GetUserGroups)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func validationDetails(t *testing.T, body map[string]interface{}) []string {
	t.Helper()

	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected structured error, got %v", body)
	require.Equal(t, "VALIDATION_ERROR", errObj["code"])

	var fields []string
	for _, d := range errObj["details"].([]interface{}) {
		fields = append(fields, d.(map[string]interface{})["field"].(string))
	}
	return fields
}

func countRows(t *testing.T, gdb *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(model).Count(&n).Error)
	return n
}

