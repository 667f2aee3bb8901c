package handlers

import (
	"bufio"
	"context"
	"math/big"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/savings-circle/backend/internal/chain"
	"github.com/savings-circle/backend/internal/circle"
	"github.com/savings-circle/backend/internal/services"
	"github.com/savings-circle/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChain struct {
	reads   circle.Reads
	members map[string]chain.MemberFacts
}

func (s stubChain) ReadCircle(_ context.Context, _ string, viewer string) (circle.Reads, error) {
	r := s.reads
	r.Viewer = viewer
	return r, nil
}

func (s stubChain) ReadMembers(context.Context, string, []string) (map[string]chain.MemberFacts, error) {
	return s.members, nil
}

func TestGetCircleUnavailableWithoutChain(t *testing.T) {
	env := newTestEnv(t)
	group := testutil.CreateGroup(t, env.db, env.creator, "0xcircle")

	status, body := doJSON(t, env.app(nil), http.MethodGet, "/api/groups/"+group.ID.String()+"/circle", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.NotEmpty(t, body["error"])
}

const circleContract = "0x2222222222222222222222222222222222222222"

func (e *testEnv) withChain(reader services.CircleChainReader) {
	e.circles = services.NewCircleService(e.db, e.groups, e.participants, reader, nil, services.CircleServiceOptions{TokenDecimals: 6})
}

func startedCircle() stubChain {
	return stubChain{reads: circle.Reads{
		OperationCounter:      big.NewInt(4),
		CurrentOperationIndex: big.NewInt(0),
		RecurringAmount:       big.NewInt(1_000_000),
		DepositFrequency:      big.NewInt(86400),
	}}
}

func TestGetCircle(t *testing.T) {
	env := newTestEnv(t)
	group := testutil.CreateGroup(t, env.db, env.creator, circleContract)
	env.withChain(startedCircle())

	status, body := doJSON(t, env.app(nil), http.MethodGet, "/api/groups/"+group.ID.String()+"/circle", nil)
	require.Equal(t, http.StatusOK, status)

	view := body["circle"].(map[string]interface{})
	assert.Equal(t, "active", view["status"])
	assert.Equal(t, float64(1), view["currentWeek"])
	assert.Equal(t, float64(4), view["totalWeeks"])
	assert.Equal(t, "1", view["recurringAmountFormatted"])
}

func TestGetCircleRejectsMalformedViewer(t *testing.T) {
	env := newTestEnv(t)
	group := testutil.CreateGroup(t, env.db, env.creator, circleContract)
	env.withChain(startedCircle())

	status, body := doJSON(t, env.app(nil), http.MethodGet, "/api/groups/"+group.ID.String()+"/circle?viewer=nothex", nil)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"viewer"}, validationDetails(t, body))
}

func TestGetCircleForGroupWithoutContract(t *testing.T) {
	env := newTestEnv(t)
	group := testutil.CreateGroup(t, env.db, env.creator, "awaiting-deploy")
	env.withChain(startedCircle())

	status, _ := doJSON(t, env.app(nil), http.MethodGet, "/api/groups/"+group.ID.String()+"/circle", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetParticipantStatusesFromStoredFlags(t *testing.T) {
	env := newTestEnv(t)
	group := testutil.CreateGroup(t, env.db, env.creator, "0xcircle")
	testutil.CreateParticipant(t, env.db, group.ID, "0x1", false, false)
	testutil.CreateParticipant(t, env.db, group.ID, "0x2", true, false)
	testutil.CreateParticipant(t, env.db, group.ID, "0x3", true, true)

	status, body := doJSON(t, env.app(nil), http.MethodGet, "/api/groups/"+group.ID.String()+"/participants/status", nil)
	require.Equal(t, http.StatusOK, status)

	got := map[string]string{}
	for _, raw := range body["statuses"].([]interface{}) {
		s := raw.(map[string]interface{})
		got[s["userAddress"].(string)] = s["status"].(string)
		assert.Equal(t, false, s["onChain"])
	}
	assert.Equal(t, map[string]string{
		"0x1": "pending",
		"0x2": "deposit_due",
		"0x3": "paid_out",
	}, got)
}

func TestStreamCircleUpdates(t *testing.T) {
	rdb, _ := testutil.NewRedis(t)
	hub := services.NewCircleEventHub(rdb, services.CircleUpdateChannel)
	defer hub.Close()

	handler := NewCircleHandler(nil, hub)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/api/circles/stream", handler.StreamCircleUpdates)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	defer func() { _ = app.ShutdownWithTimeout(time.Second) }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// The hub subscribes asynchronously, so keep publishing until the client sees data
	payload := `{"groupAddress":"0xcircle","status":"active"}`
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = rdb.Publish(context.Background(), services.CircleUpdateChannel, payload).Err()
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+ln.Addr().String()+"/api/circles/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	sawEvent := false
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err, "stream ended before data arrived")

		if strings.HasPrefix(line, "event:") {
			assert.Equal(t, "event: circle\n", line)
			sawEvent = true
		}
		if strings.HasPrefix(line, "data:") {
			assert.True(t, sawEvent)
			assert.Contains(t, line, `"0xcircle"`)
			return
		}
	}
}
