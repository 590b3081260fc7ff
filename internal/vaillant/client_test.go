package vaillant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSerial = "21223300202609620938071939N6"

// fakeAPI is a minimal multiMATIC backend. Responses are keyed by path.
type fakeAPI struct {
	t *testing.T

	mu        sync.Mutex
	responses map[string]string
	calls     map[string]int
	// expireOnce makes the next data request answer 401.
	expireOnce bool
	rejectAuth bool
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{
		t:     t,
		calls: make(map[string]int),
		responses: map[string]string{
			pathFacilities: `{"body":{"facilitiesList":[{"serialNumber":"` + testSerial + `","name":"Home"}]}}`,
			facilityPath(testSerial, "/system/v1/status"): `{"body":{
				"online_status":{"status":"ONLINE"},
				"firmware_update_status":{"status":"UPDATE_PENDING"}}}`,
			facilityPath(testSerial, "/systemcontrol/v1"): `{"body":{
				"configuration":{"quickmode":{"quickmode":"QM_HOTWATER_BOOST"}},
				"dhw":[{"_id":"Control_DHW","circulation":{"configuration":{"name":"Circulation","operation_mode":"AUTO"}}}]}}`,
			facilityPath(testSerial, "/rbr/v1/rooms"): `{"body":{"rooms":[
				{"roomIndex":0,"configuration":{"name":"Living","isWindowOpen":true,"childLock":false,
					"currentTemperature":20.5,"temperatureSetpoint":21,
					"devices":[{"name":"Valve","sgtin":"SG-1","deviceType":"VALVE","isBatteryLow":true,"isRadioOutOfReach":false}]}},
				{"roomIndex":1,"configuration":{"name":"Bath","isWindowOpen":false,"childLock":true,"devices":[]}}]}}`,
			facilityPath(testSerial, "/hvacstate/v1/overview"): `{"body":[{"errorMessages":[
				{"type":"STATUS","deviceName":"VC BE 246/5-3","statusCode":"F22","title":"Pressure",
				 "description":"Water pressure too low","hint":"Refill","timestamp":1545896904282}]}]}`,
		},
	}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return api, server
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.URL.Path]++

	switch r.URL.Path {
	case pathTokenNew:
		var req tokenRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		if f.rejectAuth || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"body":{"authToken":"token-1"}}`))
		return
	case pathAuthenticate:
		var req authenticateRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(f.t, "token-1", req.AuthToken)
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session", Path: "/"})
		return
	case pathLogout:
		return
	}

	if _, err := r.Cookie("JSESSIONID"); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.expireOnce {
		f.expireOnce = false
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, ok := f.responses[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write([]byte(body))
}

func (f *fakeAPI) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func newTestClient(t *testing.T, baseURL string) *Client {
	client, err := NewClient(Config{
		BaseURL:  baseURL,
		Username: "user@example.com",
		Password: "secret",
	}, zap.NewNop())
	require.NoError(t, err)
	client.now = func() time.Time { return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC) }
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{Username: "user"}, nil)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(Config{Username: "u", Password: "p"}, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, client.cfg.BaseURL)
	assert.NotEmpty(t, client.cfg.SmartphoneID)
	assert.Equal(t, defaultTimeout, client.cfg.Timeout)
	assert.Nil(t, client.System())
}

func TestClient_UpdateSystem(t *testing.T) {
	api, server := newFakeAPI(t)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.UpdateSystem(context.Background()))
	assert.Equal(t, 1, api.callCount(pathTokenNew))

	system := client.System()
	require.NotNil(t, system)
	assert.Equal(t, Facility{Serial: testSerial, Name: "Home"}, system.Facility)

	require.Len(t, system.Rooms, 2)
	living := system.Rooms[0]
	assert.Equal(t, "0", living.ID)
	assert.Equal(t, "Living", living.Name)
	assert.True(t, living.WindowOpen)
	assert.False(t, living.ChildLock)
	assert.Equal(t, 21.0, living.TargetTemperature)
	require.Len(t, living.Devices, 1)
	assert.Equal(t, &Device{SGTIN: "SG-1", Name: "Valve", DeviceType: "VALVE", BatteryLow: true}, living.Devices[0])
	assert.True(t, system.Rooms[1].ChildLock)

	require.NotNil(t, system.Circulation)
	assert.Equal(t, "Control_DHW", system.Circulation.ID)
	assert.Equal(t, QuickModeHotWaterBoost, system.Circulation.ActiveMode.CurrentMode)

	status := system.BoilerStatus
	require.NotNil(t, status)
	assert.Equal(t, "VC BE 246/5-3", status.DeviceName)
	assert.Equal(t, "F22", status.Code)
	assert.True(t, status.IsError())
	assert.True(t, status.Online)
	assert.False(t, status.UpToDate)
	assert.Equal(t, time.UnixMilli(1545896904282).UTC(), status.LastUpdate)
}

func TestClient_UpdateSystem_RenewsExpiredSession(t *testing.T) {
	api, server := newFakeAPI(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	require.NoError(t, client.UpdateSystem(ctx))

	api.mu.Lock()
	api.expireOnce = true
	api.mu.Unlock()

	require.NoError(t, client.UpdateSystem(ctx))
	assert.Equal(t, 2, api.callCount(pathTokenNew))
}

func TestClient_UpdateSystem_KeepsSnapshotOnError(t *testing.T) {
	api, server := newFakeAPI(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	require.NoError(t, client.UpdateSystem(ctx))
	before := client.System()

	api.mu.Lock()
	delete(api.responses, facilityPath(testSerial, "/rbr/v1/rooms"))
	api.mu.Unlock()

	err := client.UpdateSystem(ctx)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Same(t, before, client.System())
}

func TestClient_UpdateSystem_BadCredentials(t *testing.T) {
	api, server := newFakeAPI(t)
	api.rejectAuth = true
	client := newTestClient(t, server.URL)

	err := client.UpdateSystem(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Nil(t, client.System())
}

func TestClient_UpdateSystem_UnknownSerial(t *testing.T) {
	_, server := newFakeAPI(t)
	client, err := NewClient(Config{
		BaseURL:  server.URL,
		Username: "user@example.com",
		Password: "secret",
		Serial:   "other",
	}, zap.NewNop())
	require.NoError(t, err)

	err = client.UpdateSystem(context.Background())
	assert.ErrorIs(t, err, ErrNoFacility)
}

func TestClient_FindComponents(t *testing.T) {
	_, server := newFakeAPI(t)
	client := newTestClient(t, server.URL)

	assert.Nil(t, client.FindRoom("0"), "no snapshot yet")

	require.NoError(t, client.UpdateSystem(context.Background()))

	assert.Equal(t, "Living", client.FindRoom("0").Name)
	assert.Nil(t, client.FindRoom("7"))
	assert.NotNil(t, client.FindCirculation("Control_DHW"))
	assert.Nil(t, client.FindCirculation("other"))
	assert.NotNil(t, client.FindBoilerStatus("VC BE 246/5-3"))
	assert.Nil(t, client.FindBoilerStatus("someone else"))
}

func TestClient_Logout(t *testing.T) {
	api, server := newFakeAPI(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	require.NoError(t, client.Logout(ctx))
	assert.Equal(t, 0, api.callCount(pathLogout))

	require.NoError(t, client.Login(ctx))
	require.NoError(t, client.Logout(ctx))
	assert.Equal(t, 1, api.callCount(pathLogout))
}
