package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hummus-exchange/farm/internal/escrow"
	"github.com/hummus-exchange/farm/internal/farm"
	"github.com/hummus-exchange/farm/internal/keeper"
	"github.com/hummus-exchange/farm/internal/vault"
	"github.com/hummus-exchange/farm/internal/voter"
)

var (
	admin      = common.HexToAddress("0x000000000000000000000000000000000000ad11")
	farmAddr   = common.HexToAddress("0x00000000000000000000000000000000000f4a11")
	voterAddr  = common.HexToAddress("0x000000000000000000000000000000000000707e")
	escrowAddr = common.HexToAddress("0x000000000000000000000000000000000000e5c0")
	hum        = common.HexToAddress("0x00000000000000000000000000000000000004b1")
	metis      = common.HexToAddress("0xDeadDeAddeAddEAddeadDEaDDEAdDeaDDeAD0000")
	sideAddr   = common.HexToAddress("0x000000000000000000000000000000000000a77a")
)

const t0 = int64(1_700_000_000)

type liveLedger struct {
	srv   *WebServer
	clock *clockwork.FakeClock
	vault *vault.Ledger
}

func newLiveServer(t *testing.T) *liveLedger {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Unix(t0, 0))
	now := uint64(t0)

	v := vault.NewLedger()
	esc, err := escrow.NewVoteEscrow(escrow.Config{Address: escrowAddr, Token: hum, Vault: v, MaxLock: 10_000})
	require.NoError(t, err)
	f, err := farm.NewFarm(farm.Config{Address: farmAddr, Admin: admin, Vault: v})
	require.NoError(t, err)
	require.NoError(t, f.Initialize(admin, farm.InitParams{
		Token: hum, Escrow: esc, TokenPerSec: sdkmath.NewInt(1_000), DilutingRepartition: 1000,
	}, now))
	require.NoError(t, f.SetVoter(admin, voterAddr))
	vt, err := voter.NewVoter(voter.Config{
		Address: voterAddr, Admin: admin, Farm: f, Escrow: esc,
		EpochLength: 1_000, VoteAllocPoints: 300, Start: now,
	})
	require.NoError(t, err)
	esc.Subscribe(f)
	esc.Subscribe(vt)
	require.NoError(t, v.Mint(hum, farmAddr, sdkmath.NewInt(1_000_000_000)))

	k, err := keeper.NewKeeper(keeper.Config{Farm: f, Escrow: esc, Voter: vt, Vault: v, Clock: clock})
	require.NoError(t, err)
	srv := NewWebServer(Config{Ledger: k, Operator: k})
	return &liveLedger{srv: srv, clock: clock, vault: v}
}

func send(t *testing.T, srv *WebServer, method, path string, payload any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewReader(raw)))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestWriteRoutesDriveTheLedger(t *testing.T) {
	l := newLiveServer(t)
	srv := l.srv

	rec, _ := send(t, srv, "POST", "/api/admin/mint", map[string]any{
		"caller": admin.Hex(), "token": lpUSDC.Hex(), "to": alice.Hex(), "amount": "1000",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := send(t, srv, "POST", "/api/admin/pools", map[string]any{
		"caller": admin.Hex(), "alloc_point": 100, "lp_token": lpUSDC.Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.EqualValues(t, 100, body["base_alloc_point"])

	rec, body = send(t, srv, "POST", "/api/pools/0/deposit", map[string]any{"account": alice.Hex(), "amount": "1000"})
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, "1000", body["amount"])

	rec, body = send(t, srv, "POST", "/api/admin/rewarders", map[string]any{
		"caller": admin.Hex(), "kind": "REWARDER", "address": sideAddr.Hex(),
		"reward_token": metis.Hex(), "lp_token": lpUSDC.Hex(), "token_per_sec": "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.Equal(t, "REWARDER", body["kind"])

	rec, _ = send(t, srv, "POST", "/api/admin/mint", map[string]any{
		"caller": admin.Hex(), "token": metis.Hex(), "to": admin.Hex(), "amount": "1000000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, body = send(t, srv, "POST", "/api/rewarders/"+sideAddr.Hex()+"/fund", map[string]any{
		"account": admin.Hex(), "amount": "1000000",
	})
	require.Equal(t, http.StatusOK, rec.Code, body)

	rec, body = send(t, srv, "PUT", "/api/admin/pools/0", map[string]any{
		"caller": admin.Hex(), "alloc_point": 100, "rewarder": sideAddr.Hex(), "overwrite": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, sideAddr, common.HexToAddress(body["rewarder"].(string)))

	l.clock.Advance(100 * time.Second)
	rec, body = send(t, srv, "POST", "/api/pools/0/claim", map[string]any{"account": alice.Hex()})
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, "100000", body["paid"])
	assert.Equal(t, int64(1_000), l.vault.BalanceOf(metis, alice).Int64())

	rec, body = send(t, srv, "GET", "/api/rewarders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
}

func TestLockAndVoteRoutes(t *testing.T) {
	l := newLiveServer(t)
	srv := l.srv

	rec, _ := send(t, srv, "POST", "/api/admin/pools", map[string]any{
		"caller": admin.Hex(), "alloc_point": 100, "lp_token": lpUSDC.Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, body := send(t, srv, "POST", "/api/admin/gauges", map[string]any{
		"caller": admin.Hex(), "gauge": farmAddr.Hex(), "lp_token": lpUSDC.Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, body)

	rec, _ = send(t, srv, "POST", "/api/admin/mint", map[string]any{
		"caller": admin.Hex(), "token": hum.Hex(), "to": alice.Hex(), "amount": "1000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, body = send(t, srv, "POST", "/api/locks", map[string]any{
		"account": alice.Hex(), "amount": "1000", "duration": 10_000,
	})
	require.Equal(t, http.StatusOK, rec.Code, body)

	rec, body = send(t, srv, "POST", "/api/votes", map[string]any{
		"account":     alice.Hex(),
		"allocations": []map[string]string{{"lp_token": lpUSDC.Hex(), "weight": "1000"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, body)

	rec, body = send(t, srv, "POST", "/api/votes", map[string]any{
		"account":     alice.Hex(),
		"allocations": []map[string]string{{"lp_token": lpUSDC.Hex(), "weight": "5000"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)

	rec, body = send(t, srv, "GET", "/api/accounts/"+alice.Hex()+"/votes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["votes"], 1)

	rec, _ = send(t, srv, "POST", "/api/locks/withdraw", map[string]any{"account": alice.Hex()})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWriteRouteErrors(t *testing.T) {
	l := newLiveServer(t)
	srv := l.srv

	rec, _ := send(t, srv, "POST", "/api/admin/pools", map[string]any{
		"caller": admin.Hex(), "alloc_point": 100, "lp_token": lpUSDC.Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name    string
		method  string
		path    string
		payload any
		want    int
	}{
		{"duplicate pool", "POST", "/api/admin/pools", map[string]any{"caller": admin.Hex(), "alloc_point": 1, "lp_token": lpUSDC.Hex()}, http.StatusConflict},
		{"not admin", "PUT", "/api/admin/emission-rate", map[string]any{"caller": alice.Hex(), "value": "5"}, http.StatusForbidden},
		{"withdraw more than staked", "POST", "/api/pools/0/withdraw", map[string]any{"account": alice.Hex(), "amount": "5"}, http.StatusUnprocessableEntity},
		{"unknown pool", "POST", "/api/pools/9/claim", map[string]any{"account": alice.Hex()}, http.StatusNotFound},
		{"bad account", "POST", "/api/pools/0/claim", map[string]any{"account": "alice"}, http.StatusBadRequest},
		{"negative amount", "POST", "/api/pools/0/deposit", map[string]any{"account": alice.Hex(), "amount": "-1"}, http.StatusBadRequest},
		{"unknown field", "POST", "/api/pools/0/claim", map[string]any{"account": alice.Hex(), "pid": 0}, http.StatusBadRequest},
		{"unknown rewarder kind", "POST", "/api/admin/rewarders", map[string]any{
			"caller": admin.Hex(), "kind": "GIFT", "address": sideAddr.Hex(), "reward_token": metis.Hex(), "lp_token": lpUSDC.Hex(),
		}, http.StatusBadRequest},
		{"unregistered rewarder", "PUT", "/api/admin/pools/0", map[string]any{
			"caller": admin.Hex(), "alloc_point": 1, "rewarder": sideAddr.Hex(), "overwrite": true,
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := send(t, srv, tt.method, tt.path, tt.payload)
			assert.Equal(t, tt.want, rec.Code, body)
			assert.Equal(t, true, body["error"])
		})
	}

	rec, _ = send(t, srv, "PUT", "/api/admin/emission-rate", map[string]any{"caller": admin.Hex(), "value": "2000"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadOnlyServerHasNoWriteRoutes(t *testing.T) {
	srv, _ := newServer(nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/pools/0/deposit", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
