package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

// Operator is the write surface of the ledger. keeper.Keeper implements it.
// Callers identify themselves in the request body; admin routes are checked
// against the farm and voter admins by the ledger itself.
type Operator interface {
	Deposit(pid types.PoolID, account types.Address, amount sdkmath.Int) (types.Receipt, error)
	Withdraw(pid types.PoolID, account types.Address, amount sdkmath.Int) (types.Receipt, error)
	Claim(pid types.PoolID, account types.Address) (types.Receipt, error)
	MultiClaim(pids []types.PoolID, account types.Address) ([]types.Receipt, error)
	EmergencyWithdraw(pid types.PoolID, account types.Address) (types.Receipt, error)
	SyncFactor(pid types.PoolID, account types.Address) (types.UserPosition, error)

	CreateLock(account types.Address, amount sdkmath.Int, duration uint64) (types.EscrowLock, error)
	IncreaseLockAmount(account types.Address, amount sdkmath.Int) (types.EscrowLock, error)
	ExtendLock(account types.Address, duration uint64) (types.EscrowLock, error)
	WithdrawLock(account types.Address) (sdkmath.Int, error)

	Vote(account, lpToken types.Address, weight sdkmath.Int) ([]types.SideReceipt, error)
	VoteMany(account types.Address, allocs []types.VoteAllocation) ([]types.SideReceipt, error)

	AddPool(caller types.Address, allocPoint uint64, lpToken, rewarder types.Address) (types.PoolID, error)
	SetPool(caller types.Address, pid types.PoolID, allocPoint uint64, rewarder types.Address, overwrite bool) error
	UpdateEmissionRate(caller types.Address, tokenPerSec sdkmath.Int) error
	UpdateDilutingRepartition(caller types.Address, repartition uint64) error
	UpdateMaxBoost(caller types.Address, maxBoost uint64) error
	AddGauge(caller, gauge, lpToken, bribe types.Address) error
	SetBribe(caller, lpToken, bribe types.Address) error

	CreateRewarder(caller types.Address, p types.RewarderParams) (types.RewarderInfo, error)
	FundRewarder(funder, rewarder types.Address, amount sdkmath.Int) error
	SetRewarderRate(caller, rewarder types.Address, tokenPerSec sdkmath.Int) error
	Rewarders() []types.RewarderInfo
	Mint(caller, token, to types.Address, amount sdkmath.Int) error
}

func (ws *WebServer) setupOperatorRoutes(api *mux.Router) {
	api.HandleFunc("/pools/{pid:[0-9]+}/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/pools/{pid:[0-9]+}/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/pools/{pid:[0-9]+}/claim", ws.handleClaim).Methods("POST")
	api.HandleFunc("/pools/{pid:[0-9]+}/emergency-withdraw", ws.handleEmergencyWithdraw).Methods("POST")
	api.HandleFunc("/pools/{pid:[0-9]+}/sync-factor", ws.handleSyncFactor).Methods("POST")
	api.HandleFunc("/claims", ws.handleMultiClaim).Methods("POST")

	api.HandleFunc("/locks", ws.handleCreateLock).Methods("POST")
	api.HandleFunc("/locks/increase", ws.handleIncreaseLock).Methods("POST")
	api.HandleFunc("/locks/extend", ws.handleExtendLock).Methods("POST")
	api.HandleFunc("/locks/withdraw", ws.handleWithdrawLock).Methods("POST")

	api.HandleFunc("/votes", ws.handleVote).Methods("POST")

	api.HandleFunc("/rewarders", ws.handleGetRewarders).Methods("GET")
	api.HandleFunc("/rewarders/{address}/fund", ws.handleFundRewarder).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/pools", ws.handleAddPool).Methods("POST")
	admin.HandleFunc("/pools/{pid:[0-9]+}", ws.handleSetPool).Methods("PUT")
	admin.HandleFunc("/emission-rate", ws.handleEmissionRate).Methods("PUT")
	admin.HandleFunc("/diluting-repartition", ws.handleRepartition).Methods("PUT")
	admin.HandleFunc("/max-boost", ws.handleMaxBoost).Methods("PUT")
	admin.HandleFunc("/gauges", ws.handleAddGauge).Methods("POST")
	admin.HandleFunc("/gauges/{lpToken}/bribe", ws.handleSetBribe).Methods("PUT")
	admin.HandleFunc("/rewarders", ws.handleCreateRewarder).Methods("POST")
	admin.HandleFunc("/rewarders/{address}/rate", ws.handleRewarderRate).Methods("PUT")
	admin.HandleFunc("/mint", ws.handleMint).Methods("POST")
}

// Request bodies. Amounts are decimal strings in the token's smallest unit.

type accountRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount,omitempty"`
}

type multiClaimRequest struct {
	Account string         `json:"account"`
	PoolIDs []types.PoolID `json:"pool_ids"`
}

type lockRequest struct {
	Account  string `json:"account"`
	Amount   string `json:"amount,omitempty"`
	Duration uint64 `json:"duration,omitempty"` // seconds
}

type voteRequest struct {
	Account     string `json:"account"`
	Allocations []struct {
		LPToken string `json:"lp_token"`
		Weight  string `json:"weight"`
	} `json:"allocations"`
}

type poolRequest struct {
	Caller     string `json:"caller"`
	AllocPoint uint64 `json:"alloc_point"`
	LPToken    string `json:"lp_token,omitempty"`
	Rewarder   string `json:"rewarder,omitempty"`
	Overwrite  bool   `json:"overwrite"`
}

type paramRequest struct {
	Caller string `json:"caller"`
	Value  string `json:"value"`
}

type gaugeRequest struct {
	Caller  string `json:"caller"`
	Gauge   string `json:"gauge,omitempty"`
	LPToken string `json:"lp_token,omitempty"`
	Bribe   string `json:"bribe,omitempty"`
}

type rewarderRequest struct {
	Caller              string `json:"caller"`
	Kind                string `json:"kind"`
	Address             string `json:"address"`
	RewardToken         string `json:"reward_token,omitempty"`
	LPToken             string `json:"lp_token"`
	TokenPerSec         string `json:"token_per_sec"`
	DilutingRepartition uint64 `json:"diluting_repartition,omitempty"`
	IsNative            bool   `json:"is_native"`
}

type mintRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (ws *WebServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseAddress accepts an empty string as the zero address when optional.
func parseAddress(field, raw string, optional bool) (types.Address, error) {
	if raw == "" && optional {
		return types.ZeroAddress, nil
	}
	if !common.IsHexAddress(raw) {
		return types.ZeroAddress, fmt.Errorf("invalid %s address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(field, raw string) (sdkmath.Int, error) {
	if raw == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, err := utils.ParseInt(raw)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid %s: %w", field, err)
	}
	return v, nil
}

func (ws *WebServer) badRequest(w http.ResponseWriter, err error) {
	ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
}

// poolAccount decodes an accountRequest for a pool route.
func (ws *WebServer) poolAccount(w http.ResponseWriter, r *http.Request) (types.PoolID, types.Address, sdkmath.Int, bool) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return 0, types.ZeroAddress, sdkmath.Int{}, false
	}
	var req accountRequest
	if !ws.decode(w, r, &req) {
		return 0, types.ZeroAddress, sdkmath.Int{}, false
	}
	account, err := parseAddress("account", req.Account, false)
	if err != nil {
		ws.badRequest(w, err)
		return 0, types.ZeroAddress, sdkmath.Int{}, false
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		ws.badRequest(w, err)
		return 0, types.ZeroAddress, sdkmath.Int{}, false
	}
	return pid, account, amount, true
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	pid, account, amount, ok := ws.poolAccount(w, r)
	if !ok {
		return
	}
	receipt, err := ws.operator.Deposit(pid, account, amount)
	ws.writeResult(w, receipt, err)
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	pid, account, amount, ok := ws.poolAccount(w, r)
	if !ok {
		return
	}
	receipt, err := ws.operator.Withdraw(pid, account, amount)
	ws.writeResult(w, receipt, err)
}

func (ws *WebServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	pid, account, _, ok := ws.poolAccount(w, r)
	if !ok {
		return
	}
	receipt, err := ws.operator.Claim(pid, account)
	ws.writeResult(w, receipt, err)
}

func (ws *WebServer) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	pid, account, _, ok := ws.poolAccount(w, r)
	if !ok {
		return
	}
	receipt, err := ws.operator.EmergencyWithdraw(pid, account)
	ws.writeResult(w, receipt, err)
}

func (ws *WebServer) handleSyncFactor(w http.ResponseWriter, r *http.Request) {
	pid, account, _, ok := ws.poolAccount(w, r)
	if !ok {
		return
	}
	pos, err := ws.operator.SyncFactor(pid, account)
	ws.writeResult(w, pos, err)
}

func (ws *WebServer) handleMultiClaim(w http.ResponseWriter, r *http.Request) {
	var req multiClaimRequest
	if !ws.decode(w, r, &req) {
		return
	}
	account, err := parseAddress("account", req.Account, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	receipts, err := ws.operator.MultiClaim(req.PoolIDs, account)
	if err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]any{"receipts": receipts, "count": len(receipts)})
}

func (ws *WebServer) lockRequest(w http.ResponseWriter, r *http.Request) (types.Address, sdkmath.Int, uint64, bool) {
	var req lockRequest
	if !ws.decode(w, r, &req) {
		return types.ZeroAddress, sdkmath.Int{}, 0, false
	}
	account, err := parseAddress("account", req.Account, false)
	if err != nil {
		ws.badRequest(w, err)
		return types.ZeroAddress, sdkmath.Int{}, 0, false
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		ws.badRequest(w, err)
		return types.ZeroAddress, sdkmath.Int{}, 0, false
	}
	return account, amount, req.Duration, true
}

func (ws *WebServer) handleCreateLock(w http.ResponseWriter, r *http.Request) {
	account, amount, duration, ok := ws.lockRequest(w, r)
	if !ok {
		return
	}
	lock, err := ws.operator.CreateLock(account, amount, duration)
	ws.writeResult(w, lock, err)
}

func (ws *WebServer) handleIncreaseLock(w http.ResponseWriter, r *http.Request) {
	account, amount, _, ok := ws.lockRequest(w, r)
	if !ok {
		return
	}
	lock, err := ws.operator.IncreaseLockAmount(account, amount)
	ws.writeResult(w, lock, err)
}

func (ws *WebServer) handleExtendLock(w http.ResponseWriter, r *http.Request) {
	account, _, duration, ok := ws.lockRequest(w, r)
	if !ok {
		return
	}
	lock, err := ws.operator.ExtendLock(account, duration)
	ws.writeResult(w, lock, err)
}

func (ws *WebServer) handleWithdrawLock(w http.ResponseWriter, r *http.Request) {
	account, _, _, ok := ws.lockRequest(w, r)
	if !ok {
		return
	}
	amount, err := ws.operator.WithdrawLock(account)
	ws.writeResult(w, map[string]any{"account": account, "amount": amount}, err)
}

// handleVote casts a single vote, or several atomically when more than one
// allocation is sent.
func (ws *WebServer) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !ws.decode(w, r, &req) {
		return
	}
	account, err := parseAddress("account", req.Account, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	if len(req.Allocations) == 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "At least one allocation is required")
		return
	}
	allocs := make([]types.VoteAllocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		lp, err := parseAddress("lp_token", a.LPToken, false)
		if err != nil {
			ws.badRequest(w, err)
			return
		}
		weight, err := parseAmount("weight", a.Weight)
		if err != nil {
			ws.badRequest(w, err)
			return
		}
		allocs = append(allocs, types.VoteAllocation{LPToken: lp, Weight: weight})
	}

	var side []types.SideReceipt
	if len(allocs) == 1 {
		side, err = ws.operator.Vote(account, allocs[0].LPToken, allocs[0].Weight)
	} else {
		side, err = ws.operator.VoteMany(account, allocs)
	}
	if err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	response := map[string]any{
		"account": account,
		"bribes":  side,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetRewarders(w http.ResponseWriter, r *http.Request) {
	rewarders := ws.operator.Rewarders()
	ws.writeJSONResponse(w, http.StatusOK, map[string]any{"rewarders": rewarders, "count": len(rewarders)})
}

func (ws *WebServer) handleFundRewarder(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("rewarder", mux.Vars(r)["address"], false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	var req accountRequest
	if !ws.decode(w, r, &req) {
		return
	}
	funder, err := parseAddress("account", req.Account, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	err = ws.operator.FundRewarder(funder, addr, amount)
	ws.writeResult(w, map[string]any{"rewarder": addr, "funded": amount}, err)
}

func (ws *WebServer) handleAddPool(w http.ResponseWriter, r *http.Request) {
	var req poolRequest
	if !ws.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	lp, err := parseAddress("lp_token", req.LPToken, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	rewarder, err := parseAddress("rewarder", req.Rewarder, true)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	pid, err := ws.operator.AddPool(caller, req.AllocPoint, lp, rewarder)
	if err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	pool, err := ws.ledger.Pool(pid)
	if err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, ws.view(pool))
}

func (ws *WebServer) handleSetPool(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	var req poolRequest
	if !ws.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	rewarder, err := parseAddress("rewarder", req.Rewarder, true)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	if err := ws.operator.SetPool(caller, pid, req.AllocPoint, rewarder, req.Overwrite); err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	pool, err := ws.ledger.Pool(pid)
	ws.writeResult(w, ws.view(pool), err)
}

// paramRequest decodes a caller plus one integer value.
func (ws *WebServer) paramRequest(w http.ResponseWriter, r *http.Request) (types.Address, sdkmath.Int, bool) {
	var req paramRequest
	if !ws.decode(w, r, &req) {
		return types.ZeroAddress, sdkmath.Int{}, false
	}
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		ws.badRequest(w, err)
		return types.ZeroAddress, sdkmath.Int{}, false
	}
	value, err := utils.ParseInt(req.Value)
	if err != nil {
		ws.badRequest(w, fmt.Errorf("invalid value: %w", err))
		return types.ZeroAddress, sdkmath.Int{}, false
	}
	return caller, value, true
}

func (ws *WebServer) handleEmissionRate(w http.ResponseWriter, r *http.Request) {
	caller, value, ok := ws.paramRequest(w, r)
	if !ok {
		return
	}
	err := ws.operator.UpdateEmissionRate(caller, value)
	ws.writeResult(w, map[string]any{"token_per_sec": value}, err)
}

func (ws *WebServer) handleRepartition(w http.ResponseWriter, r *http.Request) {
	caller, value, ok := ws.paramRequest(w, r)
	if !ok {
		return
	}
	if !value.IsUint64() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Repartition out of range")
		return
	}
	err := ws.operator.UpdateDilutingRepartition(caller, value.Uint64())
	ws.writeResult(w, map[string]any{"diluting_repartition": value.Uint64()}, err)
}

func (ws *WebServer) handleMaxBoost(w http.ResponseWriter, r *http.Request) {
	caller, value, ok := ws.paramRequest(w, r)
	if !ok {
		return
	}
	if !value.IsUint64() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Max boost out of range")
		return
	}
	err := ws.operator.UpdateMaxBoost(caller, value.Uint64())
	ws.writeResult(w, map[string]any{"max_boost": value.Uint64()}, err)
}

func (ws *WebServer) handleAddGauge(w http.ResponseWriter, r *http.Request) {
	var req gaugeRequest
	if !ws.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	gauge, err := parseAddress("gauge", req.Gauge, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	lp, err := parseAddress("lp_token", req.LPToken, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	bribe, err := parseAddress("bribe", req.Bribe, true)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	if err := ws.operator.AddGauge(caller, gauge, lp, bribe); err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, map[string]any{"gauges": ws.ledger.Gauges()})
}

func (ws *WebServer) handleSetBribe(w http.ResponseWriter, r *http.Request) {
	lp, err := parseAddress("lp_token", mux.Vars(r)["lpToken"], false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	var req gaugeRequest
	if !ws.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	bribe, err := parseAddress("bribe", req.Bribe, true)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	err = ws.operator.SetBribe(caller, lp, bribe)
	ws.writeResult(w, map[string]any{"lp_token": lp, "bribe": bribe}, err)
}

func (ws *WebServer) handleCreateRewarder(w http.ResponseWriter, r *http.Request) {
	var req rewarderRequest
	if !ws.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	p := types.RewarderParams{
		Kind:                req.Kind,
		DilutingRepartition: req.DilutingRepartition,
		IsNative:            req.IsNative,
	}
	if p.Address, err = parseAddress("address", req.Address, false); err != nil {
		ws.badRequest(w, err)
		return
	}
	if p.RewardToken, err = parseAddress("reward_token", req.RewardToken, req.IsNative); err != nil {
		ws.badRequest(w, err)
		return
	}
	if p.LPToken, err = parseAddress("lp_token", req.LPToken, false); err != nil {
		ws.badRequest(w, err)
		return
	}
	if p.TokenPerSec, err = parseAmount("token_per_sec", req.TokenPerSec); err != nil {
		ws.badRequest(w, err)
		return
	}
	info, err := ws.operator.CreateRewarder(caller, p)
	if err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, info)
}

func (ws *WebServer) handleRewarderRate(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("rewarder", mux.Vars(r)["address"], false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	caller, value, ok := ws.paramRequest(w, r)
	if !ok {
		return
	}
	err = ws.operator.SetRewarderRate(caller, addr, value)
	ws.writeResult(w, map[string]any{"rewarder": addr, "token_per_sec": value}, err)
}

func (ws *WebServer) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !ws.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	token, err := parseAddress("token", req.Token, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	to, err := parseAddress("to", req.To, false)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		ws.badRequest(w, err)
		return
	}
	err = ws.operator.Mint(caller, token, to, amount)
	ws.writeResult(w, map[string]any{"token": token, "to": to, "amount": amount}, err)
}

// writeResult writes data, or the mapped ledger error.
func (ws *WebServer) writeResult(w http.ResponseWriter, data any, err error) {
	if err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, data)
}
