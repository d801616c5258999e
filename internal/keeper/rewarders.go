package keeper

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/farm"
	"github.com/hummus-exchange/farm/internal/rewarder"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
	"github.com/hummus-exchange/farm/internal/voter"
)

// CreateRewarder builds a side stream from its constructor arguments and
// registers it so pools and gauges can attach it by address. Pool rewarders
// are operated by the farm, bribes by the voter.
func (k *Keeper) CreateRewarder(caller types.Address, p types.RewarderParams) (types.RewarderInfo, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	info, err := k.createRewarder(caller, p)
	k.record("create_rewarder", k.poolOf(p.LPToken), caller, zero(), zero(), err)
	return info, err
}

func (k *Keeper) createRewarder(caller types.Address, p types.RewarderParams) (types.RewarderInfo, error) {
	if caller != k.farm.Admin() {
		return types.RewarderInfo{}, fmt.Errorf("%w: %s cannot create rewarders", types.ErrUnauthorized, caller.Hex())
	}
	if k.vault == nil {
		return types.RewarderInfo{}, fmt.Errorf("%w: keeper has no vault", types.ErrInvalidParameter)
	}
	if _, ok := k.rewarders[p.Address]; ok {
		return types.RewarderInfo{}, fmt.Errorf("%w: rewarder %s already exists", types.ErrInvalidParameter, p.Address.Hex())
	}
	if p.TokenPerSec.IsNil() {
		p.TokenPerSec = zero()
	}
	deps := rewarder.Deps{Address: p.Address, Admin: caller, Vault: k.vault}

	var (
		r   *rewarder.Rewarder
		err error
	)
	switch p.Kind {
	case rewarder.KindRewarder:
		r, err = rewarder.NewRewarder(deps, p.RewardToken, p.LPToken, p.TokenPerSec, k.farm.Address(), p.IsNative)
	case rewarder.KindVeRewarder:
		r, err = rewarder.NewVeRewarder(deps, p.RewardToken, p.LPToken, k.farm.Address(), k.escrow.Address(),
			p.TokenPerSec, p.DilutingRepartition, p.IsNative)
	case rewarder.KindBribe:
		r, err = rewarder.NewBribe(deps, k.voter.Address(), p.LPToken, p.RewardToken, p.TokenPerSec, p.IsNative)
	default:
		err = fmt.Errorf("%w: unknown rewarder kind %q", types.ErrInvalidParameter, p.Kind)
	}
	if err != nil {
		return types.RewarderInfo{}, err
	}
	k.rewarders[p.Address] = r
	k.logger.Info().
		Str("kind", p.Kind).
		Str("rewarder", p.Address.Hex()).
		Str("lpToken", p.LPToken.Hex()).
		Str("tokenPerSec", p.TokenPerSec.String()).
		Msg("Rewarder created")
	return r.Info(), nil
}

// FundRewarder moves amount of the stream's reward asset from funder into it.
func (k *Keeper) FundRewarder(funder, addr types.Address, amount sdkmath.Int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	err := k.fundRewarder(funder, addr, amount)
	k.record("fund_rewarder", nil, funder, amount, zero(), err)
	return err
}

func (k *Keeper) fundRewarder(funder, addr types.Address, amount sdkmath.Int) error {
	r, ok := k.rewarders[addr]
	if !ok {
		return fmt.Errorf("%w: unknown rewarder %s", types.ErrInvalidParameter, addr.Hex())
	}
	return r.Fund(funder, amount)
}

func (k *Keeper) SetRewarderRate(caller, addr types.Address, tokenPerSec sdkmath.Int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var err error
	if r, ok := k.rewarders[addr]; ok {
		err = r.SetRewardRate(caller, tokenPerSec, k.Now())
	} else {
		err = fmt.Errorf("%w: unknown rewarder %s", types.ErrInvalidParameter, addr.Hex())
	}
	k.record("set_rewarder_rate", nil, caller, tokenPerSec, zero(), err)
	return err
}

// Rewarders lists the registered streams by address.
func (k *Keeper) Rewarders() []types.RewarderInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	addrs := make([]types.Address, 0, len(k.rewarders))
	for a := range k.rewarders {
		addrs = append(addrs, a)
	}
	utils.SortAddresses(addrs)
	out := make([]types.RewarderInfo, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, k.rewarders[a].Info())
	}
	return out
}

// Mint credits amount of token to an account in the custody ledger. Only the
// farm admin may mint.
func (k *Keeper) Mint(caller, token, to types.Address, amount sdkmath.Int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var err error
	switch {
	case caller != k.farm.Admin():
		err = fmt.Errorf("%w: %s cannot mint", types.ErrUnauthorized, caller.Hex())
	case k.vault == nil:
		err = fmt.Errorf("%w: keeper has no vault", types.ErrInvalidParameter)
	default:
		err = k.vault.Mint(token, to, amount)
	}
	k.record("mint", nil, to, amount, zero(), err)
	return err
}

// poolRewarder resolves a pool rewarder by address. The zero address means
// none and yields a nil interface.
func (k *Keeper) poolRewarder(addr, lpToken types.Address) (farm.SideRewarder, error) {
	if addr == types.ZeroAddress {
		return nil, nil
	}
	r, ok := k.rewarders[addr]
	if !ok {
		return nil, fmt.Errorf("%w: unknown rewarder %s", types.ErrInvalidParameter, addr.Hex())
	}
	if r.Kind() == rewarder.KindBribe {
		return nil, fmt.Errorf("%w: %s is a bribe, not a pool rewarder", types.ErrInvalidParameter, addr.Hex())
	}
	if r.LPToken() != lpToken {
		return nil, fmt.Errorf("%w: rewarder %s tracks %s, not %s",
			types.ErrInvalidParameter, addr.Hex(), r.LPToken().Hex(), lpToken.Hex())
	}
	return r, nil
}

func (k *Keeper) gaugeBribe(addr, lpToken types.Address) (voter.Bribe, error) {
	if addr == types.ZeroAddress {
		return nil, nil
	}
	r, ok := k.rewarders[addr]
	if !ok {
		return nil, fmt.Errorf("%w: unknown bribe %s", types.ErrInvalidParameter, addr.Hex())
	}
	if r.Kind() != rewarder.KindBribe {
		return nil, fmt.Errorf("%w: %s is not a bribe", types.ErrInvalidParameter, addr.Hex())
	}
	if r.LPToken() != lpToken {
		return nil, fmt.Errorf("%w: bribe %s tracks %s, not %s",
			types.ErrInvalidParameter, addr.Hex(), r.LPToken().Hex(), lpToken.Hex())
	}
	return r, nil
}
