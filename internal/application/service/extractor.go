package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dexsync/internal/domain/model"
)

// ErrNoWalletAddress rejects a snapshot with no extractable owner. The
// batch is refused outright; no record may exist without an owning
// address.
var ErrNoWalletAddress = errors.New("no wallet address extractable from snapshot")

// Recognized flat entry keys. For every field the persisted blob is
// consulted first, then the flat entry; the precedence is fixed here
// rather than inferred from object shape at runtime.
const (
	keyCosmosAddress = "wallet.cosmos.address"
	keyEvmAddress    = "wallet.evm.address"
	keyLocale        = "app.locale"
	keyNetwork       = "app.selected_network"
	keyCurrency      = "app.display_currency"
	keyTermsAck      = "app.terms_acknowledged"
	keyOnboardAck    = "app.onboarding_acknowledged"
)

// Chain ids assigned to links derived from flat address entries.
const (
	cosmosChainID = "dexchain-1"
	evmChainID    = "eip155:1"
)

// persistedState is the subset of the nested blob the extractor
// understands; unknown sections are ignored.
type persistedState struct {
	Wallets     []persistedWallet      `json:"wallets"`
	Preferences *persistedPreferences  `json:"preferences"`
	Trading     *persistedTrading      `json:"tradingPreferences"`
	Dismissed   map[string]bool        `json:"dismissed"`
	Affiliate   *persistedAffiliate    `json:"affiliate"`
	Transfers   []persistedTransaction `json:"transfers"`
	Swaps       []persistedSwap        `json:"swaps"`
}

type persistedWallet struct {
	WalletType string `json:"walletType"`
	Address    string `json:"address"`
	ChainID    string `json:"chainId"`
}

type persistedPreferences struct {
	Locale                 string `json:"locale"`
	DisplayCurrency        string `json:"displayCurrency"`
	SelectedNetwork        string `json:"selectedNetwork"`
	TermsAcknowledged      *bool  `json:"termsAcknowledged"`
	OnboardingAcknowledged *bool  `json:"onboardingAcknowledged"`
}

type persistedTrading struct {
	DefaultLeverage   string `json:"defaultLeverage"`
	SlippageTolerance string `json:"slippageTolerance"`
	MarginMode        string `json:"marginMode"`
	ConfirmOrders     bool   `json:"confirmOrders"`
}

type persistedAffiliate struct {
	Code       string `json:"code"`
	ReferredBy string `json:"referredBy"`
}

type persistedTransaction struct {
	TxHash      string `json:"txHash"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Denom       string `json:"denom"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	ConfirmedAt int64  `json:"confirmedAt"`
}

type persistedSwap struct {
	TxHash      string `json:"txHash"`
	FromDenom   string `json:"fromDenom"`
	ToDenom     string `json:"toDenom"`
	FromAmount  string `json:"fromAmount"`
	ToAmount    string `json:"toAmount"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	ConfirmedAt int64  `json:"confirmedAt"`
}

// Extractor normalizes a session snapshot into a typed record batch.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract scans the flat entries and the persisted blob and produces at
// most one preferences row, one trading row, one affiliate row, plus
// wallet links, dismissed items, transfers and swaps.
func (e *Extractor) Extract(snap *model.SessionSnapshot) (*model.Batch, error) {
	var state persistedState
	if len(snap.Persisted) > 0 {
		if err := json.Unmarshal(snap.Persisted, &state); err != nil {
			return nil, fmt.Errorf("persisted state: %w", err)
		}
	}

	flat := func(k string) string { return strings.TrimSpace(snap.Entries[k]) }

	links := walletCandidates(&state, flat)
	primary := primaryAddress(links, flat)
	if primary == "" {
		return nil, ErrNoWalletAddress
	}

	batch := &model.Batch{WalletAddress: primary}
	for i := range links {
		links[i].IsPrimary = links[i].Address == primary
		batch.Add(links[i])
	}

	if prefs := extractPreferences(&state, flat, primary); prefs != nil {
		batch.Add(*prefs)
	}
	if state.Trading != nil {
		batch.Add(model.TradingPreferences{
			WalletAddress:     primary,
			DefaultLeverage:   model.NormalizeAmount(state.Trading.DefaultLeverage),
			SlippageTolerance: model.NormalizeAmount(state.Trading.SlippageTolerance),
			MarginMode:        state.Trading.MarginMode,
			ConfirmOrders:     state.Trading.ConfirmOrders,
		})
	}
	for key, dismissed := range state.Dismissed {
		if dismissed && key != "" {
			batch.Add(model.DismissedItem{WalletAddress: primary, ItemKey: key})
		}
	}
	if state.Affiliate != nil {
		batch.Add(model.Affiliate{
			WalletAddress: primary,
			Code:          state.Affiliate.Code,
			ReferredBy:    state.Affiliate.ReferredBy,
		})
	}
	for _, t := range state.Transfers {
		batch.Add(model.Transfer{
			TxHash:        t.TxHash,
			WalletAddress: primary,
			Type:          t.Type,
			Amount:        model.NormalizeAmount(t.Amount),
			Denom:         t.Denom,
			Status:        t.Status,
			CreatedAt:     t.CreatedAt,
			ConfirmedAt:   t.ConfirmedAt,
		})
	}
	for _, sw := range state.Swaps {
		batch.Add(model.Swap{
			TxHash:        sw.TxHash,
			WalletAddress: primary,
			FromDenom:     sw.FromDenom,
			ToDenom:       sw.ToDenom,
			FromAmount:    model.NormalizeAmount(sw.FromAmount),
			ToAmount:      model.NormalizeAmount(sw.ToAmount),
			Status:        sw.Status,
			CreatedAt:     sw.CreatedAt,
			ConfirmedAt:   sw.ConfirmedAt,
		})
	}

	return batch, nil
}

// walletCandidates merges persisted wallets with links derived from the
// flat address entries, deduplicated on (type, address, chain).
func walletCandidates(state *persistedState, flat func(string) string) []model.WalletLink {
	var links []model.WalletLink
	seen := map[string]struct{}{}
	add := func(w model.WalletLink) {
		if w.Address == "" {
			return
		}
		k := w.WalletType + "|" + w.Address + "|" + w.ChainID
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		links = append(links, w)
	}

	for _, w := range state.Wallets {
		add(model.WalletLink{WalletType: w.WalletType, Address: w.Address, ChainID: w.ChainID})
	}
	if a := flat(keyCosmosAddress); a != "" {
		add(model.WalletLink{WalletType: "cosmos", Address: a, ChainID: cosmosChainID})
	}
	if a := flat(keyEvmAddress); a != "" {
		add(model.WalletLink{WalletType: "evm", Address: a, ChainID: evmChainID})
	}
	return links
}

// primaryAddress picks the sync key for the whole batch: the
// ledger-chain (cosmos) address first, then the EVM address, then the
// first candidate.
func primaryAddress(links []model.WalletLink, flat func(string) string) string {
	if a := flat(keyCosmosAddress); a != "" {
		return a
	}
	for _, w := range links {
		if w.WalletType == "cosmos" {
			return w.Address
		}
	}
	if a := flat(keyEvmAddress); a != "" {
		return a
	}
	for _, w := range links {
		if w.WalletType == "evm" {
			return w.Address
		}
	}
	if len(links) > 0 {
		return links[0].Address
	}
	return ""
}

func extractPreferences(state *persistedState, flat func(string) string, primary string) *model.UserPreferences {
	p := state.Preferences
	hasFlat := flat(keyLocale) != "" || flat(keyNetwork) != "" || flat(keyCurrency) != "" ||
		flat(keyTermsAck) != "" || flat(keyOnboardAck) != ""
	if p == nil && !hasFlat {
		return nil
	}

	prefs := &model.UserPreferences{WalletAddress: primary}
	prefs.Locale = pick(persistedField(p, func(pp *persistedPreferences) string { return pp.Locale }), flat(keyLocale))
	prefs.DisplayCurrency = pick(persistedField(p, func(pp *persistedPreferences) string { return pp.DisplayCurrency }), flat(keyCurrency))
	prefs.SelectedNetwork = pick(persistedField(p, func(pp *persistedPreferences) string { return pp.SelectedNetwork }), flat(keyNetwork))

	if p != nil && p.TermsAcknowledged != nil {
		prefs.TermsAcknowledged = *p.TermsAcknowledged
	} else {
		prefs.TermsAcknowledged = flatBool(flat(keyTermsAck))
	}
	if p != nil && p.OnboardingAcknowledged != nil {
		prefs.OnboardingAcknowledged = *p.OnboardingAcknowledged
	} else {
		prefs.OnboardingAcknowledged = flatBool(flat(keyOnboardAck))
	}
	return prefs
}

// pick prefers the persisted blob's value over the flat entry.
func pick(persisted, flat string) string {
	if persisted != "" {
		return persisted
	}
	return flat
}

func persistedField(p *persistedPreferences, get func(*persistedPreferences) string) string {
	if p == nil {
		return ""
	}
	return get(p)
}

func flatBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
