package bybit

import (
	"context"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/crypto-swing-bot/pkg/types"
)

// AccountType represents different account types in Bybit
type AccountType string

const (
	AccountTypeUnified AccountType = "UNIFIED"
	AccountTypeSpot    AccountType = "SPOT"
)

// GetBalance returns the wallet balance of coin
func (c *Client) GetBalance(ctx context.Context, accountType AccountType, coin string) (*types.Balance, error) {
	resp, err := c.do(ctx, endpointWallet, map[string]interface{}{
		"accountType": string(accountType),
		"coin":        coin,
	})
	if err == nil {
		var balance *types.Balance
		if balance, err = parseBalance(resp, coin); err == nil {
			return balance, nil
		}
	}
	return nil, classify("GetBalance", endpointWallet, err)
}

func parseBalance(resp *bybit_api.ServerResponse, coin string) (*types.Balance, error) {
	var result struct {
		List []struct {
			AccountType string `json:"accountType"`
			Coin        []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
				Locked        string `json:"locked"`
				TotalOrderIM  string `json:"totalOrderIM"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := decode(resp, &result); err != nil {
		return nil, err
	}

	for _, account := range result.List {
		for _, item := range account.Coin {
			if item.Coin != coin {
				continue
			}
			locked := parseFloat64(item.Locked) + parseFloat64(item.TotalOrderIM)
			return &types.Balance{
				Asset:  coin,
				Free:   parseFloat64(item.WalletBalance) - locked,
				Locked: locked,
			}, nil
		}
	}
	return nil, fmt.Errorf("coin %s not found in account", coin)
}
