package bybit

import (
	"context"
	"encoding/json"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"tradecore/pkg/types"
)

// OrderResult is the venue's acknowledgement of a placed order.
type OrderResult struct {
	OrderID     string
	OrderLinkID string
	Symbol      string
	Status      string
	ExecutedQty float64
	AvgPrice    float64
}

// PlaceOrder submits an order to the venue. Market orders fill
// immediately in the spot category; protective levels ride along as
// takeProfit/stopLoss parameters.
func (c *Client) PlaceOrder(ctx context.Context, category string, order types.OrderRequest) (*OrderResult, error) {
	if order.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if order.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", order.Quantity)
	}
	if category == "" {
		category = "spot"
	}

	side := "Buy"
	if order.Side == types.SideSell {
		side = "Sell"
	}
	orderType := "Market"
	if order.Type == types.OrderTypeLimit {
		orderType = "Limit"
	}

	params := map[string]interface{}{
		"category":  category,
		"symbol":    order.Symbol,
		"side":      side,
		"orderType": orderType,
		"qty":       formatFloat(order.Quantity),
	}
	if order.Type == types.OrderTypeLimit {
		if order.LimitPrice <= 0 {
			return nil, fmt.Errorf("limit price is required for limit orders")
		}
		params["price"] = formatFloat(order.LimitPrice)
		params["timeInForce"] = "GTC"
	}
	if order.TakeProfit > 0 {
		params["takeProfit"] = formatFloat(order.TakeProfit)
	}
	if order.StopLoss > 0 {
		params["stopLoss"] = formatFloat(order.StopLoss)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	return parseOrderResponse(result)
}

// CancelAllOrders cancels all open orders for a symbol.
func (c *Client) CancelAllOrders(ctx context.Context, category, symbol string) error {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelAllOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel all orders: %w", err)
	}
	return nil
}

func parseOrderResponse(response interface{}) (*OrderResult, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var orderResult struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
		Symbol      string `json:"symbol"`
		OrderStatus string `json:"orderStatus"`
		CumExecQty  string `json:"cumExecQty"`
		AvgPrice    string `json:"avgPrice"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order result: %w", err)
	}

	return &OrderResult{
		OrderID:     orderResult.OrderID,
		OrderLinkID: orderResult.OrderLinkID,
		Symbol:      orderResult.Symbol,
		Status:      orderResult.OrderStatus,
		ExecutedQty: parseFloat64(orderResult.CumExecQty),
		AvgPrice:    parseFloat64(orderResult.AvgPrice),
	}, nil
}
