// RESTClient is the concrete BrokerClient/AuthClient implementation: a
// resty.Client wired with a base URL, timeout and retry-on-5xx policy, the
// same shape as the teacher pack's resty-based exchange.Client
// (0xtitan6-polymarket-mm/internal/exchange/client.go) — base URL + timeout
// + SetRetryCount + a retry condition on transport errors and 5xx, JSON
// request/response bodies via SetBody/SetResult.
package broker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/internal/errs"
)

// RESTConfig configures a RESTClient.
type RESTConfig struct {
	BaseURL       string
	Timeout       time.Duration
	OrderDeadline time.Duration
	QueryDeadline time.Duration
}

// RESTClient talks to the brokerage's order-management and auth REST API.
// It implements both BrokerClient and AuthClient: the two concerns share
// one HTTP client and one bearer token, the way the teacher's
// execution.Executor shares a single authenticated client across order and
// token calls.
type RESTClient struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewRESTClient builds a RESTClient against cfg.BaseURL with resty's
// built-in retry loop covering transport errors and 5xx responses; 4xx
// business rejections are returned to the caller unretried (spec §4.2).
func NewRESTClient(cfg RESTConfig, log zerolog.Logger) *RESTClient {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(300 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &RESTClient{http: httpClient, log: log.With().Str("component", "broker.RESTClient").Logger()}
}

// SetBearerToken installs accessToken as the Authorization header for every
// subsequent request. TokenManager does not call it; whoever obtains a token
// installs it here.
func (c *RESTClient) SetBearerToken(accessToken string) {
	c.http.SetAuthToken(accessToken)
}

type orderRequestBody struct {
	AccountID string `json:"accountId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"orderType"`
	Qty       int64  `json:"qty"`
	Price     string `json:"price"`
}

type orderResponseBody struct {
	BrokerOrderNo string `json:"brokerOrderNo"`
	RejectCode    string `json:"rejectCode"`
	RejectMessage string `json:"rejectMessage"`
}

// PlaceOrder implements BrokerClient.
func (c *RESTClient) PlaceOrder(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	var out orderResponseBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(orderRequestBody{
			AccountID: req.AccountID,
			Symbol:    req.Symbol,
			Side:      string(req.Side),
			OrderType: string(req.OrderType),
			Qty:       req.Qty,
			Price:     req.Price.String(),
		}).
		SetResult(&out).
		Post("/orders")
	if err != nil {
		return PlaceResult{}, &errs.BrokerTransport{Op: "PlaceOrder", Err: err}
	}
	if resp.StatusCode() >= 500 {
		return PlaceResult{}, &errs.BrokerTransport{Op: "PlaceOrder", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if resp.StatusCode() != http.StatusOK || out.RejectCode != "" {
		return PlaceResult{}, &errs.BrokerBusinessReject{Code: out.RejectCode, Message: out.RejectMessage}
	}
	return PlaceResult{BrokerOrderNo: out.BrokerOrderNo}, nil
}

// CancelOrder implements BrokerClient.
func (c *RESTClient) CancelOrder(ctx context.Context, accountID, brokerOrderNo string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"accountId": accountID, "brokerOrderNo": brokerOrderNo}).
		Delete("/orders")
	if err != nil {
		return &errs.BrokerTransport{Op: "CancelOrder", Err: err}
	}
	if resp.StatusCode() >= 500 {
		return &errs.BrokerTransport{Op: "CancelOrder", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if resp.StatusCode() != http.StatusOK {
		return &errs.BrokerBusinessReject{Code: fmt.Sprintf("%d", resp.StatusCode()), Message: resp.String()}
	}
	return nil
}

// ModifyOrder implements BrokerClient.
func (c *RESTClient) ModifyOrder(ctx context.Context, accountID, brokerOrderNo string, newQty int64, newPrice decimal.Decimal) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"accountId":     accountID,
			"brokerOrderNo": brokerOrderNo,
			"qty":           fmt.Sprintf("%d", newQty),
			"price":         newPrice.String(),
		}).
		Patch("/orders")
	if err != nil {
		return &errs.BrokerTransport{Op: "ModifyOrder", Err: err}
	}
	if resp.StatusCode() >= 500 {
		return &errs.BrokerTransport{Op: "ModifyOrder", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if resp.StatusCode() != http.StatusOK {
		return &errs.BrokerBusinessReject{Code: fmt.Sprintf("%d", resp.StatusCode()), Message: resp.String()}
	}
	return nil
}

type cashResponseBody struct {
	Cash string `json:"cash"`
}

// GetCash implements BrokerClient.
func (c *RESTClient) GetCash(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var out cashResponseBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("accountId", accountID).
		SetResult(&out).
		Get("/accounts/cash")
	if err != nil {
		return decimal.Zero, &errs.BrokerTransport{Op: "GetCash", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, &errs.BrokerTransport{Op: "GetCash", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	cash, err := decimal.NewFromString(out.Cash)
	if err != nil {
		return decimal.Zero, fmt.Errorf("broker: parse cash balance: %w", err)
	}
	return cash, nil
}

type tokenResponseBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ApprovalKey string `json:"approval_key"`
	ExpiresIn   int64  `json:"expires_in"`
}

// IssueToken implements AuthClient.
func (c *RESTClient) IssueToken(ctx context.Context, appKey, appSecret string) (TokenSet, error) {
	var out tokenResponseBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"grant_type": "client_credentials", "appkey": appKey, "appsecret": appSecret}).
		SetResult(&out).
		Post("/oauth2/tokenP")
	if err != nil {
		return TokenSet{}, &errs.BrokerTransport{Op: "IssueToken", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return TokenSet{}, &errs.BrokerTransport{Op: "IssueToken", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return TokenSet{
		AccessToken: out.AccessToken,
		TokenType:   out.TokenType,
		ApprovalKey: out.ApprovalKey,
		ExpiresIn:   time.Duration(out.ExpiresIn) * time.Second,
	}, nil
}

// RefreshToken implements AuthClient. The brokerage API this client is
// grounded on has no distinct refresh endpoint; reissuing is equivalent.
func (c *RESTClient) RefreshToken(ctx context.Context, appKey, appSecret, currentToken string) (TokenSet, error) {
	return c.IssueToken(ctx, appKey, appSecret)
}
