package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"subsettle/internal/models"
)

// SwapService adapts the external AMM router. It holds no state and offers no
// retry: a failed swap is reported once and a retry, if desired, is a fresh
// attempt with a fresh deadline. Every swap runs on a fixed two-hop path
// [paymentToken, referenceToken] configured at construction; multi-hop path
// discovery is out of scope.
type SwapService interface {
	// QuoteInput returns how much of fromToken the router currently needs to
	// produce amountOut of the reference asset.
	QuoteInput(ctx context.Context, fromToken string, amountOut int64) (int64, error)
	// SwapToReference converts amountIn of fromToken into the reference asset,
	// crediting recipient. The returned value is the ACTUAL amount received,
	// not the requested minimum: subscriptions are priced off real proceeds.
	SwapToReference(ctx context.Context, fromToken string, amountIn int64, recipient string) (int64, error)
}

// SwapConfig configures the router adapter. SlippageBps must be non-zero: a
// zero minimum output defeats the slippage protection entirely.
type SwapConfig struct {
	RouterURL      string
	ReferenceToken string
	AcceptedTokens []string
	SlippageBps    int64
	DeadlineWindow time.Duration
}

type swapService struct {
	baseURL        string
	referenceToken string
	paths          map[string][]string
	slippageBps    int64
	deadlineWindow time.Duration
	http           *http.Client
}

func NewSwapService(cfg SwapConfig) (SwapService, error) {
	if cfg.SlippageBps <= 0 || cfg.SlippageBps >= 10000 {
		return nil, fmt.Errorf("slippage tolerance must be in (0, 10000) bps, got %d", cfg.SlippageBps)
	}
	if cfg.DeadlineWindow <= 0 {
		return nil, fmt.Errorf("deadline window must be positive")
	}
	if len(cfg.AcceptedTokens) == 0 {
		return nil, fmt.Errorf("at least one accepted token must be configured")
	}

	paths := make(map[string][]string, len(cfg.AcceptedTokens))
	for _, token := range cfg.AcceptedTokens {
		paths[token] = []string{token, cfg.ReferenceToken}
	}

	return &swapService{
		baseURL:        cfg.RouterURL,
		referenceToken: cfg.ReferenceToken,
		paths:          paths,
		slippageBps:    cfg.SlippageBps,
		deadlineWindow: cfg.DeadlineWindow,
		http:           &http.Client{Timeout: cfg.DeadlineWindow},
	}, nil
}

type quoteRequest struct {
	Path      []string `json:"path"`
	AmountOut int64    `json:"amount_out"`
}

type quoteResponse struct {
	AmountIn  int64 `json:"amount_in"`
	AmountOut int64 `json:"amount_out"`
}

type swapResponse struct {
	AmountOut int64 `json:"amount_out"`
}

func (s *swapService) QuoteInput(ctx context.Context, fromToken string, amountOut int64) (int64, error) {
	path, ok := s.paths[fromToken]
	if !ok {
		return 0, fmt.Errorf("%w: token %s not accepted", ErrSwapFailed, fromToken)
	}

	body, err := s.makeRequest(ctx, http.MethodPost, "/quote", quoteRequest{Path: path, AmountOut: amountOut})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return 0, fmt.Errorf("%w: malformed quote response: %v", ErrSwapFailed, err)
	}
	if quote.AmountIn <= 0 {
		return 0, fmt.Errorf("%w: router quoted non-positive input", ErrSwapFailed)
	}
	return quote.AmountIn, nil
}

func (s *swapService) SwapToReference(ctx context.Context, fromToken string, amountIn int64, recipient string) (int64, error) {
	if amountIn <= 0 {
		return 0, fmt.Errorf("%w: amount in must be positive", ErrSwapFailed)
	}
	path, ok := s.paths[fromToken]
	if !ok {
		return 0, fmt.Errorf("%w: token %s not accepted", ErrSwapFailed, fromToken)
	}

	// The minimum acceptable output is the expected output shaved by the
	// configured slippage tolerance. Never zero.
	expectedOut, err := s.quoteOutput(ctx, path, amountIn)
	if err != nil {
		return 0, err
	}
	minOut := expectedOut - expectedOut*s.slippageBps/10000
	if minOut <= 0 {
		minOut = 1
	}

	quote := models.SwapQuote{
		AmountIn:     amountIn,
		AmountOutMin: minOut,
		Path:         path,
		Recipient:    recipient,
		Deadline:     time.Now().Add(s.deadlineWindow),
	}

	body, err := s.makeRequest(ctx, http.MethodPost, "/swap", quote)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}

	var result swapResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("%w: malformed swap response: %v", ErrSwapFailed, err)
	}
	if result.AmountOut < minOut {
		return 0, fmt.Errorf("%w: output %d below minimum %d", ErrSwapFailed, result.AmountOut, minOut)
	}
	return result.AmountOut, nil
}

type outputQuoteRequest struct {
	Path     []string `json:"path"`
	AmountIn int64    `json:"amount_in"`
}

func (s *swapService) quoteOutput(ctx context.Context, path []string, amountIn int64) (int64, error) {
	body, err := s.makeRequest(ctx, http.MethodPost, "/quote/output", outputQuoteRequest{Path: path, AmountIn: amountIn})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return 0, fmt.Errorf("%w: malformed quote response: %v", ErrSwapFailed, err)
	}
	if quote.AmountOut <= 0 {
		return 0, fmt.Errorf("%w: router quoted non-positive output", ErrSwapFailed)
	}
	return quote.AmountOut, nil
}

func (s *swapService) makeRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("router returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
