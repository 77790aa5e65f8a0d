package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// TokenService is the narrow adapter to the external token custody service,
// the standard approve/transferFrom-style capability. The engine only ever
// needs three operations: read an allowance, pull approved funds, and move
// funds it already holds.
type TokenService interface {
	Allowance(ctx context.Context, token, owner, spender string) (int64, error)
	TransferFrom(ctx context.Context, token, from, to string, amount int64) error
	Transfer(ctx context.Context, token, to string, amount int64) error
}

type tokenService struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewTokenService(baseURL, apiKey string) TokenService {
	return &tokenService{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{},
	}
}

type allowanceResponse struct {
	Allowance int64 `json:"allowance"`
}

type transferRequest struct {
	Token  string `json:"token"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

func (s *tokenService) Allowance(ctx context.Context, token, owner, spender string) (int64, error) {
	path := fmt.Sprintf("/allowance?token=%s&owner=%s&spender=%s", token, owner, spender)
	body, err := s.makeRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}

	var resp allowanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("malformed allowance response: %v", err)
	}
	return resp.Allowance, nil
}

func (s *tokenService) TransferFrom(ctx context.Context, token, from, to string, amount int64) error {
	_, err := s.makeRequest(ctx, http.MethodPost, "/transfer-from", transferRequest{
		Token:  token,
		From:   from,
		To:     to,
		Amount: amount,
	})
	return err
}

func (s *tokenService) Transfer(ctx context.Context, token, to string, amount int64) error {
	_, err := s.makeRequest(ctx, http.MethodPost, "/transfer", transferRequest{
		Token:  token,
		To:     to,
		Amount: amount,
	})
	return err
}

func (s *tokenService) makeRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

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
		return nil, fmt.Errorf("custody service returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
