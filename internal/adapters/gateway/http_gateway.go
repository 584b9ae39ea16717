// Package gateway implements the ExternalGateway port against the Pixman
// backend: GraphQL over HTTP for catalog, user and coupon operations, a
// REST endpoint for PIX charge creation.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pixman/coupon-flow/internal/domain"
	"github.com/pixman/coupon-flow/internal/domain/ports"
	"github.com/pixman/coupon-flow/pkg/observability"
	"github.com/pixman/coupon-flow/pkg/resilience"
)

// Config holds gateway endpoint configuration
type Config struct {
	GraphQLURL     string
	PaymentURL     string
	APIKey         string
	Timeout        time.Duration // per GraphQL call
	PaymentTimeout time.Duration // payment creation is allowed to be slower
	MaxAttempts    int
	Backoff        resilience.BackoffStrategy
}

// HTTPGateway implements ports.ExternalGateway
type HTTPGateway struct {
	cfg    Config
	client *http.Client
	logger ports.Logger
}

// NewHTTPGateway creates a gateway over the given HTTP client. Sensible
// defaults are applied for unset config fields.
func NewHTTPGateway(cfg Config, client *http.Client, logger ports.Logger) *HTTPGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PaymentTimeout == 0 {
		cfg.PaymentTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = resilience.GatewayBackoff()
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{cfg: cfg, client: client, logger: logger}
}

// GraphQL documents. The backend schema is stable; queries select only the
// fields the flow consumes.
const (
	queryGetMerchant = `query GetMerchant($slug: String!) {
  getMerchant(slug: $slug) { slug displayName status logo }
}`

	queryListRewardPrograms = `query ListRewardPrograms($slug: String!) {
  listRewardPrograms(slug: $slug) { programName programRule quantity reward price }
}`

	queryGetUser = `query GetUser($cpf: String!) {
  getUser(cpf: $cpf) { cpf email createdAt }
}`

	mutationCreateUser = `mutation CreateUser($input: CreateUserInput!) {
  createUser(input: $input) { cpf email createdAt }
}`

	queryListUserCoupons = `query ListUserCoupons($cpf: String!, $slug: String!, $statuses: [CouponStatus!]) {
  listUserCoupons(cpf: $cpf, slug: $slug, statuses: $statuses) {
    SK couponCode status reward programRule expires createdAt activatedAt
  }
}`

	mutationActivateCoupon = `mutation ActivateCoupon($input: ActivateCouponInput!) {
  activateCoupon(input: $input) { success message }
}`

	queryGetPixPaymentStatus = `query GetPixPaymentStatus($txid: String!) {
  getPixPaymentStatus(txid: $txid) { status }
}`
)

// GetMerchant fetches merchant metadata by slug. An absent merchant is a
// fatal MERCHANT_NOT_FOUND, not a transport error.
func (g *HTTPGateway) GetMerchant(ctx context.Context, slug string) (*domain.Merchant, error) {
	var resp struct {
		GetMerchant *struct {
			Slug        string `json:"slug"`
			DisplayName string `json:"displayName"`
			Status      string `json:"status"`
			Logo        string `json:"logo"`
		} `json:"getMerchant"`
	}
	if err := g.query(ctx, "getMerchant", queryGetMerchant, map[string]interface{}{"slug": slug}, &resp); err != nil {
		return nil, err
	}
	if resp.GetMerchant == nil {
		return nil, domain.ErrMerchantNotFound
	}
	return &domain.Merchant{
		Slug:        resp.GetMerchant.Slug,
		DisplayName: resp.GetMerchant.DisplayName,
		Status:      resp.GetMerchant.Status,
		LogoURL:     resp.GetMerchant.Logo,
	}, nil
}

// ListRewardPrograms fetches the merchant's purchasable reward programs
func (g *HTTPGateway) ListRewardPrograms(ctx context.Context, slug string) ([]domain.RewardProgram, error) {
	var resp struct {
		ListRewardPrograms []struct {
			ProgramName string          `json:"programName"`
			ProgramRule string          `json:"programRule"`
			Quantity    string          `json:"quantity"`
			Reward      string          `json:"reward"`
			Price       json.RawMessage `json:"price"`
		} `json:"listRewardPrograms"`
	}
	if err := g.query(ctx, "listRewardPrograms", queryListRewardPrograms, map[string]interface{}{"slug": slug}, &resp); err != nil {
		return nil, err
	}

	programs := make([]domain.RewardProgram, 0, len(resp.ListRewardPrograms))
	for _, r := range resp.ListRewardPrograms {
		quantity, err := strconv.Atoi(strings.TrimSpace(r.Quantity))
		if err != nil {
			quantity = 1
		}
		programs = append(programs, domain.RewardProgram{
			ProgramName: r.ProgramName,
			ProgramRule: r.ProgramRule,
			Quantity:    quantity,
			Reward:      r.Reward,
			Price:       domain.ParsePrice(rawString(r.Price)),
		})
	}
	return programs, nil
}

// GetUser looks a user up by CPF; (nil, nil) when none exists
func (g *HTTPGateway) GetUser(ctx context.Context, cpf string) (*domain.User, error) {
	var resp struct {
		GetUser *wireUser `json:"getUser"`
	}
	if err := g.query(ctx, "getUser", queryGetUser, map[string]interface{}{"cpf": cpf}, &resp); err != nil {
		return nil, err
	}
	if resp.GetUser == nil {
		return nil, nil
	}
	return resp.GetUser.toDomain(), nil
}

// CreateUser registers a new user for the CPF
func (g *HTTPGateway) CreateUser(ctx context.Context, cpf, email string) (*domain.User, error) {
	var resp struct {
		CreateUser *wireUser `json:"createUser"`
	}
	vars := map[string]interface{}{"input": map[string]string{"cpf": cpf, "email": email}}
	if err := g.query(ctx, "createUser", mutationCreateUser, vars, &resp); err != nil {
		return nil, err
	}
	if resp.CreateUser == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeUserCreateFailed, "backend returned no user")
	}
	return resp.CreateUser.toDomain(), nil
}

// ListUserCoupons fetches the user's coupons for the merchant, filtered by
// the given statuses
func (g *HTTPGateway) ListUserCoupons(ctx context.Context, cpf, slug string, statuses []domain.CouponStatus) ([]domain.Coupon, error) {
	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	var resp struct {
		ListUserCoupons []struct {
			SK          string `json:"SK"`
			CouponCode  string `json:"couponCode"`
			Status      string `json:"status"`
			Reward      string `json:"reward"`
			ProgramRule string `json:"programRule"`
			Expires     string `json:"expires"`
			CreatedAt   string `json:"createdAt"`
			ActivatedAt string `json:"activatedAt"`
		} `json:"listUserCoupons"`
	}
	vars := map[string]interface{}{"cpf": cpf, "slug": slug, "statuses": statusStrings}
	if err := g.query(ctx, "listUserCoupons", queryListUserCoupons, vars, &resp); err != nil {
		return nil, err
	}

	coupons := make([]domain.Coupon, 0, len(resp.ListUserCoupons))
	for _, c := range resp.ListUserCoupons {
		coupons = append(coupons, domain.Coupon{
			ID:          c.SK,
			CouponCode:  c.CouponCode,
			Status:      domain.CouponStatus(c.Status),
			ProgramName: c.Reward,
			ProgramRule: c.ProgramRule,
			Expires:     parseTime(c.Expires),
			CreatedAt:   parseTime(c.CreatedAt),
			ActivatedAt: parseTime(c.ActivatedAt),
		})
	}
	return coupons, nil
}

// ActivateCoupon asks the backend to move a coupon to ACTIVE
func (g *HTTPGateway) ActivateCoupon(ctx context.Context, cpf, slug, couponID string) (ports.ActivationResult, error) {
	var resp struct {
		ActivateCoupon *struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		} `json:"activateCoupon"`
	}
	vars := map[string]interface{}{"input": map[string]string{"cpf": cpf, "slug": slug, "SK": couponID}}
	if err := g.query(ctx, "activateCoupon", mutationActivateCoupon, vars, &resp); err != nil {
		return ports.ActivationResult{}, err
	}
	if resp.ActivateCoupon == nil {
		return ports.ActivationResult{}, nil
	}
	return ports.ActivationResult{Success: resp.ActivateCoupon.Success, Message: resp.ActivateCoupon.Message}, nil
}

// CreatePayment creates (or, server-side, replays) a PIX charge for a
// reward program purchase. The idempotency token makes repeated identical
// requests safe.
func (g *HTTPGateway) CreatePayment(ctx context.Context, cpf, slug, rewardProgramID, token string) (ports.PaymentCreation, error) {
	body, err := json.Marshal(map[string]string{
		"cpf":               cpf,
		"merchant_slug":     slug,
		"reward_program_id": rewardProgramID,
		"token":             token,
	})
	if err != nil {
		return ports.PaymentCreation{}, domain.WrapError(domain.ErrorCodeInternalError, "encode payment request", err)
	}

	var out struct {
		PixCopiaECola string `json:"pixCopiaECola"`
	}

	start := time.Now()
	callErr := resilience.Retry(ctx, g.cfg.MaxAttempts, g.cfg.Backoff, domain.IsRetryable, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.PaymentTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.cfg.PaymentURL, bytes.NewReader(body))
		if err != nil {
			return domain.WrapError(domain.ErrorCodeInternalError, "build payment request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return classifyTransportError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return classifyStatusCode(resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return domain.WrapError(domain.ErrorCodeAPI, "decode payment response", err)
		}
		return nil
	})
	observability.ObserveGatewayCall("createPayment", start, callErr)

	if callErr != nil {
		return ports.PaymentCreation{}, callErr
	}
	return ports.PaymentCreation{Payload: out.PixCopiaECola}, nil
}

// GetPaymentStatus polls the backend for a PIX charge's status by txid
func (g *HTTPGateway) GetPaymentStatus(ctx context.Context, txID string) (ports.PaymentStatus, error) {
	var resp struct {
		GetPixPaymentStatus *struct {
			Status string `json:"status"`
		} `json:"getPixPaymentStatus"`
	}
	if err := g.query(ctx, "getPixPaymentStatus", queryGetPixPaymentStatus, map[string]interface{}{"txid": txID}, &resp); err != nil {
		return ports.PaymentStatus{}, err
	}
	if resp.GetPixPaymentStatus == nil {
		return ports.PaymentStatus{}, domain.NewDomainError(domain.ErrorCodePaymentStatusFailed, "payment status not found")
	}
	return ports.PaymentStatus{Status: resp.GetPixPaymentStatus.Status}, nil
}

// query runs one GraphQL document with retry, metrics and typed error
// mapping. out receives the "data" object.
func (g *HTTPGateway) query(ctx context.Context, operation, document string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     document,
		"variables": variables,
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "encode graphql request", err)
	}

	start := time.Now()
	callErr := resilience.Retry(ctx, g.cfg.MaxAttempts, g.cfg.Backoff, domain.IsRetryable, func(ctx context.Context) error {
		return g.doQuery(ctx, body, out)
	})
	observability.ObserveGatewayCall(operation, start, callErr)

	if callErr != nil {
		g.logger.Warn("gateway call failed",
			ports.String("operation", operation),
			ports.Err(callErr))
	}
	return callErr
}

func (g *HTTPGateway) doQuery(ctx context.Context, body []byte, out interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.cfg.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "build graphql request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("x-api-key", g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatusCode(resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.WrapError(domain.ErrorCodeAPI, "decode graphql response", err)
	}
	if len(envelope.Errors) > 0 {
		return domain.NewDomainError(domain.ErrorCodeAPI, envelope.Errors[0].Message)
	}
	if len(envelope.Data) == 0 {
		return domain.NewDomainError(domain.ErrorCodeAPI, "empty graphql response")
	}
	return json.Unmarshal(envelope.Data, out)
}

// classifyTransportError maps transport failures to the error taxonomy:
// deadline overruns become TIMEOUT, everything else NETWORK
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrorCodeTimeout, "gateway request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.WrapError(domain.ErrorCodeTimeout, "gateway request timed out", err)
	}
	return domain.WrapError(domain.ErrorCodeNetwork, "gateway request failed", err)
}

func classifyStatusCode(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewDomainError(domain.ErrorCodeUnauthorized, fmt.Sprintf("gateway rejected credentials (status %d)", code))
	default:
		return domain.NewDomainError(domain.ErrorCodeAPI, fmt.Sprintf("gateway error (status %d)", code))
	}
}

type wireUser struct {
	CPF       string `json:"cpf"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

func (u *wireUser) toDomain() *domain.User {
	return &domain.User{
		CPF:       u.CPF,
		Email:     u.Email,
		CreatedAt: parseTime(u.CreatedAt),
	}
}

// parseTime decodes backend timestamps, tolerating absent values and both
// RFC 3339 variants the backend has emitted over time
func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// rawString renders a JSON scalar (string or number) as its text form
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
