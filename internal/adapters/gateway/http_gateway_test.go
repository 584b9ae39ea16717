package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixman/coupon-flow/internal/domain"
	"github.com/pixman/coupon-flow/internal/testutil/mocks"
	"github.com/pixman/coupon-flow/pkg/resilience"
)

func newTestGateway(t *testing.T, handler http.Handler) (*HTTPGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw := NewHTTPGateway(Config{
		GraphQLURL:  server.URL + "/graphql",
		PaymentURL:  server.URL + "/payment",
		APIKey:      "test-key",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		Backoff:     &resilience.FixedBackoff{Delay: time.Millisecond},
	}, server.Client(), mocks.NewMockLogger())
	return gw, server
}

func graphqlResponse(data string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":` + data + `}`))
	})
}

func TestGetMerchant_Success(t *testing.T) {
	var apiKey atomic.Value
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey.Store(r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"getMerchant":{"slug":"padaria-central","displayName":"Padaria Central","status":"ACTIVE","logo":"https://cdn.example.com/logo.png"}}}`))
	}))

	merchant, err := gw.GetMerchant(context.Background(), "padaria-central")
	require.NoError(t, err)
	assert.Equal(t, "Padaria Central", merchant.DisplayName)
	assert.Equal(t, "https://cdn.example.com/logo.png", merchant.LogoURL)
	assert.Equal(t, "test-key", apiKey.Load())
}

func TestGetMerchant_NullIsNotFound(t *testing.T) {
	gw, _ := newTestGateway(t, graphqlResponse(`{"getMerchant":null}`))

	_, err := gw.GetMerchant(context.Background(), "nope")
	assert.True(t, domain.IsNotFoundError(err))
}

func TestListRewardPrograms_TolerantDecoding(t *testing.T) {
	// quantity as string, price in both number and pt-BR string form
	gw, _ := newTestGateway(t, graphqlResponse(`{"listRewardPrograms":[
		{"programName":"Cafezinho","programRule":"10-compras","quantity":"2","reward":"Cafezinho","price":"R$ 5,00"},
		{"programName":"Almoço","programRule":"5-compras","quantity":"oops","reward":"Almoço","price":12.5}
	]}`))

	programs, err := gw.ListRewardPrograms(context.Background(), "padaria-central")
	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.Equal(t, 2, programs[0].Quantity)
	assert.Equal(t, "5", programs[0].Price.String())
	assert.Equal(t, 1, programs[1].Quantity) // unparsable quantity defaults to 1
	assert.Equal(t, "12.5", programs[1].Price.String())
}

func TestGetUser_NullMeansUnknown(t *testing.T) {
	gw, _ := newTestGateway(t, graphqlResponse(`{"getUser":null}`))

	user, err := gw.GetUser(context.Background(), "11144477735")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestListUserCoupons_DecodesBackendShape(t *testing.T) {
	gw, _ := newTestGateway(t, graphqlResponse(`{"listUserCoupons":[
		{"SK":"U#11144477735#RP#Cafezinho#abc","couponCode":"CAFE10","status":"AVAILABLE",
		 "reward":"Cafezinho","programRule":"10-compras","createdAt":"2024-03-10T12:00:00Z"}
	]}`))

	coupons, err := gw.ListUserCoupons(context.Background(), "11144477735", "padaria-central",
		[]domain.CouponStatus{domain.CouponStatusActive, domain.CouponStatusAvailable})
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	assert.Equal(t, "CAFE10", coupons[0].CouponCode)
	assert.Equal(t, domain.CouponStatusAvailable, coupons[0].Status)
	assert.Equal(t, 2024, coupons[0].CreatedAt.Year())
	assert.True(t, coupons[0].ActivatedAt.IsZero())
}

func TestGraphQLErrors_MapToAPIError(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"internal failure"}]}`))
	}))

	_, err := gw.GetUser(context.Background(), "11144477735")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeAPI, domain.GetErrorCode(err))
	// API errors are retried up to MaxAttempts
	assert.Equal(t, int32(3), calls.Load())
}

func TestUnauthorized_IsNotRetried(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := gw.GetUser(context.Background(), "11144477735")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeUnauthorized, domain.GetErrorCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerError_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"getUser":{"cpf":"11144477735","email":"ana@example.com"}}}`))
	}))

	user, err := gw.GetUser(context.Background(), "11144477735")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCreatePayment_PostsIntentAndDecodesPayload(t *testing.T) {
	var body map[string]string
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pixCopiaECola":"00020126pix-payload"}`))
	}))

	creation, err := gw.CreatePayment(context.Background(), "11144477735", "padaria-central", "1", "tok123")
	require.NoError(t, err)
	assert.Equal(t, "00020126pix-payload", creation.Payload)
	assert.Equal(t, "11144477735", body["cpf"])
	assert.Equal(t, "padaria-central", body["merchant_slug"])
	assert.Equal(t, "1", body["reward_program_id"])
	assert.Equal(t, "tok123", body["token"])
}

func TestActivateCoupon_DecodesResult(t *testing.T) {
	gw, _ := newTestGateway(t, graphqlResponse(`{"activateCoupon":{"success":false,"message":"already active today"}}`))

	result, err := gw.ActivateCoupon(context.Background(), "11144477735", "padaria-central", "coupon-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "already active today", result.Message)
}

func TestGetPaymentStatus_DecodesStatus(t *testing.T) {
	gw, _ := newTestGateway(t, graphqlResponse(`{"getPixPaymentStatus":{"status":"CONCLUIDA"}}`))

	status, err := gw.GetPaymentStatus(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Equal(t, "CONCLUIDA", status.Status)
}
