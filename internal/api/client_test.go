package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/bazarteer/bazaar/internal/metrics"
)

type staticCreds string

func (s staticCreds) Credential() (string, bool) { return string(s), s != "" }

func newTestClient(t *testing.T, url string, creds Credentials) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:     url,
		MaxRetries:  2,
		Credentials: creds,
		RetryWait:   time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestRecommendedSendsBearerCredential(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"products":[{"id":7,"name":"Lamp","price":12.5,"content":["https://b/x.jpg"]}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, staticCreds("tok_abc"))
	items, err := c.Recommended(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok_abc", gotAuth)
	assert.Equal(t, "/product/getRecommended", gotPath)
	require.Len(t, items, 1)
	assert.Equal(t, ID("7"), items[0].ID)
	assert.Equal(t, "12.50", items[0].PriceString())
}

func TestAuthenticatedCallWithoutSessionSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, staticCreds(""))
	_, err := c.Recommended(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	err = c.Publish(context.Background(), PublishRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, hits.Load())
}

func TestGetRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"id":"u1","username":"ana","num_sales":3}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, staticCreds("tok"))
	p, err := c.UserByID(context.Background(), OwnProfileID)
	require.NoError(t, err)
	assert.Equal(t, "ana", p.Username)
	assert.Equal(t, 3, p.Sales)
	assert.EqualValues(t, 3, hits.Load())
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, staticCreds("tok"))
	_, err := c.Recommended(context.Background())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.EqualValues(t, 3, hits.Load(), "one attempt plus two retries")
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"no such user"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, staticCreds("tok"))
	_, err := c.UserByID(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, "no such user", MessageOr(err, "fallback"))
	assert.EqualValues(t, 1, hits.Load())
}

func TestPostIsNeverRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"db down"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, staticCreds("tok"))
	err := c.PlaceOrder(context.Background(), OrderRequest{ProductID: "1"})
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
	assert.True(t, HasErrorField(err))
	assert.Contains(t, err.Error(), "db down")
}

func TestLoginReturnsSanitizedCredential(t *testing.T) {
	var got loginRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, "\"tok_abc\"\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	cred, err := c.Login(context.Background(), "ana", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok_abc", cred)
	assert.Equal(t, loginRequest{Username: "ana", Password: "secret1"}, got)
}

func TestLoginFailureCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Invalid credentials"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Login(context.Background(), "ana", "wrong")
	assert.Equal(t, "Invalid credentials", MessageOr(err, "Login failed"))
}

func TestPutBlobSendsBlockBlobWithoutAuth(t *testing.T) {
	var gotType, gotBlob, gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotType = r.Header.Get("Content-Type")
		gotBlob = r.Header.Get("x-ms-blob-type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, "http://api.invalid", staticCreds("tok"))
	err := c.PutBlob(context.Background(), srv.URL+"/container/photo_1.jpg?sig=abc", "image/jpeg", []byte("jpegdata"))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "BlockBlob", gotBlob)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "jpegdata", string(gotBody))
}

func TestListingsByOwnerAcceptsBothShapes(t *testing.T) {
	for name, body := range map[string]string{
		"array":   `[{"id":"a"},{"id":"b"}]`,
		"wrapped": `{"products":[{"id":"a"},{"id":"b"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "u9", r.URL.Query().Get("userId"))
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, staticCreds("tok"))
			got, err := c.ListingsByOwner(context.Background(), "u9")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, ID("b"), got[1].ID)
		})
	}
}

func TestUploadURLRequiresBothURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "photo_1.jpg", r.URL.Query().Get("filename"))
		_, _ = io.WriteString(w, `{"uploadUrl":"https://s/w?sig=1"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, staticCreds("tok"))
	_, err := c.UploadURL(context.Background(), "photo_1.jpg")
	assert.Error(t, err)
}

func TestRequestsCarryTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_, _ = io.WriteString(w, `{"products":[]}`)
	}))
	defer srv.Close()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	c := newTestClient(t, srv.URL, staticCreds("tok"))
	_, err := c.Recommended(ctx)
	require.NoError(t, err)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", traceparent)
}

func TestRequestsAreCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"products":[]}`)
	}))
	defer srv.Close()

	m := metrics.New()
	c, err := New(Options{BaseURL: srv.URL, Credentials: staticCreds("tok"), Metrics: m})
	require.NoError(t, err)

	_, err = c.Recommended(context.Background())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(m.Gatherer(), "bazaar_api_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, srv.URL, staticCreds("tok"))
	_, err := c.Recommended(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestUserIDFromCredential(t *testing.T) {
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	id, err := UserIDFromCredential(sign(jwt.MapClaims{"sub": "u-17"}))
	require.NoError(t, err)
	assert.Equal(t, "u-17", id)

	id, err = UserIDFromCredential(sign(jwt.MapClaims{"userId": float64(42)}))
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	_, err = UserIDFromCredential(sign(jwt.MapClaims{"role": "x"}))
	assert.Error(t, err)

	_, err = UserIDFromCredential("opaque-token")
	assert.Error(t, err)
}
