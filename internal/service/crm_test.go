package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

type fakeCRM struct {
	contactCalls atomic.Int32
	status       int
}

func (f *fakeCRM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	if r.Method != http.MethodPost || r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req crmSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	object := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/crm/v3/objects/"), "/search")
	var resp crmSearchResponse
	switch object {
	case "contacts":
		f.contactCalls.Add(1)
		if req.FilterGroups[0].Filters[0].Value == "ana@exemplo.com" {
			resp.Results = []crmObject{{ID: "501", Properties: map[string]string{
				"email":       "ana@exemplo.com",
				"firstname":   "Ana",
				"lastname":    "Souza",
				"mobilephone": "+5511999999999",
			}}}
		}
	case "deals":
		resp.Results = []crmObject{
			{ID: "d1", Properties: map[string]string{"amount": "1000.50"}},
			{ID: "d2", Properties: map[string]string{"amount": "2000"}},
			{ID: "d3", Properties: map[string]string{"amount": ""}},
		}
	case "tickets":
		resp.Results = []crmObject{{ID: "t1"}}
	case "notes", "emails":
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	resp.Total = len(resp.Results)
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestCRM(t *testing.T, h http.Handler) *CRMService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCRMService(&config.Config{
		CRMBaseURL:     srv.URL,
		CRMToken:       "tok",
		CRMEmailDomain: "exemplo.com",
	})
}

func TestCRMService_Resolve(t *testing.T) {
	fake := &fakeCRM{}
	svc := newTestCRM(t, fake)

	c, err := svc.Resolve(context.Background(), "42", "ana")
	require.NoError(t, err)
	assert.Equal(t, "501", c.ID)
	assert.Equal(t, "Ana", c.FirstName)
	assert.Equal(t, "Souza", c.LastName)
	assert.Equal(t, "+5511999999999", c.Phone)

	require.NotNil(t, c.Context)
	assert.Equal(t, 3, c.Context.Deals)
	assert.Equal(t, 1, c.Context.Tickets)
	assert.Equal(t, 0, c.Context.Notes)
	assert.True(t, decimal.RequireFromString("3000.50").Equal(c.Context.TotalValue))

	again, err := svc.Resolve(context.Background(), "42", "@Ana")
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.EqualValues(t, 1, fake.contactCalls.Load())
}

func TestCRMService_ResolveNotFound(t *testing.T) {
	svc := newTestCRM(t, &fakeCRM{})

	_, err := svc.Resolve(context.Background(), "42", "bruno")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	_, err = svc.Resolve(context.Background(), "42", "")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCRMService_ServerError(t *testing.T) {
	svc := newTestCRM(t, &fakeCRM{status: http.StatusInternalServerError})

	_, err := svc.Resolve(context.Background(), "42", "ana")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCRMService_EmailFor(t *testing.T) {
	svc := NewCRMService(&config.Config{CRMEmailDomain: "exemplo.com"})

	assert.Equal(t, "ana@exemplo.com", svc.emailFor("Ana"))
	assert.Equal(t, "ana@exemplo.com", svc.emailFor("@ana"))
	assert.Equal(t, "ana@pareto.io", svc.emailFor("Ana@Pareto.io"))
	assert.Empty(t, svc.emailFor("  "))
}
