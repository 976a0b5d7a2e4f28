package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

// CRMService correlates chat users with CRM contacts.
type CRMService struct {
	baseURL     string
	token       string
	emailDomain string
	httpClient  *http.Client
	cache       *CustomerCache
	log         *slog.Logger
	now         func() time.Time
}

func NewCRMService(cfg *config.Config) *CRMService {
	return &CRMService{
		baseURL:     strings.TrimRight(cfg.CRMBaseURL, "/"),
		token:       cfg.CRMToken,
		emailDomain: cfg.CRMEmailDomain,
		httpClient:  &http.Client{Timeout: config.CRMRequestTimeout},
		cache:       NewCustomerCache(config.CustomerCacheTTL),
		log:         slog.Default().With(slog.String("component", "service.crm")),
		now:         time.Now,
	}
}

type crmFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type crmFilterGroup struct {
	Filters []crmFilter `json:"filters"`
}

type crmSearchRequest struct {
	FilterGroups []crmFilterGroup `json:"filterGroups"`
	Properties   []string         `json:"properties,omitempty"`
	Limit        int              `json:"limit"`
}

type crmObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type crmSearchResponse struct {
	Total   int         `json:"total"`
	Results []crmObject `json:"results"`
}

// Resolve looks the user up by e-mail. Usernames without "@" are mapped to
// the configured e-mail domain.
func (s *CRMService) Resolve(ctx context.Context, identity, displayName string) (*domain.Customer, error) {
	email := s.emailFor(displayName)
	if email == "" {
		return nil, domain.ErrCustomerNotFound
	}
	if c := s.cache.Get(email); c != nil {
		return c, nil
	}

	contact, err := s.findContact(ctx, email)
	if err != nil {
		return nil, err
	}

	customer := &domain.Customer{
		ID:        contact.ID,
		Email:     contact.Properties["email"],
		FirstName: contact.Properties["firstname"],
		LastName:  contact.Properties["lastname"],
		Phone:     firstNonEmpty(contact.Properties["phone"], contact.Properties["mobilephone"]),
	}

	cc, err := s.CollectContext(ctx, customer.ID)
	if err != nil {
		s.log.WarnContext(ctx, "crm context collection failed", "identity", identity, "contact_id", customer.ID, "error", err)
	} else {
		customer.Context = cc
	}

	s.cache.Set(email, customer)
	return customer, nil
}

func (s *CRMService) emailFor(displayName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(displayName), "@")
	if name == "" {
		return ""
	}
	if strings.Contains(name, "@") {
		return strings.ToLower(name)
	}
	return strings.ToLower(name) + "@" + s.emailDomain
}

func (s *CRMService) findContact(ctx context.Context, email string) (*crmObject, error) {
	resp, err := s.search(ctx, "contacts", crmSearchRequest{
		FilterGroups: []crmFilterGroup{{Filters: []crmFilter{{PropertyName: "email", Operator: "EQ", Value: email}}}},
		Properties:   []string{"email", "firstname", "lastname", "phone", "mobilephone"},
		Limit:        1,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, domain.ErrCustomerNotFound
	}
	return &resp.Results[0], nil
}

// CollectContext counts the contact's CRM activity over the last 30 days.
func (s *CRMService) CollectContext(ctx context.Context, contactID string) (*domain.CustomerContext, error) {
	since := s.now().Add(-config.CRMContextWindow)
	cutoff := strconv.FormatInt(since.UnixMilli(), 10)

	var deals, tickets, notes, emails []crmObject
	g, gctx := errgroup.WithContext(ctx)
	for object, dst := range map[string]*[]crmObject{
		"deals":   &deals,
		"tickets": &tickets,
		"notes":   &notes,
		"emails":  &emails,
	} {
		g.Go(func() error {
			resp, err := s.search(gctx, object, crmSearchRequest{
				FilterGroups: []crmFilterGroup{{Filters: []crmFilter{
					{PropertyName: "associations.contact", Operator: "EQ", Value: contactID},
					{PropertyName: "createdate", Operator: "GTE", Value: cutoff},
				}}},
				Limit: 100,
			})
			if err != nil {
				return err
			}
			*dst = resp.Results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, d := range deals {
		if amount, err := decimal.NewFromString(d.Properties["amount"]); err == nil {
			total = total.Add(amount)
		}
	}

	return &domain.CustomerContext{
		Deals:      len(deals),
		Tickets:    len(tickets),
		Notes:      len(notes),
		Emails:     len(emails),
		TotalValue: total,
		Since:      since,
	}, nil
}

func (s *CRMService) search(ctx context.Context, object string, body crmSearchRequest) (*crmSearchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/crm/v3/objects/%s/search", s.baseURL, object)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", object, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %s: unexpected status %d", object, resp.StatusCode)
	}

	var out crmSearchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", object, err)
	}
	return &out, nil
}

// PurgeCache drops expired customers; called from the cleanup loop.
func (s *CRMService) PurgeCache() int {
	return s.cache.Purge()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
