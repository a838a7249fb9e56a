package dvf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

// ErrNoData is returned when the API answers without a result list.
var ErrNoData = errors.New("dvf: no data available for this postal code")

// maxBodyBytes caps the size of an API response.
const maxBodyBytes = 64 << 20

// Options configure a Client.
type Options struct {
	BaseURL      string
	PropertyType string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client fetches transactions from the DVF API.
type Client struct {
	baseURL      string
	propertyType string
	http         *http.Client
	schema       *jsonschema.Schema
	logger       *utils.Logger
}

// NewClient creates a Client. A nil HTTPClient is replaced by one using Timeout.
func NewClient(opts Options, logger *utils.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("dvf: base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("dvf: parse base URL: %w", err)
	}
	schema, err := compileEnvelopeSchema()
	if err != nil {
		return nil, err
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	propertyType := opts.PropertyType
	if propertyType == "" {
		propertyType = "Appartement"
	}

	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		propertyType: propertyType,
		http:         hc,
		schema:       schema,
		logger:       logger,
	}, nil
}

// Fetch downloads all transactions of the configured property type for a
// postal code.
func (c *Client) Fetch(ctx context.Context, postalCode string) (*models.TransactionSet, error) {
	q := url.Values{}
	q.Set("code_postal", postalCode)
	q.Set("type_local", c.propertyType)
	endpoint := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dvf: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dvf: fetch %s: %w", postalCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dvf: fetch %s: unexpected status %s", postalCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("dvf: read body: %w", err)
	}

	set, err := c.decode(body)
	if err != nil {
		return nil, err
	}
	set.PostalCode = postalCode
	c.logger.Info("[dvf] fetched %d transactions for %s in %v (%d available)",
		len(set.Transactions), postalCode, time.Since(start).Round(time.Millisecond), set.TotalAvailable)
	return set, nil
}

func (c *Client) decode(body []byte) (*models.TransactionSet, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("dvf: decode body: %w", err)
	}

	envelope, ok := doc.(map[string]any)
	if !ok || envelope["resultats"] == nil {
		return nil, ErrNoData
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("dvf: unexpected response shape: %w", err)
	}

	items, _ := envelope["resultats"].([]any)
	set := &models.TransactionSet{
		Transactions: make([]models.RawTransaction, 0, len(items)),
		LastUpdated:  stringField(envelope, "derniere_maj"),
	}
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			set.Transactions = append(set.Transactions, toRawTransaction(m))
		}
	}
	if n, ok := envelope["nb_resultats"].(float64); ok {
		set.TotalAvailable = int(n)
	} else {
		set.TotalAvailable = len(set.Transactions)
	}
	return set, nil
}
