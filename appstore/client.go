package appstore

import (
	"compress/gzip"
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.appstoreconnect.apple.com"

// tokens are short-lived; Apple caps them at 20 minutes.
const tokenLifetime = 10 * time.Minute

// ReportFetcher is the surface the pipeline needs from the App Store Connect
// API: one daily report as raw tab-delimited bytes.
type ReportFetcher interface {
	GetSalesReport(ctx context.Context, date string) ([]byte, error)
	GetSubscriptionEventsReport(ctx context.Context, date string) ([]byte, error)
}

// ErrReportNotAvailable means the API has no report for the requested date,
// typically because it has not been generated yet.
var ErrReportNotAvailable = errors.New("report not available")

// Client talks to the App Store Connect sales reports endpoint.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	vendorNumber string
	keyID        string
	issuerID     string
	privateKey   *ecdsa.PrivateKey
	now          func() time.Time
}

// NewClient builds a reports client from App Store Connect API credentials.
// privateKeyPEM is the .p8 signing key downloaded from App Store Connect.
func NewClient(vendorNumber, keyID, issuerID string, privateKeyPEM []byte) (*Client, error) {
	if vendorNumber == "" || keyID == "" || issuerID == "" {
		return nil, errors.New("vendor number, key ID and issuer ID are all required")
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "parsing App Store private key")
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      defaultBaseURL,
		vendorNumber: vendorNumber,
		keyID:        keyID,
		issuerID:     issuerID,
		privateKey:   key,
		now:          time.Now,
	}, nil
}

// GetSalesReport fetches the daily sales summary report for date (YYYY-MM-DD).
func (c *Client) GetSalesReport(ctx context.Context, date string) ([]byte, error) {
	return c.fetchReport(ctx, url.Values{
		"filter[frequency]":     {"DAILY"},
		"filter[reportType]":    {"SALES"},
		"filter[reportSubType]": {"SUMMARY"},
		"filter[reportDate]":    {date},
		"filter[vendorNumber]":  {c.vendorNumber},
	})
}

// GetSubscriptionEventsReport fetches the daily subscription event report for
// date (YYYY-MM-DD).
func (c *Client) GetSubscriptionEventsReport(ctx context.Context, date string) ([]byte, error) {
	return c.fetchReport(ctx, url.Values{
		"filter[frequency]":     {"DAILY"},
		"filter[reportType]":    {"SUBSCRIPTION_EVENT"},
		"filter[reportSubType]": {"SUMMARY"},
		"filter[version]":       {"1_3"},
		"filter[reportDate]":    {date},
		"filter[vendorNumber]":  {c.vendorNumber},
	})
}

func (c *Client) fetchReport(ctx context.Context, filters url.Values) ([]byte, error) {
	token, err := c.signToken()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/salesReports?"+filters.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building report request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/a-gzip, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "requesting report")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(ErrReportNotAvailable, "date %s", filters.Get("filter[reportDate]"))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("report request failed with status %d: %s", resp.StatusCode, body)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing report")
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrap(err, "reading report body")
	}
	return data, nil
}

func (c *Client) signToken() (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": c.issuerID,
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
		"aud": "appstoreconnect-v1",
	})
	token.Header["kid"] = c.keyID

	signed, err := token.SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("error signing API token: %w", err)
	}
	return signed, nil
}
