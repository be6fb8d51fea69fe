package goodreads

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bookscout/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bookscout/goodreads")

const DefaultBaseUrl = "https://www.goodreads.com/"

var instrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput enables request/response dumps for clients
// created afterwards. Call before NewClient.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	instrumentOutput = output
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// the raw cookie header copied out of a logged-in browser
	// session. optional: anonymous pages (lists, shelves, books)
	// work without it, review lists generally do not.
	Cookie string
}

// Client performs the network retrieval for source keys. One HTTP
// request per Fetch, no internal retries; what to do about a failed
// page is the caller's call.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	base := opts.BaseUrl
	if base == "" {
		base = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0")
	if opts.Cookie != "" {
		client.SetHeader("cookie", opts.Cookie)
	}
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, instrumentOutput)

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

type FetchReason string

const (
	// the request never produced a response
	ReasonNetwork FetchReason = "network"
	// a response arrived with a non-2xx status
	ReasonStatus FetchReason = "status"
	// the site asked us to back off
	ReasonRateLimited FetchReason = "rate-limited"
)

// FetchError is every way a fetch can fail, normalized. Reason tells
// the loader's logs whether a retry later might help; Key says which
// page was lost.
type FetchError struct {
	Key    SourceKey
	Reason FetchReason
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (http %d)", e.Key, e.Reason, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Key, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetch retrieves the raw page behind key. Exactly one request goes
// out; callers that already hold a cached copy must not call this.
func (c *Client) Fetch(ctx context.Context, key SourceKey) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()))

	err := key.Validate()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid source key")
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(key.Path())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, &FetchError{Key: key, Reason: ReasonNetwork, Err: err}
	}
	if res.StatusCode() == http.StatusTooManyRequests {
		span.SetStatus(codes.Error, "rate limited")
		return nil, &FetchError{Key: key, Reason: ReasonRateLimited, Status: res.StatusCode()}
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "bad status")
		return nil, &FetchError{Key: key, Reason: ReasonStatus, Status: res.StatusCode()}
	}

	return res.Body(), nil
}
