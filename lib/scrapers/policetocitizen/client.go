package policetocitizen

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jaisonv/cad-calls/lib/restyutil"
	"github.com/jaisonv/cad-calls/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/policetocitizen")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type ClientOptions struct {
	BaseUrl   string
	VerifySsl bool
	Timeout   time.Duration
	UserAgent string
	// nil means DefaultFieldNames
	Fields *FieldNames
}

type Client struct {
	http   *resty.Client
	site   string
	fields FieldNames
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Hostname() == "" {
		return nil, fmt.Errorf("base url %q has no hostname", opts.BaseUrl)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	} else {
		client.SetTimeout(time.Second * 30)
	}
	if !opts.VerifySsl {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("Accept", "application/json, text/javascript, */*; q=0.01")
	client.SetHeader("X-Requested-With", "XMLHttpRequest")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	telemetry.InstrumentResty(client, "scrapers/policetocitizen/http")

	fields := DefaultFieldNames()
	if opts.Fields != nil {
		fields = *opts.Fields
	}

	return &Client{
		http:   client,
		site:   strings.Split(baseUrl.Hostname(), ".")[0],
		fields: fields,
	}, nil
}

func (c *Client) SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(c.http, tracer, output)
}

// Site is the short name of the portal deployment, the first label of
// the base url's hostname. It keys artifact filenames.
func (c *Client) Site() string {
	return c.site
}

// FetchCalls sends one RequestSpec to the list-calls endpoint. A spec
// built for POST gets at most one retry with the GET query encoding
// when the portal rejects the JSON body with a 500; there is no
// further retry of any kind.
func (c *Client) FetchCalls(ctx context.Context, spec RequestSpec) (*ResultSet, error) {
	ctx, span := tracer.Start(ctx, "FetchCalls")
	defer span.End()

	env, failure := c.attempt(ctx, spec, spec.Method)
	if failure != nil && spec.Method == TransportPost &&
		failure.Kind == HttpError && failure.Status == http.StatusInternalServerError {
		slog.WarnContext(
			ctx, "portal rejected JSON body, falling back to query encoding",
			"site", c.site,
			"agency_id", spec.AgencyId,
			"status", failure.Status,
		)
		env, failure = c.attempt(ctx, spec, TransportGet)
	}
	if failure != nil {
		span.SetStatus(codes.Error, failure.Reason)
		return nil, failure
	}

	return &ResultSet{
		AgencyId:   spec.AgencyId,
		Site:       c.site,
		AgencyName: env.AgencyName,
		Total:      env.Total,
		Retrieved:  time.Now(),
		Params:     spec,
		Calls:      env.Calls,
	}, nil
}

func (c *Client) attempt(ctx context.Context, spec RequestSpec, method Transport) (*Envelope, *Failure) {
	endpoint := fmt.Sprintf("/api/CADCalls/%d", spec.AgencyId)

	slog.DebugContext(
		ctx, "calling list-calls endpoint",
		"endpoint", endpoint,
		"method", method.String(),
		"take", spec.Take,
		"skip", spec.Skip,
	)

	req := c.http.R().SetContext(ctx)

	var res *resty.Response
	var err error
	switch method {
	case TransportGet:
		req.SetQueryParamsFromValues(requestQuery(spec, c.fields.Query))
		res, err = req.Get(endpoint)
	default:
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(requestBody(spec, c.fields.Body))
		res, err = req.Post(endpoint)
	}
	if err != nil {
		return nil, classifyTransportError(err, method)
	}

	env, failure := Classify(c.fields.Response, res.StatusCode(), res.Header(), res.Body())
	if failure != nil {
		failure.Method = method
		return nil, failure
	}
	return env, nil
}

func classifyTransportError(err error, method Transport) *Failure {
	kind := ConnectionError
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = Timeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = Timeout
	}
	return &Failure{
		Kind:   kind,
		Method: method,
		Reason: err.Error(),
	}
}
