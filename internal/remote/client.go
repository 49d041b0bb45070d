// Package remote performs direct backend lookups when the local catalog is
// stale, absent or explicitly bypassed. Results are normalised into the same
// row model the local store produces.
package remote

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/retailkit/catalog/model"
	"github.com/retailkit/catalog/pkg/errx"
)

const defaultTimeout = 5 * time.Second

type Config struct {
	// SKUURL is the lookup endpoint with a {sku} placeholder.
	SKUURL string
	// CodeURL is the code lookup endpoint; code, template and shopID travel
	// as query parameters.
	CodeURL string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.SugaredLogger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  zap.S().Named("remote"),
	}
}

// ProductBySKU looks a product up at the backend. A not-available product is
// reported as not found, exactly like the local store would.
func (c *Client) ProductBySKU(ctx context.Context, sku, shopID string) (model.Product, error) {
	u := strings.Replace(c.cfg.SKUURL, "{sku}", url.PathEscape(sku), 1)
	body, err := c.get(ctx, u, url.Values{"shopID": {shopID}})
	if err != nil {
		return model.Product{}, err
	}
	p, err := decodeProduct(body)
	if err != nil {
		return model.Product{}, errors.Wrap(errx.ErrServer, err.Error())
	}
	if p.Availability == model.NotAvailable {
		return model.Product{}, errx.ErrProductNotFound
	}
	return p, nil
}

// ProductByCodes issues one lookup per (code, template) pair concurrently
// and returns the first success by completion order. More than one success
// is an anomaly worth logging, not an error.
func (c *Client) ProductByCodes(ctx context.Context, pairs []model.CodeTemplate, shopID string) (model.ScannedProduct, error) {
	if len(pairs) == 0 {
		return model.ScannedProduct{}, errx.ErrProductNotFound
	}

	type outcome struct {
		sp  model.ScannedProduct
		err error
	}
	results := make(chan outcome, len(pairs))
	for _, pair := range pairs {
		go func(pair model.CodeTemplate) {
			sp, err := c.productByCode(ctx, pair, shopID)
			results <- outcome{sp: sp, err: err}
		}(pair)
	}

	var (
		firstErr  error
		successes int
		won       model.ScannedProduct
	)
	for range pairs {
		o := <-results
		if o.err != nil {
			if firstErr == nil || errors.Is(firstErr, errx.ErrProductNotFound) {
				firstErr = o.err
			}
			continue
		}
		successes++
		if successes == 1 {
			won = o.sp
		}
	}
	if successes == 0 {
		return model.ScannedProduct{}, firstErr
	}
	if successes > 1 {
		c.log.Warnw("multiple code lookups matched", "code", won.Code, "matches", successes)
	}
	return won, nil
}

func (c *Client) productByCode(ctx context.Context, pair model.CodeTemplate, shopID string) (model.ScannedProduct, error) {
	body, err := c.get(ctx, c.cfg.CodeURL, url.Values{
		"code":     {pair.Code},
		"template": {pair.Template},
		"shopID":   {shopID},
	})
	if err != nil {
		return model.ScannedProduct{}, err
	}
	sp, err := decodeScannedProduct(body, pair)
	if err != nil {
		return model.ScannedProduct{}, errors.Wrap(errx.ErrServer, err.Error())
	}
	if sp.Product.Availability == model.NotAvailable {
		return model.ScannedProduct{}, errx.ErrProductNotFound
	}
	return sp, nil
}

// get classifies failures into the lookup taxonomy: transport errors are
// network errors, 404 is not-found, any other non-2xx is a server error.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errx.ErrServer, err.Error())
	}
	q := req.URL.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errx.ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errx.ErrProductNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Wrapf(errx.ErrServer, "status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errx.ErrNetwork, err.Error())
	}
	return body, nil
}
