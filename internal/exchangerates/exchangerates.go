// Package exchangerates refreshes the currency conversion tables storefronts read from blob storage.
package exchangerates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"headstart/pkg/blob"
	"headstart/pkg/metrics"
)

// Rate is the value of one unit of the base currency in Currency.
type Rate struct {
	Currency string          `json:"Currency"`
	Rate     decimal.Decimal `json:"Rate"`
}

// Table is the document written to "<BASE>.json".
type Table struct {
	BaseCurrency string    `json:"BaseCurrency"`
	Rates        []Rate    `json:"Rates"`
	Updated      time.Time `json:"Updated"`
}

type Updater struct {
	sourceURL string
	bases     []string
	store     blob.Store
	hc        *http.Client
	log       *zap.SugaredLogger
	now       func() time.Time
}

func New(sourceURL string, bases []string, store blob.Store, log *zap.SugaredLogger) *Updater {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Updater{
		sourceURL: sourceURL,
		bases:     bases,
		store:     store,
		hc:        &http.Client{Timeout: 20 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		log:       log,
		now:       time.Now,
	}
}

type sourceResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Update fetches a table per base currency and overwrites its blob. All bases are attempted.
func (u *Updater) Update(ctx context.Context) error {
	if u.sourceURL == "" {
		return errors.New("exchange rates source url is not configured")
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, base := range u.bases {
		base := strings.ToUpper(strings.TrimSpace(base))
		if base == "" {
			continue
		}
		g.Go(func() error {
			t, err := u.fetch(ctx, base)
			if err != nil {
				return err
			}
			b, err := json.Marshal(t)
			if err != nil {
				return err
			}
			if err := u.store.Save(ctx, base+".json", b, "application/json"); err != nil {
				return err
			}
			u.log.Debugw("exchange rates updated", "base", base, "currencies", len(t.Rates))
			return nil
		})
	}
	return g.Wait()
}

func (u *Updater) fetch(ctx context.Context, base string) (t Table, err error) {
	defer func() { metrics.RemoteCalls.WithLabelValues("exchangerates.fetch", metrics.Outcome(err)).Inc() }()
	q := url.Values{}
	q.Set("base", base)
	sep := "?"
	if strings.Contains(u.sourceURL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.sourceURL+sep+q.Encode(), nil)
	if err != nil {
		return Table{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := u.hc.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("exchange rates %s: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Table{}, fmt.Errorf("exchange rates %s: status %d: %s", base, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var src sourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&src); err != nil {
		return Table{}, fmt.Errorf("exchange rates %s: decode: %w", base, err)
	}
	if len(src.Rates) == 0 {
		return Table{}, fmt.Errorf("exchange rates %s: empty rate table", base)
	}
	t = Table{BaseCurrency: base, Updated: u.now().UTC(), Rates: make([]Rate, 0, len(src.Rates))}
	for cur, r := range src.Rates {
		if !r.IsPositive() {
			continue
		}
		t.Rates = append(t.Rates, Rate{Currency: strings.ToUpper(cur), Rate: r})
	}
	sort.Slice(t.Rates, func(i, j int) bool { return t.Rates[i].Currency < t.Rates[j].Currency })
	return t, nil
}
