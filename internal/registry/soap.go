package registry

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/louisbranch/teryt-cache/internal/platform/timeouts"
)

const dateLayout = "2006-01-02"

// soapOps binds each catalog to its registry operation names.
var soapOps = map[Catalog]struct {
	version  string
	snapshot string
	changes  string
}{
	CatalogTERC: {"PobierzDateAktualnegoKatTerc", "PobierzKatalogTERC", "PobierzZmianyTercUrzedowy"},
	CatalogSIMC: {"PobierzDateAktualnegoKatSimc", "PobierzKatalogSIMC", "PobierzZmianySimcUrzedowy"},
	CatalogULIC: {"PobierzDateAktualnegoKatUlic", "PobierzKatalogULIC", "PobierzZmianyUlicUrzedowy"},
	// The kind dictionary has no probe or change stream of its own; it
	// is released together with the unit catalog.
	CatalogWMRODZ: {"PobierzDateAktualnegoKatTerc", "PobierzKatalogWMRODZ", ""},
}

// SOAPConfig configures the registry SOAP client.
type SOAPConfig struct {
	Endpoint string
	Username string
	Password string
	// HTTPClient overrides the transport; nil uses http.DefaultClient.
	HTTPClient *http.Client
	// MaxTries caps transport retries per call; zero uses a default.
	MaxTries uint
}

// SOAPClient talks to the registry's SOAP endpoint with a WS-Security
// username token. Transport failures are retried with exponential
// backoff; HTTP 4xx responses and context errors are not retried.
type SOAPClient struct {
	endpoint string
	username string
	password string
	http     *http.Client
	maxTries uint
}

// NewSOAPClient creates a registry client.
func NewSOAPClient(cfg SOAPConfig) (*SOAPClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("registry endpoint is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 4
	}
	return &SOAPClient{
		endpoint: cfg.Endpoint,
		username: cfg.Username,
		password: cfg.Password,
		http:     httpClient,
		maxTries: maxTries,
	}, nil
}

// CurrentVersion probes the latest published version of a catalog.
func (c *SOAPClient) CurrentVersion(ctx context.Context, cat Catalog) (Version, error) {
	ops, ok := soapOps[cat]
	if !ok {
		return 0, fmt.Errorf("unknown catalog %q", cat)
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.RegistryProbe)
	defer cancel()

	body, err := c.call(ctx, ops.version, nil)
	if err != nil {
		return 0, fmt.Errorf("probe %s version: %w", cat, err)
	}
	text, ok := elementText(body, ops.version+"Result")
	if !ok {
		return 0, fmt.Errorf("probe %s version: response has no result", cat)
	}
	date, err := time.Parse(dateLayout, text)
	if err != nil {
		return 0, fmt.Errorf("probe %s version: bad date %q: %w", cat, text, err)
	}
	return VersionFromTime(date), nil
}

// Snapshot fetches and decodes the full catalog at a version.
func (c *SOAPClient) Snapshot(ctx context.Context, cat Catalog, version Version) ([]map[string]string, error) {
	ops, ok := soapOps[cat]
	if !ok {
		return nil, fmt.Errorf("unknown catalog %q", cat)
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.RegistryDownload)
	defer cancel()

	log.Printf("downloading %s catalog", cat)
	body, err := c.call(ctx, ops.snapshot, [][2]string{
		{"DataKatalogu", version.Time().Format(dateLayout)},
	})
	if err != nil {
		return nil, fmt.Errorf("download %s catalog: %w", cat, err)
	}
	doc, err := c.payload(body)
	if err != nil {
		return nil, fmt.Errorf("download %s catalog: %w", cat, err)
	}
	log.Printf("downloading %s catalog - done", cat)
	return ParseRows(doc)
}

// Changes fetches the ordered change records between two versions.
func (c *SOAPClient) Changes(ctx context.Context, cat Catalog, from, to Version) ([]Change, error) {
	ops, ok := soapOps[cat]
	if !ok {
		return nil, fmt.Errorf("unknown catalog %q", cat)
	}
	if ops.changes == "" {
		return nil, fmt.Errorf("catalog %q has no change stream", cat)
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.RegistryDownload)
	defer cancel()

	log.Printf("downloading %s changes from %s to %s", cat, from.Time().Format(dateLayout), to.Time().Format(dateLayout))
	body, err := c.call(ctx, ops.changes, [][2]string{
		{"DataPoczatkowa", from.Time().Format(dateLayout)},
		{"DataKoncowa", to.Time().Format(dateLayout)},
	})
	if err != nil {
		return nil, fmt.Errorf("download %s changes: %w", cat, err)
	}
	doc, err := c.payload(body)
	if err != nil {
		return nil, fmt.Errorf("download %s changes: %w", cat, err)
	}
	return ParseChanges(doc)
}

// payload extracts the base64 zip attachment from a response body and
// returns the XML document inside it.
func (c *SOAPClient) payload(body []byte) ([]byte, error) {
	encoded, ok := elementText(body, "plik_zawartosc")
	if !ok {
		return nil, errors.New("response has no payload attachment")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode payload attachment: %w", err)
	}
	return DecodeArchive(raw)
}

func (c *SOAPClient) call(ctx context.Context, action string, params [][2]string) ([]byte, error) {
	envelope := buildEnvelope(c.username, c.password, action, params)

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(envelope))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
		req.Header.Set("SOAPAction", action)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(fmt.Errorf("%s: %w", action, ErrSyncTimeout))
			}
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s: registry returned %s", action, resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("%s: registry returned %s", action, resp.Status))
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrSyncTimeout) {
			return nil, fmt.Errorf("%s: %w", action, ErrSyncTimeout)
		}
		return nil, err
	}
	return body, nil
}

func buildEnvelope(username, password, action string, params [][2]string) string {
	var b strings.Builder
	b.WriteString(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:ns="http://tempuri.org/">`)
	b.WriteString(`<soap:Header><wsse:Security xmlns:wsse="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd">`)
	b.WriteString(`<wsse:UsernameToken><wsse:Username>`)
	_ = xml.EscapeText(&b, []byte(username))
	b.WriteString(`</wsse:Username><wsse:Password>`)
	_ = xml.EscapeText(&b, []byte(password))
	b.WriteString(`</wsse:Password></wsse:UsernameToken></wsse:Security></soap:Header>`)
	b.WriteString(`<soap:Body><ns:` + action + `>`)
	for _, param := range params {
		b.WriteString(`<ns:` + param[0] + `>`)
		_ = xml.EscapeText(&b, []byte(param[1]))
		b.WriteString(`</ns:` + param[0] + `>`)
	}
	b.WriteString(`</ns:` + action + `></soap:Body></soap:Envelope>`)
	return b.String()
}

// elementText finds the text content of the first element with the
// given local name, case-insensitively.
func elementText(doc []byte, localName string) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var inside bool
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if strings.EqualFold(t.Name.Local, localName) {
				inside = true
			}
		case xml.CharData:
			if inside {
				text.Write(t)
			}
		case xml.EndElement:
			if inside && strings.EqualFold(t.Name.Local, localName) {
				return strings.TrimSpace(text.String()), true
			}
		}
	}
}
