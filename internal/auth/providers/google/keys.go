package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/notesauth/internal/auth/providers"
)

type discoveryDoc struct {
	Issuer        string `json:"issuer"`
	AuthEndpoint  string `json:"authorization_endpoint"`
	TokenEndpoint string `json:"token_endpoint"`
	JWKSURI       string `json:"jwks_uri"`
}

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

func (p *Provider) discovery(ctx context.Context) (*discoveryDoc, error) {
	p.mu.RLock()
	d := p.disc
	fresh := d != nil && time.Since(p.discAt) < discoveryTTL
	p.mu.RUnlock()
	if fresh {
		return d, nil
	}

	d, err := providers.Call(ctx, p.timeout, name, "discovery", func(ctx context.Context) (*discoveryDoc, error) {
		var dd discoveryDoc
		if _, _, err := p.getJSON(ctx, p.cfg.DiscoveryURL, "", &dd); err != nil {
			return nil, err
		}
		if dd.Issuer == "" || dd.TokenEndpoint == "" || dd.JWKSURI == "" {
			return nil, errors.New("incomplete discovery document")
		}
		return &dd, nil
	})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.disc = d
	p.discAt = time.Now()
	p.mu.Unlock()
	return d, nil
}

// keySet returns the cached JWKS, refreshing it when stale or when force is set.
func (p *Provider) keySet(ctx context.Context, uri string, force bool) (*jwks, error) {
	p.mu.RLock()
	j, etag := p.keys, p.keysETag
	fresh := j != nil && time.Since(p.keysAt) < jwksTTL
	p.mu.RUnlock()
	if fresh && !force {
		return j, nil
	}

	type result struct {
		set         *jwks
		etag        string
		notModified bool
	}
	res, err := providers.Call(ctx, p.timeout, name, "jwks", func(ctx context.Context) (result, error) {
		var jj jwks
		status, newTag, err := p.getJSON(ctx, uri, etag, &jj)
		if err != nil {
			return result{}, err
		}
		if status == http.StatusNotModified {
			return result{notModified: true}, nil
		}
		return result{set: &jj, etag: newTag}, nil
	})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.keysAt = time.Now()
	if !res.notModified || p.keys == nil {
		if res.set == nil {
			return nil, errors.New("jwks not modified but nothing cached")
		}
		p.keys = res.set
		p.keysETag = res.etag
	}
	return p.keys, nil
}

// rsaKeyForKid finds kid in the JWKS, refetching once on a miss so rotated
// keys are picked up before the cache expires.
func (p *Provider) rsaKeyForKid(ctx context.Context, d *discoveryDoc, kid string) (*rsa.PublicKey, error) {
	for attempt := 0; attempt < 2; attempt++ {
		set, err := p.keySet(ctx, d.JWKSURI, attempt > 0)
		if err != nil {
			return nil, err
		}
		for _, k := range set.Keys {
			if k.Kid == kid && strings.EqualFold(k.Kty, "RSA") {
				return parseRSA(k)
			}
		}
	}
	return nil, fmt.Errorf("kid %q not found", kid)
}

func parseRSA(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := 65537
	if len(eb) > 0 {
		e = 0
		for _, b := range eb {
			e = (e << 8) | int(b)
		}
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

func (p *Provider) getJSON(ctx context.Context, uri, etag string, out any) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return resp.StatusCode, etag, nil
	}
	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, "", fmt.Errorf("GET %s: status %d", uri, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, "", fmt.Errorf("decode %s: %w", uri, err)
	}
	return resp.StatusCode, resp.Header.Get("ETag"), nil
}
