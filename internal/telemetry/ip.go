package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// IPResolver finds the public address of this process once. Concurrent
// callers share a single lookup and every later caller gets the cached
// answer, including a failed ("") one.
type IPResolver struct {
	client    *http.Client
	endpoints []string
	timeout   time.Duration

	group    singleflight.Group
	mu       sync.Mutex
	resolved bool
	ip       string
}

// NewIPResolver tries endpoints in order, each bounded by timeout.
func NewIPResolver(endpoints []string, timeout time.Duration, client *http.Client) *IPResolver {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 3500 * time.Millisecond
	}
	return &IPResolver{client: client, endpoints: endpoints, timeout: timeout}
}

// Resolve returns the public IP or "" when no endpoint answered. A caller
// whose ctx ends stops waiting; the shared lookup keeps going.
func (r *IPResolver) Resolve(ctx context.Context) string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	if r.resolved {
		ip := r.ip
		r.mu.Unlock()
		return ip
	}
	r.mu.Unlock()

	ch := r.group.DoChan("ip", func() (any, error) {
		r.mu.Lock()
		if r.resolved {
			defer r.mu.Unlock()
			return r.ip, nil
		}
		r.mu.Unlock()
		ip := r.lookup(context.WithoutCancel(ctx))
		r.mu.Lock()
		r.resolved, r.ip = true, ip
		r.mu.Unlock()
		return ip, nil
	})
	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return ""
	}
}

func (r *IPResolver) lookup(ctx context.Context) string {
	for _, ep := range r.endpoints {
		ip, err := r.fetch(ctx, ep)
		if err == nil {
			return ip
		}
		logrus.WithField("component", "telemetry").WithError(err).Debugf("ip lookup via %s failed", ep)
	}
	return ""
}

func (r *IPResolver) fetch(ctx context.Context, endpoint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	res, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("status %d", res.StatusCode)
	}
	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 4096)).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decode")
	}
	if net.ParseIP(body.IP) == nil {
		return "", errors.Errorf("invalid ip %q", body.IP)
	}
	return body.IP, nil
}
