package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ryohey/warp/internal/compiler"
	"github.com/ryohey/warp/internal/ir"
)

// DefaultPollInterval is the fetch period of a Poller.
const DefaultPollInterval = 3 * time.Second

// TreeHandler receives each successfully decoded tree.
type TreeHandler func(source string, tree *ir.NodeRecord)

// Poller fetches <server>/static/<name> at a fixed interval and hands each
// decoded tree to its handler. Fetch and decode run on the poller's own
// goroutine; failures are logged and the next tick tries again.
type Poller struct {
	url      string
	name     string
	handler  TreeHandler
	interval time.Duration
	client   *http.Client
	treeOpts []compiler.TreeOption

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu       sync.Mutex
	started  bool
	fetches  int
	failures int
}

// PollOption configures a Poller.
type PollOption func(*Poller)

// WithInterval sets the fetch period. Non-positive values keep the default.
func WithInterval(d time.Duration) PollOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) PollOption {
	return func(p *Poller) { p.client = c }
}

// WithTreeOptions passes options to the document compiler for non-JSON
// sources.
func WithTreeOptions(opts ...compiler.TreeOption) PollOption {
	return func(p *Poller) { p.treeOpts = opts }
}

// NewPoller creates a poller for name on server, e.g.
// NewPoller("http://localhost:8080", "Cube.json", h).
func NewPoller(server, name string, handler TreeHandler, opts ...PollOption) (*Poller, error) {
	if handler == nil {
		return nil, errors.New("poll: nil handler")
	}
	if name == "" {
		return nil, errors.New("poll: empty name")
	}
	base, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("poll: parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("poll: server url %q: scheme must be http or https", server)
	}

	p := &Poller{
		url:      base.JoinPath("static", name).String(),
		name:     name,
		handler:  handler,
		interval: DefaultPollInterval,
		client:   &http.Client{Timeout: 30 * time.Second},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// URL returns the polled URL.
func (p *Poller) URL() string {
	return p.url
}

// Start fetches once immediately, then every interval until ctx is
// cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.wg.Add(1)
	go p.loop(ctx)
	slog.Info("polling", "url", p.url, "interval", p.interval)
}

// Stop stops polling and waits for an in-flight fetch to finish. No handler
// call starts after Stop returns.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// Stats returns the number of fetch attempts and how many failed.
func (p *Poller) Stats() (fetches, failures int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches, p.failures
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	tree, err := p.Fetch(ctx)

	p.mu.Lock()
	p.fetches++
	if err != nil {
		p.failures++
	}
	p.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("poll failed", "url", p.url, "error", err)
		}
		return
	}
	select {
	case <-p.done:
		return
	default:
	}
	p.handler(p.url, tree)
}

// Fetch downloads and decodes the polled tree once.
func (p *Poller) Fetch(ctx context.Context) (*ir.NodeRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", p.url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.url, err)
	}
	return DecodeTree(p.name, data, p.treeOpts...)
}
