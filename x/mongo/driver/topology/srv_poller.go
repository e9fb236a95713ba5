package topology

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/internal/address"
)

// defaultSRVPollingInterval matches the real driver lineage's 60-second
// rescan cadence for mongodb+srv:// deployments (spec.md §6); much slower
// than the per-server heartbeat since the seed list itself rarely changes.
const defaultSRVPollingInterval = 60 * time.Second

// SRVPoller periodically re-resolves a "_mongodb._tcp.<domain>" SRV record
// and reports the resulting host list whenever it changes, for
// mongodb+srv:// connection strings. TXT-record option parsing is out of
// scope (spec.md §1's Non-goals: "full DNS SRV polling ... best-effort");
// only the SRV-to-seed-list half is implemented.
type SRVPoller struct {
	resolver    *net.Resolver
	domain      string
	interval    time.Duration
	serviceName string
	maxHosts    int

	mu    sync.Mutex
	hosts []address.Address

	done    chan struct{}
	closewg sync.WaitGroup
}

// SRVPollerOption configures an SRVPoller at construction time.
type SRVPollerOption func(*SRVPoller)

// WithSRVPollingInterval overrides the default 60-second rescan interval.
func WithSRVPollingInterval(d time.Duration) SRVPollerOption {
	return func(p *SRVPoller) { p.interval = d }
}

// WithResolver overrides the net.Resolver used to look up SRV records,
// primarily so tests can substitute one backed by a fake Dial/LookupSRV
// (mirrors the connection package's Dialer substitution seam).
func WithResolver(r *net.Resolver) SRVPollerOption {
	return func(p *SRVPoller) { p.resolver = r }
}

// WithSRVServiceName overrides the service name looked up in the
// "_<service>._tcp.<domain>" SRV record, "mongodb" by default
// (srvServiceName connection-string option).
func WithSRVServiceName(name string) SRVPollerOption {
	return func(p *SRVPoller) { p.serviceName = name }
}

// WithSRVMaxHosts caps the number of hosts Poll returns, keeping a random
// subset when the SRV record resolves to more than that (srvMaxHosts
// connection-string option); zero (the default) means no cap.
func WithSRVMaxHosts(n int) SRVPollerOption {
	return func(p *SRVPoller) { p.maxHosts = n }
}

// NewSRVPoller constructs a poller for domain (the part of a mongodb+srv://
// URI after the "+srv://", e.g. "cluster0.example.mongodb.net").
func NewSRVPoller(domain string, opts ...SRVPollerOption) *SRVPoller {
	p := &SRVPoller{
		resolver:    net.DefaultResolver,
		domain:      domain,
		interval:    defaultSRVPollingInterval,
		serviceName: "mongodb",
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll performs a single SRV lookup and returns the resulting host list,
// without touching the poller's cached state; used for the synchronous
// initial resolution a mongodb+srv:// URI requires before Connect.
func (p *SRVPoller) Poll(ctx context.Context) ([]address.Address, error) {
	_, srvs, err := p.resolver.LookupSRV(ctx, p.serviceName, "tcp", p.domain)
	if err != nil {
		return nil, fmt.Errorf("topology: srv lookup for %q: %w", p.domain, err)
	}
	if len(srvs) == 0 {
		return nil, fmt.Errorf("topology: srv lookup for %q returned no records", p.domain)
	}

	hosts := make([]address.Address, 0, len(srvs))
	for _, s := range srvs {
		target := strings.TrimSuffix(s.Target, ".")
		// A returned target must share the parent domain (or be the domain
		// itself) so a compromised or misconfigured resolver can't redirect
		// the driver to an arbitrary host outside the SRV domain.
		if !sameOrSubdomain(target, p.domain) {
			return nil, fmt.Errorf("topology: srv record target %q is not a subdomain of %q", target, p.domain)
		}
		hosts = append(hosts, address.Address(net.JoinHostPort(target, strconv.Itoa(int(s.Port)))))
	}
	if p.maxHosts > 0 && len(hosts) > p.maxHosts {
		rand.Shuffle(len(hosts), func(i, j int) { hosts[i], hosts[j] = hosts[j], hosts[i] })
		hosts = hosts[:p.maxHosts]
	}
	return hosts, nil
}

// sameOrSubdomain reports whether target is domain itself or a host within
// domain's parent (everything after the first label), the same scoping
// rule the connection-string spec applies to SRV targets.
func sameOrSubdomain(target, domain string) bool {
	parts := strings.SplitN(domain, ".", 2)
	if len(parts) != 2 {
		return false
	}
	parent := parts[1]
	target = strings.ToLower(target)
	parent = strings.ToLower(parent)
	return target == parent || strings.HasSuffix(target, "."+parent)
}

// Start begins periodic polling on a background goroutine, calling
// onChange with the new host list every time a rescan's result differs
// from the last one observed. A failed rescan is logged nowhere and simply
// retried next tick (best-effort, per spec.md §1's Non-goals); the
// previous host list is kept until a lookup succeeds.
func (p *SRVPoller) Start(initial []address.Address, onChange func([]address.Address)) {
	p.mu.Lock()
	p.hosts = initial
	p.mu.Unlock()

	p.closewg.Add(1)
	go p.run(onChange)
}

func (p *SRVPoller) run(onChange func([]address.Address)) {
	defer p.closewg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.interval)
		hosts, err := p.Poll(ctx)
		cancel()
		if err != nil {
			continue
		}

		p.mu.Lock()
		changed := !equalAddressSets(p.hosts, hosts)
		p.hosts = hosts
		p.mu.Unlock()

		if changed {
			onChange(hosts)
		}
	}
}

// Stop ends the background polling goroutine and waits for it to exit.
func (p *SRVPoller) Stop() {
	close(p.done)
	p.closewg.Wait()
}

func equalAddressSets(a, b []address.Address) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[address.Address]bool, len(a))
	for _, x := range a {
		seen[x.Canonicalize()] = true
	}
	for _, x := range b {
		if !seen[x.Canonicalize()] {
			return false
		}
	}
	return true
}
