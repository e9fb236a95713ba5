package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/internal/csot"
	"github.com/nimbusdb/nimbus-go-driver/internal/randutil"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

const (
	topologyDisconnected int32 = iota
	topologyConnected
	topologyDisconnecting
)

// ErrTopologyClosed occurs when an attempt is made to SelectServer or
// Connect after Disconnect.
var ErrTopologyClosed = errors.New("topology: manager is closed")

// ErrServerSelectionTimeout occurs when no server satisfies a selector
// before the given context expires.
var ErrServerSelectionTimeout = errors.New("topology: server selection timeout")

// Topology is the deployment-wide SDAM monitor: it owns one Server per seed
// (growing and shrinking the set as hello replies report new or removed
// members), runs every incoming description.Server through the fsm to
// derive the deployment-wide description.Topology, and implements
// driver.Deployment so the operation execution engine can select and check
// out connections without knowing about any of this machinery.
type Topology struct {
	cfg   *topologyConfig
	state int32
	id    string

	mu      sync.RWMutex
	fsm     *fsm
	servers map[address.Address]*Server

	subLock             sync.Mutex
	subscribers         map[uint64]chan description.Topology
	currentSubscriberID uint64
	subscriptionsClosed bool

	desc atomic.Value // description.Topology

	changes chan description.Server
	done    chan struct{}
	closewg sync.WaitGroup

	srvPoller *SRVPoller
}

// topologyConfig is the subset of connection/server configuration shared by
// every Server this Topology creates; ServerOption values configure both.
type topologyConfig struct {
	mode                   description.TopologyKind
	setName                string
	seedList               []address.Address
	serverOpts             []ServerOption
	serverSelectionTimeout time.Duration
	localThreshold         time.Duration
	srvPoller              *SRVPoller
	serverMonitor          *event.ServerMonitor
	poolMonitor            *event.PoolMonitor
}

// TopologyOption configures a Topology at construction time.
type TopologyOption func(*topologyConfig)

// WithSeedList sets the initial set of servers to monitor.
func WithSeedList(seeds ...address.Address) TopologyOption {
	return func(cfg *topologyConfig) { cfg.seedList = seeds }
}

// WithReplicaSetName pins the expected replica set name, putting the
// topology directly into ReplicaSetNoPrimary rather than Unknown.
func WithReplicaSetName(name string) TopologyOption {
	return func(cfg *topologyConfig) {
		cfg.setName = name
		cfg.mode = description.ReplicaSetNoPrimary
	}
}

// WithSingleMode pins the topology to Single, for direct connections.
func WithSingleMode() TopologyOption {
	return func(cfg *topologyConfig) { cfg.mode = description.Single }
}

// WithTopologyServerOptions adds ServerOptions applied to every Server the
// topology creates.
func WithTopologyServerOptions(opts ...ServerOption) TopologyOption {
	return func(cfg *topologyConfig) { cfg.serverOpts = append(cfg.serverOpts, opts...) }
}

// WithServerSelectionTimeout bounds how long SelectServer waits for a
// matching server before returning ErrServerSelectionTimeout.
func WithServerSelectionTimeout(d time.Duration) TopologyOption {
	return func(cfg *topologyConfig) { cfg.serverSelectionTimeout = d }
}

// WithLocalThreshold sets the latency window server selection keeps
// candidates within after narrowing by read preference (spec.md §4.3 step
// 3); zero means the selection engine's own default applies.
func WithLocalThreshold(d time.Duration) TopologyOption {
	return func(cfg *topologyConfig) { cfg.localThreshold = d }
}

// WithSRVPolling enables periodic SRV-record rescanning for a
// mongodb+srv:// deployment, putting the topology into ReplicaSetNoPrimary
// mode (a DNS-seeded deployment is always a replica set). poller's Poll
// method should already have been called once synchronously by the caller
// to obtain the initial seed list passed to WithSeedList.
func WithSRVPolling(poller *SRVPoller) TopologyOption {
	return func(cfg *topologyConfig) {
		cfg.srvPoller = poller
		cfg.mode = description.ReplicaSetNoPrimary
	}
}

// WithTopologyServerMonitor sets the monitor notified of this deployment's
// SDAM lifecycle: topology-wide opening/closing/description changes, and
// (passed through to every Server the topology creates) per-server opening/
// closing/description changes.
func WithTopologyServerMonitor(m *event.ServerMonitor) TopologyOption {
	return func(cfg *topologyConfig) { cfg.serverMonitor = m }
}

// WithTopologyPoolMonitor sets the monitor notified of every connection
// pool event across every server this deployment monitors.
func WithTopologyPoolMonitor(m *event.PoolMonitor) TopologyOption {
	return func(cfg *topologyConfig) { cfg.poolMonitor = m }
}

// New constructs a Topology; call Connect to start monitoring.
func New(opts ...TopologyOption) *Topology {
	cfg := &topologyConfig{
		mode:                   description.TopologyUnknown,
		serverSelectionTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	t := &Topology{
		cfg:         cfg,
		id:          uuid.NewString(),
		servers:     make(map[address.Address]*Server),
		subscribers: make(map[uint64]chan description.Topology),
		changes:     make(chan description.Server, 1),
		done:        make(chan struct{}),
		srvPoller:   cfg.srvPoller,
	}
	initial := description.NewTopology(cfg.mode, cfg.setName, cfg.seedList)
	t.fsm = newFSM(initial)
	t.desc.Store(initial)
	return t
}

// Connect starts monitoring every seed in the topology's seed list.
func (t *Topology) Connect() error {
	if !atomic.CompareAndSwapInt32(&t.state, topologyDisconnected, topologyConnected) {
		return errors.New("topology: already connected")
	}
	if t.cfg.serverMonitor != nil && t.cfg.serverMonitor.TopologyOpening != nil {
		t.cfg.serverMonitor.TopologyOpening(&event.TopologyOpeningEvent{TopologyID: t.id})
	}
	t.mu.Lock()
	for _, addr := range t.cfg.seedList {
		t.addServer(addr)
	}
	t.mu.Unlock()

	if t.srvPoller != nil {
		t.srvPoller.Start(t.cfg.seedList, t.applySRVHosts)
	}
	return nil
}

// applySRVHosts reconciles the monitored server set against a freshly
// rescanned SRV host list: servers for new hosts are spun up, servers for
// hosts no longer present are torn down. The topology's own description
// (ReplicaSetNoPrimary/WithPrimary, member validation) is unaffected here;
// it's still derived solely from hello replies via apply.
func (t *Topology) applySRVHosts(hosts []address.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if atomic.LoadInt32(&t.state) != topologyConnected {
		return
	}

	want := make(map[address.Address]bool, len(hosts))
	for _, h := range hosts {
		want[h] = true
		t.addServer(h)
	}
	for addr, s := range t.servers {
		if !want[addr] {
			delete(t.servers, addr)
			go s.Disconnect(context.Background())
		}
	}
}

// addServer creates and connects a Server for addr if one doesn't already
// exist; callers must hold t.mu.
func (t *Topology) addServer(addr address.Address) *Server {
	if s, ok := t.servers[addr]; ok {
		return s
	}
	opts := append(append([]ServerOption{}, t.cfg.serverOpts...),
		WithServerMonitor(t.cfg.serverMonitor),
		WithPoolMonitor(t.cfg.poolMonitor),
		WithTopologyID(t.id))
	s := NewServer(addr, opts...)
	t.servers[addr] = s
	_ = s.Connect(func(desc description.Server) description.Server {
		return t.apply(desc)
	})
	return s
}

// apply folds one server's new description through the fsm, publishes the
// resulting deployment-wide Topology to subscribers, spins up Servers for
// any newly discovered members, and tears down Servers for any member the
// fsm dropped. It returns the (possibly demoted/invalidated) description
// that the calling Server should store for itself.
func (t *Topology) apply(desc description.Server) description.Server {
	t.mu.Lock()
	defer t.mu.Unlock()

	if atomic.LoadInt32(&t.state) != topologyConnected {
		return desc
	}

	prev := t.fsm.Topology
	next := t.fsm.apply(desc)
	t.desc.Store(next)

	for _, srv := range next.Servers {
		if _, ok := t.servers[srv.Addr]; !ok {
			t.addServer(srv.Addr)
		}
	}
	for _, s := range prev.Servers {
		if _, ok := next.Server(s.Addr); !ok {
			if srv, ok := t.servers[s.Addr]; ok {
				delete(t.servers, s.Addr)
				go srv.Disconnect(context.Background())
			}
		}
	}

	if t.cfg.serverMonitor != nil && t.cfg.serverMonitor.TopologyDescriptionChanged != nil {
		t.cfg.serverMonitor.TopologyDescriptionChanged(&event.TopologyDescriptionChangedEvent{
			TopologyID:          t.id,
			PreviousDescription: toEventTopologyDescription(prev),
			NewDescription:      toEventTopologyDescription(next),
		})
	}

	t.publish(next)

	if updated, ok := next.Server(desc.Addr); ok {
		return updated
	}
	return desc
}

// toEventTopologyDescription converts a deployment-wide description to the
// event package's leaf copy, keeping that package free of any dependency on
// this one.
func toEventTopologyDescription(desc description.Topology) event.TopologyDescription {
	servers := make([]event.ServerDescription, 0, len(desc.Servers))
	for _, s := range desc.Servers {
		servers = append(servers, event.ServerDescription{Kind: s.Kind.String(), Address: s.Addr.String()})
	}
	return event.TopologyDescription{Kind: desc.Kind.String(), Servers: servers}
}

func (t *Topology) publish(desc description.Topology) {
	t.subLock.Lock()
	defer t.subLock.Unlock()
	for _, c := range t.subscribers {
		select {
		case <-c:
		default:
		}
		c <- desc
	}
}

// Description returns the current deployment-wide topology snapshot.
func (t *Topology) Description() description.Topology {
	return t.desc.Load().(description.Topology)
}

// Kind implements driver.Deployment.
func (t *Topology) Kind() description.TopologyKind {
	return t.Description().Kind
}

// LocalThreshold implements driver.Deployment.
func (t *Topology) LocalThreshold() time.Duration {
	return t.cfg.localThreshold
}

// Subscribe returns a channel of every future Topology snapshot,
// pre-populated with the current one.
func (t *Topology) Subscribe() (chan description.Topology, func(), error) {
	if atomic.LoadInt32(&t.state) != topologyConnected {
		return nil, nil, ErrTopologyClosed
	}
	ch := make(chan description.Topology, 1)
	ch <- t.Description()

	t.subLock.Lock()
	if t.subscriptionsClosed {
		t.subLock.Unlock()
		return nil, nil, ErrTopologyClosed
	}
	id := t.currentSubscriberID
	t.currentSubscriberID++
	t.subscribers[id] = ch
	t.subLock.Unlock()

	unsubscribe := func() {
		t.subLock.Lock()
		delete(t.subscribers, id)
		t.subLock.Unlock()
	}
	return ch, unsubscribe, nil
}

// SelectServer implements driver.Deployment: it blocks until a server
// matching selector is available, the context expires, or the deployment's
// server-selection timeout elapses, whichever comes first.
func (t *Topology) SelectServer(ctx context.Context, selector description.ServerSelector) (driver.Server, error) {
	if atomic.LoadInt32(&t.state) != topologyConnected {
		return nil, ErrTopologyClosed
	}

	var cancel context.CancelFunc
	ctx, cancel = csot.WithServerSelectionTimeout(ctx, t.cfg.serverSelectionTimeout)
	defer cancel()

	ch, unsubscribe, err := t.Subscribe()
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	for {
		select {
		case desc := <-ch:
			candidates, err := selector.SelectServer(desc, desc.Servers)
			if err != nil {
				return nil, err
			}
			// Spread load across every equally-suitable candidate: sample
			// two uniformly at random and keep the one with fewer in-flight
			// operations (spec.md §4.3 step 6's final pick, after
			// latency-window narrowing), rather than always favoring the
			// first or picking uniformly regardless of load.
			if len(candidates) > 0 {
				pick := candidates[0]
				if len(candidates) > 1 {
					i := randutil.Intn(len(candidates))
					j := randutil.Intn(len(candidates) - 1)
					if j >= i {
						j++
					}
					a, b := candidates[i], candidates[j]
					t.mu.RLock()
					srvA, okA := t.servers[a.Addr]
					srvB, okB := t.servers[b.Addr]
					t.mu.RUnlock()
					switch {
					case okA && okB:
						pick = a
						if srvB.OperationCount() < srvA.OperationCount() {
							pick = b
						}
					case okA:
						pick = a
					case okB:
						pick = b
					}
				}
				t.mu.RLock()
				srv, ok := t.servers[pick.Addr]
				t.mu.RUnlock()
				if ok {
					return srv, nil
				}
			}
			t.requestImmediateCheckAll()
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrServerSelectionTimeout, ctx.Err())
		}
	}
}

func (t *Topology) requestImmediateCheckAll() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.servers {
		s.RequestImmediateCheck()
	}
}

// Disconnect stops monitoring every server and closes subscriber channels.
func (t *Topology) Disconnect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.state, topologyConnected, topologyDisconnecting) {
		return ErrTopologyClosed
	}

	if t.srvPoller != nil {
		t.srvPoller.Stop()
	}

	t.mu.Lock()
	servers := make([]*Server, 0, len(t.servers))
	for _, s := range t.servers {
		servers = append(servers, s)
	}
	t.servers = make(map[address.Address]*Server)
	t.mu.Unlock()

	for _, s := range servers {
		s.Disconnect(ctx)
	}

	t.subLock.Lock()
	for id, c := range t.subscribers {
		close(c)
		delete(t.subscribers, id)
	}
	t.subscriptionsClosed = true
	t.subLock.Unlock()

	atomic.StoreInt32(&t.state, topologyDisconnected)
	if t.cfg.serverMonitor != nil && t.cfg.serverMonitor.TopologyClosed != nil {
		t.cfg.serverMonitor.TopologyClosed(&event.TopologyClosedEvent{TopologyID: t.id})
	}
	return nil
}

var _ driver.Deployment = (*Topology)(nil)
