// Package mongo is the user-facing façade: Client, Database, and Collection
// wrap the operation-execution engine and the SDAM topology into the CRUD
// API applications actually call.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/mongo/options"
	"github.com/nimbusdb/nimbus-go-driver/readconcern"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/auth"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/connstring"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/operation"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/topology"
)

// ErrClientDisconnected occurs when a Client method is called after
// Disconnect.
var ErrClientDisconnected = errors.New("mongo: client is disconnected")

// Client is a handle to a deployment: one Topology (the SDAM monitor), one
// session pool, and the read/write defaults every Database/Collection
// inherits unless overridden.
type Client struct {
	deployment *topology.Topology
	sessions   *session.Pool
	clock      *session.ClusterClock

	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	writeConcern   *writeconcern.WriteConcern

	monitor *event.CommandMonitor

	retryReads  bool
	retryWrites bool

	connected bool
}

// readRetryMode reports whether a read operation should retry once after a
// retryable error (spec.md §4.6), per the retryReads connection-string/
// ClientOptions setting.
func (c *Client) readRetryMode() operation.RetryMode {
	if c.retryReads {
		return operation.RetryOnce
	}
	return operation.RetryNone
}

// writeRetryMode is readRetryMode's write-side counterpart (retryWrites).
func (c *Client) writeRetryMode() operation.RetryMode {
	if c.retryWrites {
		return operation.RetryOnce
	}
	return operation.RetryNone
}

// Connect parses uri, builds a Topology seeded from its host list, and
// starts SDAM monitoring. The returned Client is ready for use immediately;
// operations block until a suitable server is discovered rather than
// requiring a separate "wait for connect" step.
func Connect(ctx context.Context, uri string, opts ...*options.ClientOptions) (*Client, error) {
	cs, err := connstring.Parse(uri)
	if err != nil {
		return nil, err
	}

	clientOpts := options.MergeClientOptions(opts...)

	seeds, srvPoller, err := resolveSeeds(ctx, cs, clientOpts)
	if err != nil {
		return nil, err
	}

	topoOpts := []topology.TopologyOption{topology.WithSeedList(seeds...)}
	if cs.ReplicaSet != "" {
		topoOpts = append(topoOpts, topology.WithReplicaSetName(cs.ReplicaSet))
	}
	if cs.DirectConnection || len(seeds) == 1 && cs.ReplicaSet == "" && !cs.SRV {
		topoOpts = append(topoOpts, topology.WithSingleMode())
	}
	if clientOpts.ServerMonitor != nil {
		topoOpts = append(topoOpts, topology.WithTopologyServerMonitor(clientOpts.ServerMonitor))
	}
	if clientOpts.PoolMonitor != nil {
		topoOpts = append(topoOpts, topology.WithTopologyPoolMonitor(clientOpts.PoolMonitor))
	}
	if d, ok := durationOption(clientOpts.ServerSelectionTimeout, cs.ServerSelectionTimeout); ok {
		topoOpts = append(topoOpts, topology.WithServerSelectionTimeout(d))
	}
	if d, ok := durationOption(clientOpts.LocalThreshold, cs.LocalThreshold); ok {
		topoOpts = append(topoOpts, topology.WithLocalThreshold(d))
	}
	if srvPoller != nil {
		topoOpts = append(topoOpts, topology.WithSRVPolling(srvPoller))
	}

	var connOpts []topology.ConnectionOption
	tlsConfig, err := topology.TLSConfigFromConnString(cs)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		connOpts = append(connOpts, topology.WithTLSConfig(tlsConfig))
		if cs.TLSDisableOCSPEndpointCheck {
			connOpts = append(connOpts, topology.WithDisableOCSPEndpointCheck(true))
		}
	}
	if d, ok := durationOption(clientOpts.ConnectTimeout, cs.ConnectTimeout); ok {
		connOpts = append(connOpts, topology.WithConnectTimeout(d))
	}
	if d, ok := durationOption(clientOpts.SocketTimeout, cs.SocketTimeout); ok {
		connOpts = append(connOpts, topology.WithReadWriteTimeout(d))
	}
	if d, ok := durationOption(clientOpts.MaxIdleTime, cs.MaxIdleTime); ok {
		connOpts = append(connOpts, topology.WithIdleTimeout(d))
	}
	compressors := clientOpts.Compressors
	if compressors == nil {
		compressors = cs.Compressors
	}
	if len(compressors) > 0 {
		connOpts = append(connOpts, topology.WithCompressors(compressors))
	}
	if clientOpts.ZlibCompressionLevel != nil {
		connOpts = append(connOpts, topology.WithZlibCompressionLevel(*clientOpts.ZlibCompressionLevel))
	} else if cs.ZlibCompressionLevelSet {
		connOpts = append(connOpts, topology.WithZlibCompressionLevel(cs.ZlibCompressionLevel))
	}

	var serverOpts []topology.ServerOption
	if clientOpts.AppName != nil {
		serverOpts = append(serverOpts, topology.WithServerAppName(*clientOpts.AppName))
	} else if cs.AppName != "" {
		serverOpts = append(serverOpts, topology.WithServerAppName(cs.AppName))
	}
	if clientOpts.MaxPoolSize != nil {
		serverOpts = append(serverOpts, topology.WithMaxPoolSize(*clientOpts.MaxPoolSize))
	} else if cs.MaxPoolSize != 0 {
		serverOpts = append(serverOpts, topology.WithMaxPoolSize(cs.MaxPoolSize))
	}
	if cs.MinPoolSize != 0 {
		serverOpts = append(serverOpts, topology.WithMinPoolSize(cs.MinPoolSize))
	}
	if cs.MaxConnecting != 0 {
		serverOpts = append(serverOpts, topology.WithMaxConnecting(cs.MaxConnecting))
	}
	if d, ok := durationOption(clientOpts.HeartbeatInterval, cs.HeartbeatInterval); ok {
		serverOpts = append(serverOpts, topology.WithHeartbeatInterval(d))
	}
	if len(connOpts) > 0 {
		serverOpts = append(serverOpts, topology.WithConnectionOptions(connOpts...))
	}

	if cs.Username != "" || cs.AuthMechanism != "" {
		cred := &auth.Credential{
			Source:                  cs.AuthSource,
			Username:                cs.Username,
			Password:                cs.Password,
			Mechanism:               cs.AuthMechanism,
			Props:                   cs.AuthMechanismProperties,
		}
		authenticator, err := auth.CreateAuthenticator(cred)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, topology.WithAuthenticator(authenticator))
	}
	if len(serverOpts) > 0 {
		topoOpts = append(topoOpts, topology.WithTopologyServerOptions(serverOpts...))
	}

	deployment := topology.New(topoOpts...)
	if err := deployment.Connect(); err != nil {
		return nil, err
	}

	c := &Client{
		deployment:     deployment,
		sessions:       session.NewPool(),
		clock:          &session.ClusterClock{},
		readPreference: readPreferenceFromConnString(cs),
		readConcern:    readconcern.New(),
		writeConcern:   writeconcern.New(writeconcern.W(1)),
		monitor:        clientOpts.Monitor,
		retryReads:     boolOption(clientOpts.RetryReads, cs.RetryReadsSet, cs.RetryReads, true),
		retryWrites:    boolOption(clientOpts.RetryWrites, cs.RetryWritesSet, cs.RetryWrites, true),
		connected:      true,
	}
	if clientOpts.ReadPreference != nil {
		c.readPreference = clientOpts.ReadPreference
	}
	if clientOpts.ReadConcern != nil {
		c.readConcern = clientOpts.ReadConcern
	}
	if clientOpts.WriteConcern != nil {
		c.writeConcern = clientOpts.WriteConcern
	}
	return c, nil
}

// resolveSeeds returns the initial seed list for the deployment. For a
// mongodb+srv:// URI this performs the synchronous initial SRV lookup
// (spec.md §6) and returns a poller for the periodic rescans Connect hands
// to topology.WithSRVPolling; for a plain mongodb:// URI it just canonicalizes
// the parsed host list.
func resolveSeeds(ctx context.Context, cs *connstring.ConnString, clientOpts *options.ClientOptions) ([]address.Address, *topology.SRVPoller, error) {
	if !cs.SRV {
		seeds := make([]address.Address, 0, len(cs.Hosts))
		for _, h := range cs.Hosts {
			seeds = append(seeds, address.Address(h).Canonicalize())
		}
		return seeds, nil, nil
	}

	if len(cs.Hosts) != 1 {
		return nil, nil, fmt.Errorf("mongo: mongodb+srv:// requires exactly one host, got %d", len(cs.Hosts))
	}

	var pollerOpts []topology.SRVPollerOption
	serviceName := cs.SRVServiceName
	if clientOpts.SRVServiceName != nil {
		serviceName = *clientOpts.SRVServiceName
	}
	if serviceName != "" {
		pollerOpts = append(pollerOpts, topology.WithSRVServiceName(serviceName))
	}
	maxHosts := cs.SRVMaxHosts
	if clientOpts.SRVMaxHosts != nil {
		maxHosts = *clientOpts.SRVMaxHosts
	}
	if maxHosts > 0 {
		pollerOpts = append(pollerOpts, topology.WithSRVMaxHosts(maxHosts))
	}

	poller := topology.NewSRVPoller(cs.Hosts[0], pollerOpts...)
	seeds, err := poller.Poll(ctx)
	if err != nil {
		return nil, nil, err
	}
	return seeds, poller, nil
}

// readPreferenceFromConnString builds the default ReadPref from a parsed
// connection string's readPreference/readPreferenceTags/maxStalenessSeconds
// options, used unless ClientOptions.ReadPreference overrides it.
func readPreferenceFromConnString(cs *connstring.ConnString) *readpref.ReadPref {
	var mode readpref.Mode
	switch strings.ToLower(cs.ReadPreference) {
	case "primarypreferred":
		mode = readpref.PrimaryPreferredMode
	case "secondary":
		mode = readpref.SecondaryMode
	case "secondarypreferred":
		mode = readpref.SecondaryPreferredMode
	case "nearest":
		mode = readpref.NearestMode
	default:
		return readpref.Primary()
	}

	var rpOpts []readpref.Option
	if len(cs.ReadPreferenceTagSets) > 0 {
		rpOpts = append(rpOpts, readpref.WithTagSets(cs.ReadPreferenceTagSets...))
	}
	if cs.MaxStalenessSet {
		rpOpts = append(rpOpts, readpref.WithMaxStaleness(cs.MaxStaleness))
	}
	rp, err := readpref.New(mode, rpOpts...)
	if err != nil {
		return readpref.Primary()
	}
	return rp
}

// durationOption resolves a millisecond connection-string value against an
// explicit *time.Duration ClientOptions override, the latter taking
// priority. ok is false when neither source set anything.
func durationOption(override *time.Duration, ms string) (time.Duration, bool) {
	if override != nil {
		return *override, true
	}
	if ms == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

// boolOption resolves a tri-state bool option (ClientOptions override, then
// a connection-string value if one was present, then def) to a concrete
// value.
func boolOption(override *bool, csSet bool, csVal bool, def bool) bool {
	if override != nil {
		return *override
	}
	if csSet {
		return csVal
	}
	return def
}

// NewClient is equivalent to Connect, kept for callers that prefer the
// construct-then-connect shape; Connect already performs both steps.
func NewClient(uri string, opts ...*options.ClientOptions) (*Client, error) {
	return Connect(context.Background(), uri, opts...)
}

// Disconnect stops SDAM monitoring and closes every pooled connection.
func (c *Client) Disconnect(ctx context.Context) error {
	if !c.connected {
		return ErrClientDisconnected
	}
	c.connected = false
	return c.deployment.Disconnect(ctx)
}

// Ping runs a trivial "ping" command against a server matching rp (the
// client's default read preference if rp is nil), confirming a usable
// connection exists.
func (c *Client) Ping(ctx context.Context, rp *readpref.ReadPref) error {
	if rp == nil {
		rp = c.readPreference
	}
	db := c.Database("admin")
	_, err := db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}, options.RunCmd().SetReadPreference(rp))
	return err
}

// Database returns a handle to the named database, inheriting the
// client's defaults unless overridden by opts.
func (c *Client) Database(name string, opts ...*options.DatabaseOptions) *Database {
	dbOpt := options.MergeDatabaseOptions(opts...)
	db := &Database{
		client:         c,
		name:           name,
		readPreference: c.readPreference,
		readConcern:    c.readConcern,
		writeConcern:   c.writeConcern,
	}
	if dbOpt.ReadPreference != nil {
		db.readPreference = dbOpt.ReadPreference
	}
	if dbOpt.ReadConcern != nil {
		db.readConcern = dbOpt.ReadConcern
	}
	if dbOpt.WriteConcern != nil {
		db.writeConcern = dbOpt.WriteConcern
	}
	return db
}

// ListDatabaseNames runs listDatabases with nameOnly set and returns just
// the resulting names.
func (c *Client) ListDatabaseNames(ctx context.Context, filter interface{}) ([]string, error) {
	filterDoc, err := TransformDocument(filter)
	if err != nil {
		return nil, err
	}
	db := c.Database("admin")
	res, err := db.RunCommand(ctx, bson.D{
		{Key: "listDatabases", Value: 1},
		{Key: "nameOnly", Value: true},
		{Key: "filter", Value: bson.Raw(filterDoc)},
	})
	if err != nil {
		return nil, err
	}
	dbsVal, err := res.LookupErr("databases")
	if err != nil {
		return nil, err
	}
	entries, err := dbsVal.Values()
	if err != nil {
		return nil, fmt.Errorf("mongo: listDatabases reply: %w", err)
	}
	names := make([]string, 0, len(entries))
	for i, entry := range entries {
		nameVal, err := entry.Document().LookupErr("name")
		if err != nil {
			return nil, fmt.Errorf("mongo: database entry %d missing name: %w", i, err)
		}
		name, _ := nameVal.StringValueOK()
		names = append(names, name)
	}
	return names, nil
}

// StartSession checks out a server session and wraps it in a causally
// consistent logical session (spec.md §5), used by WithSession/UseSession
// to scope a sequence of operations (including multi-document
// transactions) to one lsid.
func (c *Client) StartSession(opts ...*options.SessionOptions) (*session.Client, error) {
	if !c.connected {
		return nil, ErrClientDisconnected
	}
	sessOpt := options.MergeSessionOptions(opts...)
	sess := session.NewClientSession(c.sessions, 30)
	if sessOpt.CausalConsistency != nil {
		sess.Consistent = *sessOpt.CausalConsistency
	}
	if sessOpt.DefaultReadConcern != nil {
		sess.CurrentRc = sessOpt.DefaultReadConcern
	}
	if sessOpt.DefaultWriteConcern != nil {
		sess.CurrentWc = sessOpt.DefaultWriteConcern
	}
	return sess, nil
}

// UseSession runs fn with a fresh implicit session bound to ctx via
// NewSessionContext, ending the session (and so returning its server
// session to the pool) once fn returns.
func (c *Client) UseSession(ctx context.Context, fn func(SessionContext) error) error {
	sess, err := c.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession()
	return fn(NewSessionContext(ctx, sess))
}

