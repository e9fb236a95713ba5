// Package connstring parses a MongoDB connection URI
// ("mongodb://" or "mongodb+srv://") into the pieces topology.New and
// mongo.Connect need: the seed list, auth credential, replica set name,
// and the read/write concern defaults a Client falls back to.
package connstring

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/internal/address"
)

// ConnString is the parsed form of a connection string.
type ConnString struct {
	Original string

	Hosts   []string
	SRV     bool
	Database string

	Username      string
	Password      string
	PasswordSet   bool
	AuthSource    string
	AuthMechanism string
	AuthMechanismProperties map[string]string

	ReplicaSet string
	Loadbalanced bool
	DirectConnection bool

	AppName string

	W           string
	WTimeout    string
	Journal     bool
	JournalSet  bool

	ReadConcernLevel string
	ReadPreference   string

	MaxPoolSize uint64
	MinPoolSize uint64
	MaxConnecting uint64

	ConnectTimeout    string
	HeartbeatInterval string

	RetryReads     bool
	RetryReadsSet  bool
	RetryWrites    bool
	RetryWritesSet bool

	ReadPreferenceTagSets []map[string]string
	MaxStaleness          time.Duration
	MaxStalenessSet       bool

	LocalThreshold         string
	ServerSelectionTimeout string
	SocketTimeout          string
	MaxIdleTime            string

	Compressors             []string
	ZlibCompressionLevel    int
	ZlibCompressionLevelSet bool

	SRVMaxHosts    int
	SRVServiceName string

	SSL bool

	TLSCertificateKeyFile         string
	TLSCertificateKeyFilePassword string
	TLSCAFile                     string
	TLSInsecure                   bool
	TLSDisableOCSPEndpointCheck   bool
}

// Parse parses a "mongodb://" or "mongodb+srv://" URI. SRV resolution
// itself (turning a single SRV hostname into a seed list via DNS) is left
// to the caller -- this only records that SRV was requested.
func Parse(uri string) (*ConnString, error) {
	cs := &ConnString{Original: uri}

	var scheme string
	switch {
	case strings.HasPrefix(uri, "mongodb+srv://"):
		scheme = "mongodb+srv://"
		cs.SRV = true
	case strings.HasPrefix(uri, "mongodb://"):
		scheme = "mongodb://"
	default:
		return nil, fmt.Errorf("connstring: URI must begin with \"mongodb://\" or \"mongodb+srv://\": %q", uri)
	}

	rest := uri[len(scheme):]

	// Split off the query string before touching userinfo/hosts/path, so
	// "&"/"=" inside a password can't be misread as an option.
	var query string
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		query, rest = rest[idx+1:], rest[:idx]
	}

	var userinfo string
	if idx := strings.LastIndexByte(rest, '@'); idx >= 0 {
		userinfo, rest = rest[:idx], rest[idx+1:]
	}
	if userinfo != "" {
		if err := parseUserinfo(cs, userinfo); err != nil {
			return nil, err
		}
	}

	hostPart := rest
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		hostPart, rest = rest[:idx], rest[idx:]
		if len(rest) > 1 {
			cs.Database = rest[1:]
		}
	}
	if hostPart == "" {
		return nil, fmt.Errorf("connstring: no hosts in URI %q", uri)
	}
	for _, h := range strings.Split(hostPart, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if cs.SRV {
			// The SRV domain itself carries no port; resolving it into a
			// seed list of host:port pairs is left to the caller (see
			// HostPort and the SRV poller), the same deferral Parse already
			// documents for SRV resolution as a whole.
			cs.Hosts = append(cs.Hosts, strings.ToLower(h))
			continue
		}
		cs.Hosts = append(cs.Hosts, string(address.Address(h).Canonicalize()))
	}

	if query != "" {
		if err := parseOptions(cs, query); err != nil {
			return nil, err
		}
	}
	if cs.AuthSource == "" {
		cs.AuthSource = cs.Database
	}
	if cs.SRV && cs.SRVServiceName == "" {
		cs.SRVServiceName = "mongodb"
	}
	return cs, nil
}

func parseUserinfo(cs *ConnString, userinfo string) error {
	parts := strings.SplitN(userinfo, ":", 2)
	username, err := url.QueryUnescape(parts[0])
	if err != nil {
		return fmt.Errorf("connstring: invalid username: %w", err)
	}
	cs.Username = username
	if len(parts) == 2 {
		pw, err := url.QueryUnescape(parts[1])
		if err != nil {
			return fmt.Errorf("connstring: invalid password: %w", err)
		}
		cs.Password = pw
		cs.PasswordSet = true
	}
	return nil
}

func parseOptions(cs *ConnString, query string) error {
	values, err := url.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("connstring: invalid options: %w", err)
	}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		v := vals[len(vals)-1]
		switch strings.ToLower(key) {
		case "replicaset":
			cs.ReplicaSet = v
		case "loadbalanced":
			cs.Loadbalanced = v == "true"
		case "directconnection":
			cs.DirectConnection = v == "true"
		case "appname":
			cs.AppName = v
		case "authsource":
			cs.AuthSource = v
		case "authmechanism":
			cs.AuthMechanism = v
		case "authmechanismproperties":
			cs.AuthMechanismProperties = parseAuthProps(v)
		case "w":
			cs.W = v
		case "wtimeoutms":
			cs.WTimeout = v
		case "journal":
			cs.Journal = v == "true"
			cs.JournalSet = true
		case "readconcernlevel":
			cs.ReadConcernLevel = v
		case "readpreference":
			cs.ReadPreference = v
		case "maxpoolsize":
			cs.MaxPoolSize, _ = strconv.ParseUint(v, 10, 64)
		case "minpoolsize":
			cs.MinPoolSize, _ = strconv.ParseUint(v, 10, 64)
		case "maxconnecting":
			cs.MaxConnecting, _ = strconv.ParseUint(v, 10, 64)
		case "connecttimeoutms":
			cs.ConnectTimeout = v
		case "heartbeatfrequencyms":
			cs.HeartbeatInterval = v
		case "ssl", "tls":
			cs.SSL = v == "true"
		case "retryreads":
			cs.RetryReads = v == "true"
			cs.RetryReadsSet = true
		case "retrywrites":
			cs.RetryWrites = v == "true"
			cs.RetryWritesSet = true
		case "readpreferencetags":
			// Each occurrence of the key is its own tag set, tried in the
			// order given (spec.md §4.3 step 2); url.ParseQuery already
			// preserves that order in vals.
			for _, tagStr := range vals {
				cs.ReadPreferenceTagSets = append(cs.ReadPreferenceTagSets, parseAuthProps(tagStr))
			}
		case "maxstalenessseconds":
			secs, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("connstring: invalid maxStalenessSeconds %q: %w", v, err)
			}
			cs.MaxStaleness = time.Duration(secs) * time.Second
			cs.MaxStalenessSet = true
		case "localthresholdms":
			cs.LocalThreshold = v
		case "serverselectiontimeoutms":
			cs.ServerSelectionTimeout = v
		case "sockettimeoutms":
			cs.SocketTimeout = v
		case "maxidletimems":
			cs.MaxIdleTime = v
		case "compressors":
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					cs.Compressors = append(cs.Compressors, name)
				}
			}
		case "zlibcompressionlevel":
			level, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("connstring: invalid zlibCompressionLevel %q: %w", v, err)
			}
			cs.ZlibCompressionLevel = level
			cs.ZlibCompressionLevelSet = true
		case "srvmaxhosts":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("connstring: invalid srvMaxHosts %q: %w", v, err)
			}
			cs.SRVMaxHosts = n
		case "srvservicename":
			cs.SRVServiceName = v
		case "tlscertificatekeyfile":
			cs.TLSCertificateKeyFile = v
		case "tlscertificatekeyfilepassword":
			cs.TLSCertificateKeyFilePassword = v
		case "tlscafile":
			cs.TLSCAFile = v
		case "tlsinsecure", "tlsallowinvalidcertificates":
			cs.TLSInsecure = v == "true"
		case "tlsdisableocspendpointcheck":
			cs.TLSDisableOCSPEndpointCheck = v == "true"
		}
	}
	return nil
}

func parseAuthProps(v string) map[string]string {
	props := map[string]string{}
	for _, pair := range strings.Split(v, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) == 2 {
			props[kv[0]] = kv[1]
		}
	}
	return props
}

// HostPort splits a seed entry into host and port, defaulting the port to
// 27017 the same way address.Address.Canonicalize does for its own seeds.
func HostPort(seed string) (host, port string) {
	host, port, err := net.SplitHostPort(seed)
	if err != nil {
		return seed, address.DefaultPort
	}
	return host, port
}
