// Package options provides the functional-builder option types for every
// Client, Database, and Collection method, following the option-struct
// pattern the driver's own options package uses: a struct of pointer
// fields (nil means "inherit the default") plus chained SetXxx builders.
package options

import (
	"time"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/readconcern"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
)

// ClientOptions configures Connect.
type ClientOptions struct {
	AppName        *string
	MaxPoolSize    *uint64
	ReadPreference *readpref.ReadPref
	ReadConcern    *readconcern.ReadConcern
	WriteConcern   *writeconcern.WriteConcern
	Monitor        *event.CommandMonitor
	ServerMonitor  *event.ServerMonitor
	PoolMonitor    *event.PoolMonitor

	RetryReads  *bool
	RetryWrites *bool

	LocalThreshold         *time.Duration
	ServerSelectionTimeout *time.Duration
	SocketTimeout          *time.Duration
	ConnectTimeout         *time.Duration
	HeartbeatInterval      *time.Duration
	MaxIdleTime            *time.Duration

	Compressors          []string
	ZlibCompressionLevel *int

	SRVMaxHosts    *int
	SRVServiceName *string
}

// Client creates a new, empty ClientOptions.
func Client() *ClientOptions { return &ClientOptions{} }

func (o *ClientOptions) SetAppName(name string) *ClientOptions     { o.AppName = &name; return o }
func (o *ClientOptions) SetMaxPoolSize(n uint64) *ClientOptions    { o.MaxPoolSize = &n; return o }
func (o *ClientOptions) SetReadPreference(rp *readpref.ReadPref) *ClientOptions {
	o.ReadPreference = rp
	return o
}
func (o *ClientOptions) SetReadConcern(rc *readconcern.ReadConcern) *ClientOptions {
	o.ReadConcern = rc
	return o
}
func (o *ClientOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *ClientOptions {
	o.WriteConcern = wc
	return o
}

// SetMonitor installs the CommandMonitor notified around every operation's
// wire round trip.
func (o *ClientOptions) SetMonitor(m *event.CommandMonitor) *ClientOptions {
	o.Monitor = m
	return o
}

// SetServerMonitor installs the ServerMonitor notified of SDAM lifecycle
// events across the deployment.
func (o *ClientOptions) SetServerMonitor(m *event.ServerMonitor) *ClientOptions {
	o.ServerMonitor = m
	return o
}

// SetPoolMonitor installs the PoolMonitor notified of connection pool
// events across every server in the deployment.
func (o *ClientOptions) SetPoolMonitor(m *event.PoolMonitor) *ClientOptions {
	o.PoolMonitor = m
	return o
}

// SetRetryReads toggles retrying a read once after a retryable error
// (spec.md §4.6); true by default.
func (o *ClientOptions) SetRetryReads(v bool) *ClientOptions { o.RetryReads = &v; return o }

// SetRetryWrites toggles retrying a write once after a retryable error;
// true by default.
func (o *ClientOptions) SetRetryWrites(v bool) *ClientOptions { o.RetryWrites = &v; return o }

// SetLocalThreshold sets the latency window server selection keeps
// candidates within after narrowing by read preference.
func (o *ClientOptions) SetLocalThreshold(d time.Duration) *ClientOptions {
	o.LocalThreshold = &d
	return o
}

// SetServerSelectionTimeout bounds how long an operation waits for a
// matching server before failing.
func (o *ClientOptions) SetServerSelectionTimeout(d time.Duration) *ClientOptions {
	o.ServerSelectionTimeout = &d
	return o
}

// SetSocketTimeout sets the per-connection read/write deadline.
func (o *ClientOptions) SetSocketTimeout(d time.Duration) *ClientOptions {
	o.SocketTimeout = &d
	return o
}

// SetConnectTimeout sets the dial timeout.
func (o *ClientOptions) SetConnectTimeout(d time.Duration) *ClientOptions {
	o.ConnectTimeout = &d
	return o
}

// SetHeartbeatInterval sets how often the monitor re-probes an idle server.
func (o *ClientOptions) SetHeartbeatInterval(d time.Duration) *ClientOptions {
	o.HeartbeatInterval = &d
	return o
}

// SetMaxIdleTime sets the maximum idle duration before a pooled connection
// is considered expired.
func (o *ClientOptions) SetMaxIdleTime(d time.Duration) *ClientOptions {
	o.MaxIdleTime = &d
	return o
}

// SetCompressors sets the compressor names offered during the handshake,
// in preference order.
func (o *ClientOptions) SetCompressors(names []string) *ClientOptions {
	o.Compressors = names
	return o
}

// SetZlibCompressionLevel sets the zlib compression level used when zlib
// is the negotiated wire compressor.
func (o *ClientOptions) SetZlibCompressionLevel(level int) *ClientOptions {
	o.ZlibCompressionLevel = &level
	return o
}

// SetSRVMaxHosts caps the number of hosts kept from a mongodb+srv:// SRV
// lookup, randomly sampled when the record resolves to more.
func (o *ClientOptions) SetSRVMaxHosts(n int) *ClientOptions {
	o.SRVMaxHosts = &n
	return o
}

// SetSRVServiceName overrides the service name looked up in the SRV
// record, "mongodb" by default.
func (o *ClientOptions) SetSRVServiceName(name string) *ClientOptions {
	o.SRVServiceName = &name
	return o
}

// MergeClientOptions combines opts left-to-right, later options overriding
// earlier ones for any field they set.
func MergeClientOptions(opts ...*ClientOptions) *ClientOptions {
	merged := &ClientOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.AppName != nil {
			merged.AppName = o.AppName
		}
		if o.MaxPoolSize != nil {
			merged.MaxPoolSize = o.MaxPoolSize
		}
		if o.ReadPreference != nil {
			merged.ReadPreference = o.ReadPreference
		}
		if o.ReadConcern != nil {
			merged.ReadConcern = o.ReadConcern
		}
		if o.WriteConcern != nil {
			merged.WriteConcern = o.WriteConcern
		}
		if o.Monitor != nil {
			merged.Monitor = o.Monitor
		}
		if o.ServerMonitor != nil {
			merged.ServerMonitor = o.ServerMonitor
		}
		if o.PoolMonitor != nil {
			merged.PoolMonitor = o.PoolMonitor
		}
		if o.RetryReads != nil {
			merged.RetryReads = o.RetryReads
		}
		if o.RetryWrites != nil {
			merged.RetryWrites = o.RetryWrites
		}
		if o.LocalThreshold != nil {
			merged.LocalThreshold = o.LocalThreshold
		}
		if o.ServerSelectionTimeout != nil {
			merged.ServerSelectionTimeout = o.ServerSelectionTimeout
		}
		if o.SocketTimeout != nil {
			merged.SocketTimeout = o.SocketTimeout
		}
		if o.ConnectTimeout != nil {
			merged.ConnectTimeout = o.ConnectTimeout
		}
		if o.HeartbeatInterval != nil {
			merged.HeartbeatInterval = o.HeartbeatInterval
		}
		if o.MaxIdleTime != nil {
			merged.MaxIdleTime = o.MaxIdleTime
		}
		if o.Compressors != nil {
			merged.Compressors = o.Compressors
		}
		if o.ZlibCompressionLevel != nil {
			merged.ZlibCompressionLevel = o.ZlibCompressionLevel
		}
		if o.SRVMaxHosts != nil {
			merged.SRVMaxHosts = o.SRVMaxHosts
		}
		if o.SRVServiceName != nil {
			merged.SRVServiceName = o.SRVServiceName
		}
	}
	return merged
}

// DatabaseOptions configures Client.Database.
type DatabaseOptions struct {
	ReadPreference *readpref.ReadPref
	ReadConcern    *readconcern.ReadConcern
	WriteConcern   *writeconcern.WriteConcern
}

// Database creates a new, empty DatabaseOptions.
func Database() *DatabaseOptions { return &DatabaseOptions{} }

func (o *DatabaseOptions) SetReadPreference(rp *readpref.ReadPref) *DatabaseOptions {
	o.ReadPreference = rp
	return o
}
func (o *DatabaseOptions) SetReadConcern(rc *readconcern.ReadConcern) *DatabaseOptions {
	o.ReadConcern = rc
	return o
}
func (o *DatabaseOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *DatabaseOptions {
	o.WriteConcern = wc
	return o
}

// MergeDatabaseOptions combines opts left-to-right.
func MergeDatabaseOptions(opts ...*DatabaseOptions) *DatabaseOptions {
	merged := &DatabaseOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadPreference != nil {
			merged.ReadPreference = o.ReadPreference
		}
		if o.ReadConcern != nil {
			merged.ReadConcern = o.ReadConcern
		}
		if o.WriteConcern != nil {
			merged.WriteConcern = o.WriteConcern
		}
	}
	return merged
}

// CollectionOptions configures Database.Collection.
type CollectionOptions struct {
	ReadPreference *readpref.ReadPref
	ReadConcern    *readconcern.ReadConcern
	WriteConcern   *writeconcern.WriteConcern
}

// Collection creates a new, empty CollectionOptions.
func Collection() *CollectionOptions { return &CollectionOptions{} }

func (o *CollectionOptions) SetReadPreference(rp *readpref.ReadPref) *CollectionOptions {
	o.ReadPreference = rp
	return o
}
func (o *CollectionOptions) SetReadConcern(rc *readconcern.ReadConcern) *CollectionOptions {
	o.ReadConcern = rc
	return o
}
func (o *CollectionOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *CollectionOptions {
	o.WriteConcern = wc
	return o
}

// MergeCollectionOptions combines opts left-to-right.
func MergeCollectionOptions(opts ...*CollectionOptions) *CollectionOptions {
	merged := &CollectionOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadPreference != nil {
			merged.ReadPreference = o.ReadPreference
		}
		if o.ReadConcern != nil {
			merged.ReadConcern = o.ReadConcern
		}
		if o.WriteConcern != nil {
			merged.WriteConcern = o.WriteConcern
		}
	}
	return merged
}

// SessionOptions configures Client.StartSession.
type SessionOptions struct {
	CausalConsistency   *bool
	DefaultReadConcern  *readconcern.ReadConcern
	DefaultWriteConcern *writeconcern.WriteConcern
}

// Session creates a new, empty SessionOptions.
func Session() *SessionOptions { return &SessionOptions{} }

func (o *SessionOptions) SetCausalConsistency(v bool) *SessionOptions {
	o.CausalConsistency = &v
	return o
}
func (o *SessionOptions) SetDefaultReadConcern(rc *readconcern.ReadConcern) *SessionOptions {
	o.DefaultReadConcern = rc
	return o
}
func (o *SessionOptions) SetDefaultWriteConcern(wc *writeconcern.WriteConcern) *SessionOptions {
	o.DefaultWriteConcern = wc
	return o
}

// MergeSessionOptions combines opts left-to-right.
func MergeSessionOptions(opts ...*SessionOptions) *SessionOptions {
	merged := &SessionOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.CausalConsistency != nil {
			merged.CausalConsistency = o.CausalConsistency
		}
		if o.DefaultReadConcern != nil {
			merged.DefaultReadConcern = o.DefaultReadConcern
		}
		if o.DefaultWriteConcern != nil {
			merged.DefaultWriteConcern = o.DefaultWriteConcern
		}
	}
	return merged
}

// TransactionOptions configures Session.StartTransaction/WithTransaction.
type TransactionOptions struct {
	ReadConcern  *readconcern.ReadConcern
	WriteConcern *writeconcern.WriteConcern
}

// Transaction creates a new, empty TransactionOptions.
func Transaction() *TransactionOptions { return &TransactionOptions{} }

func (o *TransactionOptions) SetReadConcern(rc *readconcern.ReadConcern) *TransactionOptions {
	o.ReadConcern = rc
	return o
}
func (o *TransactionOptions) SetWriteConcern(wc *writeconcern.WriteConcern) *TransactionOptions {
	o.WriteConcern = wc
	return o
}

// MergeTransactionOptions combines opts left-to-right.
func MergeTransactionOptions(opts ...*TransactionOptions) *TransactionOptions {
	merged := &TransactionOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadConcern != nil {
			merged.ReadConcern = o.ReadConcern
		}
		if o.WriteConcern != nil {
			merged.WriteConcern = o.WriteConcern
		}
	}
	return merged
}

// RunCmdOptions configures Database.RunCommand.
type RunCmdOptions struct {
	ReadPreference *readpref.ReadPref
}

// RunCmd creates a new, empty RunCmdOptions.
func RunCmd() *RunCmdOptions { return &RunCmdOptions{} }

func (o *RunCmdOptions) SetReadPreference(rp *readpref.ReadPref) *RunCmdOptions {
	o.ReadPreference = rp
	return o
}

// MergeRunCmdOptions combines opts left-to-right.
func MergeRunCmdOptions(opts ...*RunCmdOptions) *RunCmdOptions {
	merged := &RunCmdOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadPreference != nil {
			merged.ReadPreference = o.ReadPreference
		}
	}
	return merged
}

// FindOptions configures Collection.Find.
type FindOptions struct {
	Sort       interface{}
	Projection interface{}
	Limit      *int64
	Skip       *int64
	BatchSize  *int32
	Comment    *string
}

// Find creates a new, empty FindOptions.
func Find() *FindOptions { return &FindOptions{} }

func (o *FindOptions) SetSort(sort interface{}) *FindOptions       { o.Sort = sort; return o }
func (o *FindOptions) SetProjection(p interface{}) *FindOptions    { o.Projection = p; return o }
func (o *FindOptions) SetLimit(n int64) *FindOptions               { o.Limit = &n; return o }
func (o *FindOptions) SetSkip(n int64) *FindOptions                { o.Skip = &n; return o }
func (o *FindOptions) SetBatchSize(n int32) *FindOptions           { o.BatchSize = &n; return o }
func (o *FindOptions) SetComment(c string) *FindOptions            { o.Comment = &c; return o }

// MergeFindOptions combines opts left-to-right.
func MergeFindOptions(opts ...*FindOptions) *FindOptions {
	merged := &FindOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			merged.Sort = o.Sort
		}
		if o.Projection != nil {
			merged.Projection = o.Projection
		}
		if o.Limit != nil {
			merged.Limit = o.Limit
		}
		if o.Skip != nil {
			merged.Skip = o.Skip
		}
		if o.BatchSize != nil {
			merged.BatchSize = o.BatchSize
		}
		if o.Comment != nil {
			merged.Comment = o.Comment
		}
	}
	return merged
}

// FindOneOptions configures Collection.FindOne; it shares FindOptions's
// fields minus the ones that make no sense for a single document.
type FindOneOptions struct {
	Sort       interface{}
	Projection interface{}
	Skip       *int64
}

// FindOne creates a new, empty FindOneOptions.
func FindOne() *FindOneOptions { return &FindOneOptions{} }

func (o *FindOneOptions) SetSort(sort interface{}) *FindOneOptions    { o.Sort = sort; return o }
func (o *FindOneOptions) SetProjection(p interface{}) *FindOneOptions { o.Projection = p; return o }
func (o *FindOneOptions) SetSkip(n int64) *FindOneOptions             { o.Skip = &n; return o }

// MergeFindOneOptions combines opts left-to-right.
func MergeFindOneOptions(opts ...*FindOneOptions) *FindOneOptions {
	merged := &FindOneOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			merged.Sort = o.Sort
		}
		if o.Projection != nil {
			merged.Projection = o.Projection
		}
		if o.Skip != nil {
			merged.Skip = o.Skip
		}
	}
	return merged
}

// InsertManyOptions configures Collection.InsertMany.
type InsertManyOptions struct {
	Ordered *bool
}

// InsertMany creates a new, empty InsertManyOptions.
func InsertMany() *InsertManyOptions { return &InsertManyOptions{} }

func (o *InsertManyOptions) SetOrdered(v bool) *InsertManyOptions { o.Ordered = &v; return o }

// MergeInsertManyOptions combines opts left-to-right.
func MergeInsertManyOptions(opts ...*InsertManyOptions) *InsertManyOptions {
	merged := &InsertManyOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Ordered != nil {
			merged.Ordered = o.Ordered
		}
	}
	return merged
}

// UpdateOptions configures Collection.UpdateOne/UpdateMany.
type UpdateOptions struct {
	Upsert *bool
}

// Update creates a new, empty UpdateOptions.
func Update() *UpdateOptions { return &UpdateOptions{} }

func (o *UpdateOptions) SetUpsert(v bool) *UpdateOptions { o.Upsert = &v; return o }

// MergeUpdateOptions combines opts left-to-right.
func MergeUpdateOptions(opts ...*UpdateOptions) *UpdateOptions {
	merged := &UpdateOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Upsert != nil {
			merged.Upsert = o.Upsert
		}
	}
	return merged
}

// DeleteOptions configures Collection.DeleteOne/DeleteMany. Neither
// deletion variant currently exposes a tunable option, but the type exists
// so call sites and future options (e.g. Collation) have a stable home.
type DeleteOptions struct{}

// Delete creates a new, empty DeleteOptions.
func Delete() *DeleteOptions { return &DeleteOptions{} }

// MergeDeleteOptions combines opts left-to-right.
func MergeDeleteOptions(opts ...*DeleteOptions) *DeleteOptions { return &DeleteOptions{} }

// AggregateOptions configures Collection.Aggregate/Database.Aggregate.
type AggregateOptions struct {
	BatchSize *int32
	MaxTimeMS *int64
}

// Aggregate creates a new, empty AggregateOptions.
func Aggregate() *AggregateOptions { return &AggregateOptions{} }

func (o *AggregateOptions) SetBatchSize(n int32) *AggregateOptions { o.BatchSize = &n; return o }
func (o *AggregateOptions) SetMaxTime(ms int64) *AggregateOptions  { o.MaxTimeMS = &ms; return o }

// MergeAggregateOptions combines opts left-to-right.
func MergeAggregateOptions(opts ...*AggregateOptions) *AggregateOptions {
	merged := &AggregateOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.BatchSize != nil {
			merged.BatchSize = o.BatchSize
		}
		if o.MaxTimeMS != nil {
			merged.MaxTimeMS = o.MaxTimeMS
		}
	}
	return merged
}

// CountOptions configures Collection.CountDocuments.
type CountOptions struct {
	Limit *int64
	Skip  *int64
}

// Count creates a new, empty CountOptions.
func Count() *CountOptions { return &CountOptions{} }

func (o *CountOptions) SetLimit(n int64) *CountOptions { o.Limit = &n; return o }
func (o *CountOptions) SetSkip(n int64) *CountOptions  { o.Skip = &n; return o }

// MergeCountOptions combines opts left-to-right.
func MergeCountOptions(opts ...*CountOptions) *CountOptions {
	merged := &CountOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Limit != nil {
			merged.Limit = o.Limit
		}
		if o.Skip != nil {
			merged.Skip = o.Skip
		}
	}
	return merged
}

// ListCollectionsOptions configures Database.ListCollectionNames/
// ListCollections.
type ListCollectionsOptions struct {
	NameOnly *bool
}

// ListCollections creates a new, empty ListCollectionsOptions.
func ListCollections() *ListCollectionsOptions { return &ListCollectionsOptions{} }

func (o *ListCollectionsOptions) SetNameOnly(v bool) *ListCollectionsOptions {
	o.NameOnly = &v
	return o
}

// MergeListCollectionsOptions combines opts left-to-right.
func MergeListCollectionsOptions(opts ...*ListCollectionsOptions) *ListCollectionsOptions {
	merged := &ListCollectionsOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.NameOnly != nil {
			merged.NameOnly = o.NameOnly
		}
	}
	return merged
}

// ChangeStreamOptions configures Collection.Watch/Database.Watch/
// Client.Watch.
type ChangeStreamOptions struct {
	BatchSize    *int32
	ResumeAfter  interface{}
	FullDocument *string
}

// ChangeStream creates a new, empty ChangeStreamOptions.
func ChangeStream() *ChangeStreamOptions { return &ChangeStreamOptions{} }

func (o *ChangeStreamOptions) SetBatchSize(n int32) *ChangeStreamOptions { o.BatchSize = &n; return o }
func (o *ChangeStreamOptions) SetResumeAfter(token interface{}) *ChangeStreamOptions {
	o.ResumeAfter = token
	return o
}
func (o *ChangeStreamOptions) SetFullDocument(v string) *ChangeStreamOptions {
	o.FullDocument = &v
	return o
}

// MergeChangeStreamOptions combines opts left-to-right.
func MergeChangeStreamOptions(opts ...*ChangeStreamOptions) *ChangeStreamOptions {
	merged := &ChangeStreamOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.BatchSize != nil {
			merged.BatchSize = o.BatchSize
		}
		if o.ResumeAfter != nil {
			merged.ResumeAfter = o.ResumeAfter
		}
		if o.FullDocument != nil {
			merged.FullDocument = o.FullDocument
		}
	}
	return merged
}

// CreateIndexesOptions configures IndexView.CreateOne/CreateMany.
type CreateIndexesOptions struct {
	MaxTimeMS *int64
}

// CreateIndexes creates a new, empty CreateIndexesOptions.
func CreateIndexes() *CreateIndexesOptions { return &CreateIndexesOptions{} }

func (o *CreateIndexesOptions) SetMaxTime(d time.Duration) *CreateIndexesOptions {
	ms := int64(d / time.Millisecond)
	o.MaxTimeMS = &ms
	return o
}

// MergeCreateIndexesOptions combines opts left-to-right.
func MergeCreateIndexesOptions(opts ...*CreateIndexesOptions) *CreateIndexesOptions {
	merged := &CreateIndexesOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.MaxTimeMS != nil {
			merged.MaxTimeMS = o.MaxTimeMS
		}
	}
	return merged
}

// DropIndexesOptions configures IndexView.DropOne/DropAll.
type DropIndexesOptions struct {
	MaxTimeMS *int64
}

// DropIndexes creates a new, empty DropIndexesOptions.
func DropIndexes() *DropIndexesOptions { return &DropIndexesOptions{} }

func (o *DropIndexesOptions) SetMaxTime(d time.Duration) *DropIndexesOptions {
	ms := int64(d / time.Millisecond)
	o.MaxTimeMS = &ms
	return o
}

// MergeDropIndexesOptions combines opts left-to-right.
func MergeDropIndexesOptions(opts ...*DropIndexesOptions) *DropIndexesOptions {
	merged := &DropIndexesOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.MaxTimeMS != nil {
			merged.MaxTimeMS = o.MaxTimeMS
		}
	}
	return merged
}

// ListIndexesOptions configures IndexView.List.
type ListIndexesOptions struct {
	BatchSize *int32
}

// ListIndexes creates a new, empty ListIndexesOptions.
func ListIndexes() *ListIndexesOptions { return &ListIndexesOptions{} }

func (o *ListIndexesOptions) SetBatchSize(n int32) *ListIndexesOptions { o.BatchSize = &n; return o }

// MergeListIndexesOptions combines opts left-to-right.
func MergeListIndexesOptions(opts ...*ListIndexesOptions) *ListIndexesOptions {
	merged := &ListIndexesOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.BatchSize != nil {
			merged.BatchSize = o.BatchSize
		}
	}
	return merged
}
