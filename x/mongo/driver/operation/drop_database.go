package operation

import (
	"context"
	"errors"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// DropDatabase performs a dropDatabase command.
type DropDatabase struct {
	session      *session.Client
	clock        *session.ClusterClock
	database     string
	deployment   driver.Deployment
	writeConcern *writeconcern.WriteConcern
	monitor      *event.CommandMonitor

	dropped string
}

// NewDropDatabase constructs a DropDatabase.
func NewDropDatabase() *DropDatabase { return &DropDatabase{} }

// Dropped returns the dropped database's name, once Execute has run.
func (dd *DropDatabase) Dropped() string { return dd.dropped }

func (dd *DropDatabase) Database(db string) *DropDatabase { dd.database = db; return dd }
func (dd *DropDatabase) Deployment(d driver.Deployment) *DropDatabase {
	dd.deployment = d
	return dd
}
func (dd *DropDatabase) Session(s *session.Client) *DropDatabase { dd.session = s; return dd }
func (dd *DropDatabase) ClusterClock(c *session.ClusterClock) *DropDatabase {
	dd.clock = c
	return dd
}
func (dd *DropDatabase) WriteConcern(wc *writeconcern.WriteConcern) *DropDatabase {
	dd.writeConcern = wc
	return dd
}
func (dd *DropDatabase) Monitor(m *event.CommandMonitor) *DropDatabase {
	dd.monitor = m
	return dd
}

func (dd *DropDatabase) command(dst []byte, _ description.Server) ([]byte, error) {
	return bsoncore.AppendInt32Element(dst, "dropDatabase", 1), nil
}

// Execute runs the dropDatabase command.
func (dd *DropDatabase) Execute(ctx context.Context) error {
	if dd.deployment == nil {
		return errors.New("operation: DropDatabase requires a Deployment")
	}

	op := Operation{
		CommandFn:    dd.command,
		Database:     dd.database,
		Deployment:   dd.deployment,
		WriteConcern: dd.writeConcern,
		Session:      dd.session,
		Clock:        dd.clock,
		Type:         Write,
		CommandMonitor: dd.monitor,
		ProcessResponseFn: func(info ResponseInfo) error {
			dd.dropped, _ = info.ServerResponse.Lookup("dropped").StringValueOK()
			return nil
		},
	}
	_, err := op.Execute(ctx)
	return err
}
