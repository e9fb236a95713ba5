package mongo

import (
	"errors"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/mongo/options"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
)

// transactionLifetime bounds how long WithTransaction keeps retrying a
// transaction that's repeatedly hitting transient errors, mirroring every
// driver generation's 120-second convenient-transactions timeout.
const transactionLifetime = 120 * time.Second

// WithTransaction starts a transaction on ctx's session, runs fn inside
// it, and commits on success. It retries the whole transaction (start,
// fn, commit) whenever fn or the commit fails with a TransientTransaction-
// Error label, and retries just the commit on an UnknownTransactionCommit-
// Result label, for as long as transactionLifetime allows — the same
// retry contract every driver generation's convenient transactions API
// exposes, since a transient error mid-transaction is expected to clear
// up on a retry rather than bubble out to the caller.
func WithTransaction(ctx SessionContext, fn func(SessionContext) (interface{}, error), opts ...*options.TransactionOptions) (interface{}, error) {
	txnOpts := options.MergeTransactionOptions(opts...)
	sess := ctx.Session()
	deadline := time.Now().Add(transactionLifetime)

	for {
		if err := sess.StartTransaction(txnOpts.ReadConcern, txnOpts.WriteConcern); err != nil {
			return nil, err
		}

		result, err := fn(ctx)
		if err != nil {
			_ = sess.AbortTransaction()
			if hasErrorLabel(err, "TransientTransactionError") && time.Now().Before(deadline) {
				continue
			}
			return nil, err
		}

		if commitErr := retryCommit(sess, deadline); commitErr != nil {
			if hasErrorLabel(commitErr, "TransientTransactionError") && time.Now().Before(deadline) {
				continue
			}
			return nil, commitErr
		}
		return result, nil
	}
}

// retryCommit commits the in-progress transaction, retrying on its own
// whenever the commit itself (as opposed to fn) reports an
// UnknownTransactionCommitResult — a dropped acknowledgment doesn't mean
// the write didn't land, so the safe move is to retry the commit alone
// rather than rerun fn a second time.
func retryCommit(sess sessionCommitter, deadline time.Time) error {
	for {
		err := sess.CommitTransaction()
		if err == nil {
			return nil
		}
		if hasErrorLabel(err, "UnknownTransactionCommitResult") && time.Now().Before(deadline) {
			continue
		}
		return err
	}
}

type sessionCommitter interface {
	CommitTransaction() error
}

func hasErrorLabel(err error, label string) bool {
	var de driver.Error
	if errors.As(err, &de) {
		return de.HasErrorLabel(label)
	}
	return false
}
