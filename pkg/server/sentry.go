package server

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/francodb/francodb/pkg/errors"
)

// errorReporter forwards IO_ERROR and CORRUPTION kind errors to Sentry
// when a DSN is configured, matching the engine's "crash the
// connection; recovery on restart" and "mark page unusable, log,
// continue" recovery policies with an observable side channel an
// operator can alert on. With no DSN it is a silent no-op so a
// single-node deployment with no Sentry project configured pays
// nothing for this.
type errorReporter struct {
	enabled bool
}

// newErrorReporter initializes the global Sentry client if dsn is
// non-empty. sentry-go's client is process-global by design, so this
// is safe to call once per process, not once per server instance.
func newErrorReporter(dsn string) (*errorReporter, error) {
	if dsn == "" {
		return &errorReporter{enabled: false}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		return nil, errors.Wrap(errors.IOError, err, "initializing sentry client")
	}
	return &errorReporter{enabled: true}, nil
}

// Report sends err to Sentry if it carries an IO_ERROR or CORRUPTION
// kind and reporting is enabled; every other kind is a normal,
// expected outcome (bad SQL, a denied login) not worth paging anyone
// over.
func (r *errorReporter) Report(err error) {
	if !r.enabled || err == nil {
		return
	}
	kind, ok := errors.KindOf(err)
	if !ok || (kind != errors.IOError && kind != errors.Corruption) {
		return
	}
	sentry.CaptureException(err)
}

// Close flushes any buffered events before the process exits.
func (r *errorReporter) Close() {
	if r.enabled {
		sentry.Flush(2 * time.Second)
	}
}
