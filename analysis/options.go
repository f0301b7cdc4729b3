package analysis

import (
	"time"

	"github.com/jonwraymond/toolgate/gate"
)

// DefaultExecutionTimeout bounds each candidate run inside the hosted
// interpreter.
const DefaultExecutionTimeout = 5 * time.Second

// Options configures a Session.
type Options struct {
	// ExecutionTimeout bounds each candidate run inside the hosted
	// interpreter. Default: 5s. Negative disables the bound.
	ExecutionTimeout time.Duration

	// Logger receives gate lifecycle transitions.
	// Optional; if nil, transitions are not logged.
	Logger gate.Logger
}

// applyDefaults sets default values for unset optional fields.
func (o *Options) applyDefaults() {
	if o.ExecutionTimeout == 0 {
		o.ExecutionTimeout = DefaultExecutionTimeout
	}
	if o.ExecutionTimeout < 0 {
		o.ExecutionTimeout = 0
	}
}
