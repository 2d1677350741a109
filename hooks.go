package bouncer

// Lookup outcomes reported by Cached.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// They are called on hot paths (every backend command, every lookup).
type Hooks interface {
	// One key/value backend command finished.
	// db is the logical database name, op ∈ {"GET", "SETEX"}.
	BackendCall(db, op string, err error)

	// A Cached lookup was answered from the store or fell through.
	// outcome ∈ {OutcomeHit, OutcomeMiss, OutcomeError}
	CacheLookup(namespace, outcome string)

	// A background write-back finished (err == nil on success).
	WriteBack(namespace string, err error)

	// A write-back was dropped because the pool queue was full or closed.
	WriteBackDropped(namespace string)

	// The non-authoritative side of a dual store failed and was swallowed.
	// op ∈ {"set", "get"}
	SecondaryFailure(store, op string, err error)

	// A CSRF token was rejected. reason ∈ {"malformed", "invalid"}
	TokenRejected(reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BackendCall(string, string, error)      {}
func (NopHooks) CacheLookup(string, string)             {}
func (NopHooks) WriteBack(string, error)                {}
func (NopHooks) WriteBackDropped(string)                {}
func (NopHooks) SecondaryFailure(string, string, error) {}
func (NopHooks) TokenRejected(string)                   {}

// MultiHooks fans every event out to all members in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) BackendCall(db, op string, err error) {
	for _, h := range m {
		h.BackendCall(db, op, err)
	}
}

func (m MultiHooks) CacheLookup(ns, outcome string) {
	for _, h := range m {
		h.CacheLookup(ns, outcome)
	}
}

func (m MultiHooks) WriteBack(ns string, err error) {
	for _, h := range m {
		h.WriteBack(ns, err)
	}
}

func (m MultiHooks) WriteBackDropped(ns string) {
	for _, h := range m {
		h.WriteBackDropped(ns)
	}
}

func (m MultiHooks) SecondaryFailure(store, op string, err error) {
	for _, h := range m {
		h.SecondaryFailure(store, op, err)
	}
}

func (m MultiHooks) TokenRejected(reason string) {
	for _, h := range m {
		h.TokenRejected(reason)
	}
}
