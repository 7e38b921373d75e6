package token

// Repo persists the raw session token under a single key. Get returns
// errors.ErrNotFound when no token is stored.
type Repo interface {
	Get() (string, error)
	Set(raw string) error
	Clear() error
}

// Watcher is implemented by repos that can observe changes made outside this
// process (another client sharing the same storage).
type Watcher interface {
	Watch(onChange func()) (stop func() error, err error)
}
