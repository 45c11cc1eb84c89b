package common

import (
	"sync"

	"github.com/ledgerflow/paymentcore/common/mlog"
)

// App represents a long-running background process registered to a
// Launcher: the outbox dispatcher, the idempotency garbage collector, or
// the HTTP front door.
type App interface {
	Run(launcher *Launcher) error
}

// LauncherOption configures a Launcher at construction time.
type LauncherOption func(l *Launcher)

// WithLogger attaches a logger to the launcher.
func WithLogger(logger mlog.Logger) LauncherOption {
	return func(l *Launcher) {
		l.Logger = logger
	}
}

// RunApp registers an App under the given name.
func RunApp(name string, app App) LauncherOption {
	return func(l *Launcher) {
		l.Add(name, app)
	}
}

// Launcher runs a set of Apps concurrently and blocks until all of them
// return.
type Launcher struct {
	Logger mlog.Logger
	apps   map[string]App
	wg     *sync.WaitGroup
}

// Add registers an application to be started by Run.
func (l *Launcher) Add(name string, a App) *Launcher {
	l.apps[name] = a
	return l
}

// Run starts every registered application in its own goroutine and waits
// for all of them to finish.
func (l *Launcher) Run() {
	count := len(l.apps)
	l.wg.Add(count)

	l.Logger.Infof("starting %d app(s)", count)

	for name, app := range l.apps {
		go func(name string, app App) {
			defer l.wg.Done()

			l.Logger.Infof("app %s starting", name)

			if err := app.Run(l); err != nil {
				l.Logger.Errorf("app %s exited with error: %v", name, err)
			}

			l.Logger.Infof("app %s finished", name)
		}(name, app)
	}

	l.wg.Wait()

	l.Logger.Info("launcher terminated")
}

// NewLauncher builds a Launcher ready to accept App registrations.
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{
		apps: make(map[string]App),
		wg:   new(sync.WaitGroup),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}
