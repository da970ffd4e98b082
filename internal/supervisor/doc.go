// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
Package supervisor provides process supervision for Tastemap using suture v4.

Long-running services are organized into two layers:

	RootSupervisor ("tastemap")
	├── DataSupervisor ("data-layer")
	│   ├── cache-janitor     (CACHE_BACKEND=memory)
	│   ├── badger-gc         (CACHE_BACKEND=badger)
	│   └── uptime
	└── APISupervisor ("api-layer")
	    └── http-server

A crashing maintenance task restarts with backoff inside the data layer;
the HTTP server keeps serving.

# Logging

Supervisor events (service failures, backoff, terminations) are logged
through sutureslog. The slog.Logger passed to NewSupervisorTree is normally
logging.NewSlogLogger(), so events land in the zerolog JSON stream:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(httpSvc)
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

# Shutdown

Canceling the Serve context stops every service. Services that do not
return within TreeConfig.ShutdownTimeout are listed by
UnstoppedServiceReport.
*/
package supervisor
