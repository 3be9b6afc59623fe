// Package shutdown coordinates the terminal shutdown of a network service.
//
// A Controller subscribes to termination events (SIGINT and SIGTERM by default).
// On the first event it waits NewConnectionsGrace so that requests already routed
// to the process still land. It then asks the server to stop accepting
// connections and waits up to DrainGrace for the open ones to finish, forcing them
// closed if they do not. Finally it runs the optional Teardown callback and exits
// with status 0, or 1 if the callback failed.
//
//	srv := &http.Server{Addr: ":8080", Handler: mux}
//	ctrl, err := shutdown.Register(shutdown.Options{
//	    Events:              shutdown.DefaultEvents,
//	    Server:              srv,
//	    Logger:              log,
//	    NewConnectionsGrace: 5 * time.Second,
//	    DrainGrace:          30 * time.Second,
//	    Teardown: func(ctx context.Context) error {
//	        return db.Close()
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
//	    return err
//	}
//	<-ctrl.Done()
//
// Repeated or concurrent events are harmless: the sequence runs once.
package shutdown
