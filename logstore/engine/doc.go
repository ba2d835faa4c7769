// Package engine assembles the log store: capture registry, ingestion buffer, batch persister,
// page cache, retention sweeper and webhook trigger around one storage backend.
//
// Usage:
//
//	store, _ := sqlengine.NewStoreFromSQLX(db, sqlengine.DialectSQLite)
//	e, err := engine.New(ctx, store,
//		engine.WithBatchSize(100),
//		engine.WithRetention(30*24*time.Hour),
//		engine.WithLogger(slog.Default()),
//	)
//	if err != nil {
//		return err
//	}
//	e.Start(ctx)
//	defer e.Shutdown(context.Background())
//
//	receipt := e.Enqueue(logstore.NewRecord("player_chat", payload))
//	page, err := e.GetPage(ctx, 1, 50, logstore.BuildFilter().OfType("player_chat").Finalize())
//
// Every successful mutation drops the whole page cache before it returns.
package engine
