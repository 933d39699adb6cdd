// Package app wires the engine together: storage, the projection
// dispatcher, the event pipeline, the reprojection engine, and the
// command services.
package app

import (
	"context"
	"errors"
	"log"

	"github.com/vk2dls/qsonet/internal/pipeline"
	"github.com/vk2dls/qsonet/internal/projection"
	"github.com/vk2dls/qsonet/internal/reprojection"
	"github.com/vk2dls/qsonet/internal/service"
	"github.com/vk2dls/qsonet/internal/storage"
)

// App owns every long-lived component of one engine instance.
type App struct {
	Store        storage.Store
	Queue        *pipeline.Queue
	Dispatcher   *projection.Dispatcher
	Worker       *pipeline.Worker
	Reprojection *reprojection.Engine
	Qsos         *service.QsoService
	Moderators   *service.ModeratorService
}

// New wires an App over the given store. The store is owned by the
// App and closed when Run returns.
func New(store storage.Store) *App {
	queue := pipeline.NewQueue()
	dispatcher := projection.New(store)
	return &App{
		Store:        store,
		Queue:        queue,
		Dispatcher:   dispatcher,
		Worker:       pipeline.NewWorker(queue, dispatcher),
		Reprojection: reprojection.NewEngine(store, store, dispatcher, queue),
		Qsos:         service.NewQsoService(store, store, queue),
		Moderators:   service.NewModeratorService(store, queue),
	}
}

// Run drives the pipeline worker until ctx is cancelled, then releases
// the store.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.Store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	log.Print("event pipeline started")
	err := a.Worker.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Print("event pipeline stopped")
		return nil
	}
	return err
}
