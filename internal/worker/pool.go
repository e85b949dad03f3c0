package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// spawnWorkerPool spawns N goroutines receiving from the shared delivery
// channel. The returned channel closes once every goroutine has exited.
func (w *Worker) spawnWorkerPool(ctx context.Context, deliveries <-chan amqp.Delivery) <-chan struct{} {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("consumer_tag", w.consumerTag),
	)

	var pool sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		pool.Add(1)
		go func(workerNum int) {
			defer pool.Done()
			w.workerLoop(ctx, workerNum, deliveries)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	return done
}

// workerLoop handles deliveries one at a time until the worker stops or
// the delivery channel closes
func (w *Worker) workerLoop(ctx context.Context, workerNum int, deliveries <-chan amqp.Delivery) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.consumerTag, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case d, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.handleDelivery(ctx, d)
		}
	}
}
