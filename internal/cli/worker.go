package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/devHaitham481/A-Team/internal/metrics"
	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/pipeline"
	"github.com/devHaitham481/A-Team/internal/queue"
	"github.com/devHaitham481/A-Team/internal/storage"
	"github.com/devHaitham481/A-Team/internal/tracing"
	"github.com/devHaitham481/A-Team/internal/worker"
)

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume recording jobs from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWorker(ctx)
		},
	}
}

func (a *app) runWorker(ctx context.Context) error {
	cfg := a.cfg

	if cfg.TracingURL != "" {
		tp, err := tracing.InitTracer(ctx, cfg.TracingURL)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	objects, err := a.objectStore(ctx)
	if err != nil {
		return err
	}

	db, err := storage.NewPostgresStore(ctx, cfg.Database.URL, a.logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	// The handler is bound once the publishers exist on the consumer's connection.
	var uc *worker.ProcessRecordingUseCase
	consumer, err := queue.NewConsumer(queue.ConsumerConfig{
		URL:         cfg.Queue.URL,
		Queue:       cfg.Queue.JobQueue,
		Exchange:    cfg.Queue.Exchange,
		DLQ:         cfg.Queue.DLQ,
		StatusQueue: cfg.Queue.StatusQueue,
		Prefetch:    cfg.Queue.Prefetch,
		WorkerCount: cfg.Queue.WorkerCount,
		BaseDelayMs: cfg.Queue.BaseDelayMs,
	}, func(ctx context.Context, body []byte) error {
		return uc.Execute(ctx, body)
	}, a.logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	pub, err := queue.NewPublisher(consumer.Conn(), cfg.Queue.Exchange)
	if err != nil {
		return err
	}

	tempDir := cfg.Pipeline.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "keyframes")
	}

	uc = worker.NewProcessRecordingUseCase(worker.Deps{
		Jobs:      db,
		Source:    objects,
		Processor: pipeline.NewDefault(cfg.Pipeline, a.logger),
		Artifacts: objects,
		Index:     db,
		Status:    queue.NewStatusPublisher(pub),
		DLQ:       queue.NewDLQPublisher(pub, cfg.Queue.DLQ),
	}, worker.Config{
		TempDir:     tempDir,
		MaxAttempts: cfg.Queue.MaxAttempts,
	}, a.logger)

	if cfg.MetricsPort > 0 {
		metrics.StartMetricsServer(ctx, cfg.MetricsPort, a.logger)
	}

	a.logger.Info("worker ready", "queue", cfg.Queue.JobQueue, "workers", cfg.Queue.WorkerCount)
	return consumer.Start(ctx)
}

func newEnqueueCommand(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "enqueue <video>",
		Short: "Upload a recording and queue it for a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if key == "" {
				key = filepath.Base(args[0])
			}

			objects, err := a.objectStore(ctx)
			if err != nil {
				return err
			}
			if err := objects.UploadRecording(ctx, key, args[0]); err != nil {
				return err
			}

			conn, err := amqp.Dial(a.cfg.Queue.URL)
			if err != nil {
				return fmt.Errorf("dial rabbitmq: %w", err)
			}
			defer conn.Close()

			pub, err := queue.NewPublisher(conn, a.cfg.Queue.Exchange)
			if err != nil {
				return err
			}

			msg := models.JobMessage{JobID: uuid.New(), RecordingKey: key}
			if err := pub.PublishJob(ctx, msg); err != nil {
				return fmt.Errorf("publish job: %w", err)
			}

			fmt.Fprintf(a.out, "Queued job %s for %s\n", msg.JobID, key)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "object key for the recording (default: file name)")
	return cmd
}
