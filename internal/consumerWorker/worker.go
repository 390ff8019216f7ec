package consumerWorker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"regportal/internal/dto"
	"regportal/internal/storage"
)

// Consumer feeds raw task bodies to a handler. *rabbit.Client satisfies it.
type Consumer interface {
	Consume(handler func([]byte) error) error
}

type Notifier interface {
	NotifyRegistration(ctx context.Context, reg dto.RegistrationSubmittedMessage) error
}

type Reader struct {
	RMQ      Consumer
	store    storage.ObjectStore
	notifier Notifier
	done     chan struct{}
	cancel   context.CancelFunc
}

// NewReader builds a task reader. notifier may be nil, in which case
// registration events are acknowledged and dropped.
func NewReader(rmq Consumer, store storage.ObjectStore, notifier Notifier) *Reader {
	return &Reader{
		RMQ:      rmq,
		store:    store,
		notifier: notifier,
		done:     make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("task reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			return r.handle(cctx, body)
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("task reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// handle returns an error only for failures worth a redelivery.
func (r *Reader) handle(ctx context.Context, body []byte) error {
	var msg dto.TaskMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().Err(err).Msgf("dropping malformed task: %s", string(body))
		return nil
	}

	switch msg.Kind {
	case dto.TaskObjectCleanup:
		return r.cleanup(ctx, msg.Cleanup)
	case dto.TaskRegistrationSubmitted:
		return r.notify(ctx, msg.Registration)
	default:
		zlog.Logger.Warn().Str("kind", msg.Kind).Msg("dropping task of unknown kind")
		return nil
	}
}

func (r *Reader) cleanup(ctx context.Context, task *dto.ObjectCleanupMessage) error {
	if task == nil || task.Bucket == "" || len(task.Objects) == 0 {
		zlog.Logger.Warn().Msg("dropping empty cleanup task")
		return nil
	}
	if r.store == nil {
		zlog.Logger.Warn().Str("bucket", task.Bucket).Strs("objects", task.Objects).Msg("no object store, cleanup skipped")
		return nil
	}

	if err := r.store.Remove(ctx, task.Bucket, task.Objects...); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("bucket", task.Bucket).
			Strs("objects", task.Objects).
			Msg("failed to remove stored objects")
		return fmt.Errorf("remove objects: %w", err)
	}

	zlog.Logger.Info().
		Str("bucket", task.Bucket).
		Strs("objects", task.Objects).
		Str("reason", task.Reason).
		Msg("stored objects removed")
	return nil
}

func (r *Reader) notify(ctx context.Context, reg *dto.RegistrationSubmittedMessage) error {
	if reg == nil {
		zlog.Logger.Warn().Msg("dropping empty registration task")
		return nil
	}
	if r.notifier == nil {
		return nil
	}

	// a lost notification is not worth redelivering the task for
	if err := r.notifier.NotifyRegistration(ctx, *reg); err != nil {
		zlog.Logger.Warn().Err(err).Str("registration_id", reg.RegistrationID.String()).Msg("admin notification failed")
	}
	return nil
}
