package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"memberhub/internal/dto"
	"memberhub/internal/mailer"
	"memberhub/internal/rabbit"
)

// Reader drains the notification queue and turns each message into a mail.
// Delivery failures are logged and acked; a broken mailbox must not clog
// the queue for everyone else.
type Reader struct {
	RMQ    *rabbit.Client
	mail   *mailer.Mailer
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, mail *mailer.Mailer) *Reader {
	return &Reader{
		RMQ:  rmq,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("Notification worker started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(r.handle); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("Notification worker stopped by context")
	}()
}

// handle processes one queue message. It never returns an error for bad
// payloads: a malformed message would be redelivered forever, so it is
// logged and dropped instead.
func (r *Reader) handle(body []byte) error {
	var msg dto.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("Dropping malformed notification: %s", string(body))
		return nil
	}

	zlog.Logger.Info().
		Str("kind", msg.Kind).
		Str("email", msg.Email).
		Msg("Received notification from RabbitMQ")

	if msg.Email == "" {
		zlog.Logger.Warn().
			Str("kind", msg.Kind).
			Msg("Notification without recipient, skipping")
		return nil
	}

	if err := r.mail.Send(msg); err != nil {
		zlog.Logger.Warn().
			Err(err).
			Str("email", msg.Email).
			Msg("Failed to send notification mail")
	}
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
