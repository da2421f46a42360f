// Package pipeline runs queued interpretation jobs: photo download, the
// tracker pipeline, receipt archival, and the chat reply.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/danangw/duitku/internal/jobs"
	"github.com/danangw/duitku/internal/receipts"
	"github.com/danangw/duitku/internal/telegram"
	"github.com/danangw/duitku/internal/tracker"
)

// Bot is the chat surface the processor replies through.
type Bot interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Interpreter runs the message pipeline.
type Interpreter interface {
	Process(ctx context.Context, in tracker.Input) (*tracker.Outcome, error)
}

// Processor executes one InterpretMessageJob end to end.
type Processor struct {
	bot       Bot
	interp    Interpreter
	archive   receipts.Archiver
	formatter telegram.Formatter
	log       zerolog.Logger
}

// NewProcessor creates a Processor. archive may be nil when no receipt
// bucket is configured; photos are then interpreted but not archived.
func NewProcessor(bot Bot, interp Interpreter, archive receipts.Archiver, formatter telegram.Formatter, log zerolog.Logger) *Processor {
	return &Processor{
		bot:       bot,
		interp:    interp,
		archive:   archive,
		formatter: formatter,
		log:       log,
	}
}

// Handle is the jobs.JobHandler for interpretation work. Failures are
// reported to the user; the job is not retried, so the user decides
// whether to resend.
func (p *Processor) Handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.(*jobs.InterpretMessageJob)
	if !ok {
		return fmt.Errorf("unexpected job type %s", job.GetType())
	}

	in := tracker.Input{Text: msg.Text}
	if msg.PhotoFileID != "" {
		image, err := p.bot.DownloadFile(ctx, msg.PhotoFileID)
		if err != nil {
			p.reportFailure(ctx, msg.ChatID, err)
			return fmt.Errorf("download photo: %w", err)
		}
		in.Image = image
		in.ImageMIME = "image/jpeg"
	}

	out, err := p.interp.Process(ctx, in)
	if err != nil {
		p.reportFailure(ctx, msg.ChatID, err)
		return err
	}

	if p.archive != nil && len(in.Image) > 0 {
		uri, err := p.archive.Save(ctx, in.Image, in.ImageMIME)
		if err != nil {
			// The transaction is already booked; losing the image copy
			// is not worth failing the job over.
			p.log.Warn().Err(err).Msg("failed to archive receipt image")
		} else {
			p.log.Info().Str("uri", uri).Msg("receipt archived")
		}
	}

	if err := p.bot.SendMessage(ctx, msg.ChatID, p.formatter.Confirmation(out)); err != nil {
		p.log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("failed to send confirmation")
	}
	return nil
}

func (p *Processor) reportFailure(ctx context.Context, chatID int64, cause error) {
	p.log.Error().Err(cause).Int64("chat_id", chatID).Msg("message processing failed")
	if err := p.bot.SendMessage(ctx, chatID, "Sorry, I could not record that. Please try again."); err != nil {
		p.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send failure notice")
	}
}
