package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/log"
	"finanzas/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// Consumer delivers sheet change notifications until ctx ends.
type Consumer interface {
	ConsumeWithReconnect(ctx context.Context, handler amqp.Handler) error
}

// MirrorWorker copies sheets from the primary store to a replica, usually
// Google Sheets, so the spreadsheet stays the human-facing view.
type MirrorWorker struct {
	source  sheets.Table
	target  sheets.RowReplacer
	schemas map[string]sheets.Schema
	order   []string
	logger  *log.Logger
}

func NewMirrorWorker(source sheets.Table, target sheets.RowReplacer, schemas []sheets.Schema, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	w := &MirrorWorker{
		source:  source,
		target:  target,
		schemas: make(map[string]sheets.Schema, len(schemas)),
		logger:  logger.WithComponent(log.ComponentWorker),
	}
	for _, s := range schemas {
		w.schemas[s.Sheet] = s
		w.order = append(w.order, s.Sheet)
	}
	return w
}

// HandleSheetChanged mirrors the sheet named in msg.
func (w *MirrorWorker) HandleSheetChanged(ctx context.Context, msg *amqp.SheetChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing sheet change",
		log.FieldMessageID, msg.ID.String(),
		log.FieldSheet, msg.Sheet,
		log.FieldOperation, msg.Operation)
	return w.MirrorSheet(ctx, msg.Sheet)
}

// MirrorSheet replaces the replica's copy of sheet with the primary's rows.
// Unknown sheets are ignored.
func (w *MirrorWorker) MirrorSheet(ctx context.Context, sheet string) error {
	s, ok := w.schemas[sheet]
	if !ok {
		w.logger.WarnContext(ctx, "Ignoring change for unknown sheet", log.FieldSheet, sheet)
		return nil
	}
	start := time.Now()
	rows, err := w.source.ReadRows(ctx, s)
	if err != nil {
		return fmt.Errorf("read %s from primary: %w", sheet, err)
	}
	if err := w.target.ReplaceRows(ctx, s, rows); err != nil {
		return fmt.Errorf("write %s to replica: %w", sheet, err)
	}
	w.logger.InfoContext(ctx, "Sheet mirrored",
		log.FieldSheet, sheet,
		log.FieldCount, len(rows),
		log.FieldOperation, log.OpMirror,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// MirrorAll mirrors every sheet, continuing past failures.
func (w *MirrorWorker) MirrorAll(ctx context.Context) error {
	var errs []error
	for _, name := range w.order {
		if err := w.MirrorSheet(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run mirrors everything once, then follows change events from consumer
// (if any) and reconciles all sheets every interval. It returns when ctx
// is cancelled or the consumer fails for good.
func (w *MirrorWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if err := w.MirrorAll(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup mirror failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeWithReconnect(ctx, w.HandleSheetChanged)
		})
	}
	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := w.MirrorAll(ctx); err != nil {
						w.logger.ErrorContext(ctx, "Periodic reconcile failed", log.FieldError, err)
					}
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
