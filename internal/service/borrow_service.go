package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/queue"
	"github.com/iliyamo/library-management/internal/repository"
)

// EventPublisher delivers borrow events.  Implementations must be safe for
// concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BorrowEvent) error
}

// BorrowService runs the borrow lifecycle: OPEN on create, CLOSED on
// return, nothing after that.  Stock changes and borrow rows always move
// in the same transaction.
type BorrowService struct {
	store  BorrowStore
	events EventPublisher
	log    logging.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewBorrowService wires the workflow.  events may be nil.
func NewBorrowService(store BorrowStore, events EventPublisher, log logging.Logger) *BorrowService {
	return &BorrowService{
		store:  store,
		events: events,
		log:    log.With("component", "borrow-service"),
		tracer: otel.Tracer("library-management/service"),
		// DATETIME columns keep whole seconds.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Create lends bookID to readerID.
//
// Errors: ErrBorrowLimitExceeded, repository.ErrBookNotFound,
// repository.ErrNoCopiesAvailable, repository.ErrConflict.
func (s *BorrowService) Create(ctx context.Context, bookID, readerID uint64) (*model.Borrow, error) {
	ctx, span := s.tracer.Start(ctx, "borrow.create", trace.WithAttributes(
		attribute.Int64("book.id", int64(bookID)),
		attribute.Int64("reader.id", int64(readerID)),
	))
	defer span.End()

	var created *model.Borrow
	err := s.store.InTx(ctx, func(ctx context.Context, tx BorrowTx) error {
		// Serializes concurrent creates of the same reader so the limit holds.
		if err := tx.LockReader(ctx, readerID); err != nil {
			return err
		}
		open, err := tx.CountOpenBorrows(ctx, readerID)
		if err != nil {
			return err
		}
		if open >= model.MaxOpenBorrows {
			return ErrBorrowLimitExceeded
		}
		if err := tx.TakeCopy(ctx, bookID); err != nil {
			return err
		}
		b, err := tx.InsertBorrow(ctx, bookID, readerID, s.now())
		if err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int64("borrow.id", int64(created.ID)))
	s.log.Info(ctx, "borrow created", "borrow_id", created.ID, "book_id", bookID, "reader_id", readerID)
	s.publish(ctx, queue.EventBorrowCreated, created)
	return created, nil
}

// Close marks the borrow returned and puts the copy back on the shelf.
// Readers may only close their own borrows; admins may close any.
//
// Errors: repository.ErrBorrowNotFound, repository.ErrBookNotFound,
// repository.ErrForbidden, repository.ErrAlreadyReturned.
func (s *BorrowService) Close(ctx context.Context, borrowID uint64, actor model.User) (*model.Borrow, error) {
	ctx, span := s.tracer.Start(ctx, "borrow.close", trace.WithAttributes(
		attribute.Int64("borrow.id", int64(borrowID)),
		attribute.Int64("actor.id", int64(actor.ID)),
	))
	defer span.End()

	var closed *model.Borrow
	err := s.store.InTx(ctx, func(ctx context.Context, tx BorrowTx) error {
		b, err := tx.LockBorrow(ctx, borrowID)
		if err != nil {
			return err
		}
		if actor.Role != model.RoleAdmin && b.ReaderID != actor.ID {
			return repository.ErrForbidden
		}
		if _, err := tx.LockBook(ctx, b.BookID); err != nil {
			return err
		}
		if !b.IsOpen() {
			return repository.ErrAlreadyReturned
		}
		if err := tx.ReturnCopy(ctx, b.BookID); err != nil {
			return err
		}
		at := s.now()
		if err := tx.CloseBorrow(ctx, b.ID, at); err != nil {
			return err
		}
		b.ReturnDate = &at
		closed = b
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.log.Info(ctx, "borrow returned", "actor_id", actor.ID, "borrow_id", closed.ID, "book_id", closed.BookID, "reader_id", closed.ReaderID)
	s.publish(ctx, queue.EventBorrowReturned, closed)
	return closed, nil
}

// Get loads a single borrow.
func (s *BorrowService) Get(ctx context.Context, id uint64) (*model.Borrow, error) {
	return s.store.GetBorrow(ctx, id)
}

// publish is fire-and-forget: the transaction has already committed, so a
// broker outage is logged and never surfaces to the caller.
func (s *BorrowService) publish(ctx context.Context, typ string, b *model.Borrow) {
	if s.events == nil {
		return
	}
	ev := queue.BorrowEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		BorrowID:   b.ID,
		BookID:     b.BookID,
		ReaderID:   b.ReaderID,
		BorrowDate: b.BorrowDate,
		ReturnDate: b.ReturnDate,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn(ctx, "publish borrow event failed", "type", typ, "borrow_id", b.ID, "error", err)
	}
}
