package service

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/queue"
	"github.com/iliyamo/library-management/internal/repository"
)

// memStore is a serializable in-memory BorrowStore: InTx holds one lock and
// restores a snapshot when fn fails.
type memStore struct {
	mu      sync.Mutex
	books   map[uint64]int
	readers map[uint64]bool
	borrows map[uint64]model.Borrow
	nextID  uint64
}

func newMemStore() *memStore {
	return &memStore{books: map[uint64]int{}, readers: map[uint64]bool{}, borrows: map[uint64]model.Borrow{}}
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx BorrowTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	books, borrows, next := maps.Clone(s.books), maps.Clone(s.borrows), s.nextID
	if err := fn(ctx, memTx{s}); err != nil {
		s.books, s.borrows, s.nextID = books, borrows, next
		return err
	}
	return nil
}

func (s *memStore) GetBorrow(_ context.Context, id uint64) (*model.Borrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.borrows[id]
	if !ok {
		return nil, repository.ErrBorrowNotFound
	}
	return &b, nil
}

func (s *memStore) available(bookID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[bookID]
}

type memTx struct{ s *memStore }

func (t memTx) LockReader(_ context.Context, id uint64) error {
	if !t.s.readers[id] {
		return repository.ErrUserNotFound
	}
	return nil
}

func (t memTx) CountOpenBorrows(_ context.Context, id uint64) (int, error) {
	n := 0
	for _, b := range t.s.borrows {
		if b.ReaderID == id && b.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (t memTx) TakeCopy(_ context.Context, id uint64) error {
	n, ok := t.s.books[id]
	switch {
	case !ok:
		return repository.ErrBookNotFound
	case n == 0:
		return repository.ErrNoCopiesAvailable
	}
	t.s.books[id] = n - 1
	return nil
}

func (t memTx) ReturnCopy(_ context.Context, id uint64) error {
	if _, ok := t.s.books[id]; !ok {
		return repository.ErrBookNotFound
	}
	t.s.books[id]++
	return nil
}

func (t memTx) InsertBorrow(_ context.Context, bookID, readerID uint64, at time.Time) (*model.Borrow, error) {
	t.s.nextID++
	b := model.Borrow{ID: t.s.nextID, BookID: bookID, ReaderID: readerID, BorrowDate: at}
	t.s.borrows[b.ID] = b
	return &b, nil
}

func (t memTx) LockBorrow(_ context.Context, id uint64) (*model.Borrow, error) {
	b, ok := t.s.borrows[id]
	if !ok {
		return nil, repository.ErrBorrowNotFound
	}
	return &b, nil
}

func (t memTx) LockBook(_ context.Context, id uint64) (*model.Book, error) {
	n, ok := t.s.books[id]
	if !ok {
		return nil, repository.ErrBookNotFound
	}
	return &model.Book{ID: id, Available: n}, nil
}

func (t memTx) CloseBorrow(_ context.Context, id uint64, at time.Time) error {
	b := t.s.borrows[id]
	if !b.IsOpen() {
		return repository.ErrAlreadyReturned
	}
	b.ReturnDate = &at
	t.s.borrows[id] = b
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BorrowEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BorrowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newBorrowService(store BorrowStore, pub EventPublisher) *BorrowService {
	return NewBorrowService(store, pub, logging.Nop())
}

func TestBorrowService_CreateAndClose(t *testing.T) {
	store := newMemStore()
	store.books[1] = 2
	store.readers[7] = true
	pub := &recordingPublisher{}
	svc := newBorrowService(store, pub)
	ctx := context.Background()

	b, err := svc.Create(ctx, 1, 7)
	require.NoError(t, err)
	assert.True(t, b.IsOpen())
	assert.Equal(t, 1, store.available(1))

	closed, err := svc.Close(ctx, b.ID, model.User{ID: 7, Role: model.RoleReader})
	require.NoError(t, err)
	require.NotNil(t, closed.ReturnDate)
	assert.Equal(t, 2, store.available(1))

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOpen())

	assert.Equal(t, []string{queue.EventBorrowCreated, queue.EventBorrowReturned}, pub.types())
}

func TestBorrowService_CreateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no copies", func(t *testing.T) {
		store := newMemStore()
		store.books[1] = 0
		store.readers[7] = true
		pub := &recordingPublisher{}
		_, err := newBorrowService(store, pub).Create(ctx, 1, 7)
		assert.ErrorIs(t, err, repository.ErrNoCopiesAvailable)
		assert.Empty(t, pub.types())
	})

	t.Run("missing book", func(t *testing.T) {
		store := newMemStore()
		store.readers[7] = true
		_, err := newBorrowService(store, nil).Create(ctx, 99, 7)
		assert.ErrorIs(t, err, repository.ErrBookNotFound)
	})

	t.Run("limit reached", func(t *testing.T) {
		store := newMemStore()
		store.books[1] = 10
		store.readers[7] = true
		svc := newBorrowService(store, nil)
		for range model.MaxOpenBorrows {
			_, err := svc.Create(ctx, 1, 7)
			require.NoError(t, err)
		}
		_, err := svc.Create(ctx, 1, 7)
		assert.ErrorIs(t, err, ErrBorrowLimitExceeded)
		assert.Equal(t, 10-model.MaxOpenBorrows, store.available(1))
	})

	t.Run("returned borrows do not count", func(t *testing.T) {
		store := newMemStore()
		store.books[1] = 10
		store.readers[7] = true
		svc := newBorrowService(store, nil)
		reader := model.User{ID: 7, Role: model.RoleReader}
		for range model.MaxOpenBorrows {
			b, err := svc.Create(ctx, 1, 7)
			require.NoError(t, err)
			_, err = svc.Close(ctx, b.ID, reader)
			require.NoError(t, err)
		}
		_, err := svc.Create(ctx, 1, 7)
		assert.NoError(t, err)
	})
}

func TestBorrowService_CloseRules(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.books[1] = 1
	store.readers[7] = true
	store.readers[8] = true
	svc := newBorrowService(store, nil)

	b, err := svc.Create(ctx, 1, 7)
	require.NoError(t, err)

	_, err = svc.Close(ctx, 404, model.User{ID: 7, Role: model.RoleReader})
	assert.ErrorIs(t, err, repository.ErrBorrowNotFound)

	_, err = svc.Close(ctx, b.ID, model.User{ID: 8, Role: model.RoleReader})
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, 0, store.available(1))

	_, err = svc.Close(ctx, b.ID, model.User{ID: 1, Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 1, store.available(1))

	_, err = svc.Close(ctx, b.ID, model.User{ID: 7, Role: model.RoleReader})
	assert.ErrorIs(t, err, repository.ErrAlreadyReturned)
	assert.Equal(t, 1, store.available(1))
}

func TestBorrowService_PublishFailureDoesNotFailRequest(t *testing.T) {
	store := newMemStore()
	store.books[1] = 1
	store.readers[7] = true
	pub := &recordingPublisher{err: errors.New("broker down")}

	b, err := newBorrowService(store, pub).Create(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, 0, store.available(1))
}

func TestBorrowService_LastCopyRace(t *testing.T) {
	store := newMemStore()
	store.books[1] = 1
	for id := uint64(1); id <= 10; id++ {
		store.readers[id] = true
	}
	svc := newBorrowService(store, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		noCopies  int
	)
	for id := uint64(1); id <= 10; id++ {
		wg.Add(1)
		go func(reader uint64) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), 1, reader)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, repository.ErrNoCopiesAvailable):
				noCopies++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 9, noCopies)
	assert.Equal(t, 0, store.available(1))
}

// TestBorrowService_StateMachine drives random create/close sequences and
// checks stock conservation, the open-borrow limit and that a closed borrow
// never reopens.
func TestBorrowService_StateMachine(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const books, readers = 3, 3
		store := newMemStore()
		initial := map[uint64]int{}
		for id := uint64(1); id <= books; id++ {
			n := rapid.IntRange(0, 4).Draw(t, "copies")
			store.books[id] = n
			initial[id] = n
		}
		for id := uint64(1); id <= readers; id++ {
			store.readers[id] = true
		}
		svc := newBorrowService(store, nil)
		ctx := context.Background()
		closed := map[uint64]bool{}

		t.Repeat(map[string]func(*rapid.T){
			"create": func(t *rapid.T) {
				book := rapid.Uint64Range(1, books).Draw(t, "book")
				reader := rapid.Uint64Range(1, readers).Draw(t, "reader")
				before := store.available(book)
				_, err := svc.Create(ctx, book, reader)
				switch {
				case err == nil:
					if store.available(book) != before-1 {
						t.Fatalf("create did not take a copy")
					}
				case errors.Is(err, repository.ErrNoCopiesAvailable), errors.Is(err, ErrBorrowLimitExceeded):
					if store.available(book) != before {
						t.Fatalf("failed create changed stock")
					}
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			},
			"close": func(t *rapid.T) {
				if store.nextID == 0 {
					t.Skip("no borrows yet")
				}
				id := rapid.Uint64Range(1, store.nextID).Draw(t, "borrow")
				b, _ := store.GetBorrow(ctx, id)
				actor := model.User{ID: b.ReaderID, Role: model.RoleReader}
				_, err := svc.Close(ctx, id, actor)
				if closed[id] {
					if !errors.Is(err, repository.ErrAlreadyReturned) {
						t.Fatalf("closing twice: got %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("close: %v", err)
				}
				closed[id] = true
			},
			"": func(t *rapid.T) {
				open := map[uint64]int{}
				perReader := map[uint64]int{}
				for _, b := range store.borrows {
					if b.IsOpen() {
						open[b.BookID]++
						perReader[b.ReaderID]++
					} else if !closed[b.ID] {
						t.Fatalf("borrow %d closed outside Close", b.ID)
					}
				}
				for id, n := range initial {
					if got := store.available(id); got < 0 || got+open[id] != n {
						t.Fatalf("book %d: available %d + open %d != %d", id, got, open[id], n)
					}
				}
				for r, n := range perReader {
					if n > model.MaxOpenBorrows {
						t.Fatalf("reader %d holds %d open borrows", r, n)
					}
				}
			},
		})
	})
}
