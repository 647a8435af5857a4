package book

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Repository loads and replaces stored books.
type Repository interface {
	// GetByID returns the book or an error wrapping ErrBookNotFound.
	GetByID(ctx context.Context, id string) (*Book, error)

	// Update replaces the stored book with the same ID.
	Update(ctx context.Context, b *Book) error
}

// Summary is the listing view of a stored book.
type Summary struct {
	ID       string
	Title    string
	Author   string
	Chapters int
}

// Catalog is a Repository that can also add and enumerate books.
type Catalog interface {
	Repository
	Add(ctx context.Context, b *Book) error
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRepository is an in-process Catalog.
type MemoryRepository struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewMemoryRepository returns a repository preloaded with books.
func NewMemoryRepository(books ...*Book) *MemoryRepository {
	r := &MemoryRepository{books: make(map[string]*Book, len(books))}
	for _, b := range books {
		r.books[b.ID] = b
	}
	return r
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	return b, nil
}

func (r *MemoryRepository) Update(_ context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[b.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrBookNotFound, b.ID)
	}
	r.books[b.ID] = b
	return nil
}

func (r *MemoryRepository) Add(_ context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[b.ID]; ok {
		return fmt.Errorf("book %s already exists", b.ID)
	}
	r.books[b.ID] = b
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, Summary{ID: b.ID, Title: b.Title, Author: b.Author, Chapters: len(b.Chapters)})
	}
	slices.SortFunc(out, func(x, y Summary) int {
		if c := strings.Compare(x.Title, y.Title); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	delete(r.books, id)
	return nil
}
